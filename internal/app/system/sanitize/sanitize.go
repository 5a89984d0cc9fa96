// Package sanitize strips markup from user-entered free text before it
// is stored: request reasons, rejection notes, study-id descriptions
// and notes. Everything in this system renders these fields as plain
// text, so the strict policy (no tags at all) is the right one.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML from s and trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// Fields applies Text to each string in place and returns the slice.
func Fields(ss []string) []string {
	for i, s := range ss {
		ss[i] = Text(s)
	}
	return ss
}

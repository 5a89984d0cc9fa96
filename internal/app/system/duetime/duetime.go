// Package duetime holds the pure time/status helpers used by the
// lifecycle controller, the reconciler, and the JSON projections.
// Every function is total: a zero due date means "no deadline" and is
// never overdue or due soon.
package duetime

import (
	"fmt"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/models"
)

// IsOverdue reports whether now is strictly past the due date.
func IsOverdue(dueDate, now time.Time) bool {
	if dueDate.IsZero() {
		return false
	}
	return now.After(dueDate)
}

// DueSoon reports whether the due date lies within the lookahead window
// of now: not yet due, but due within window.
func DueSoon(dueDate, now time.Time, window time.Duration) bool {
	if dueDate.IsZero() || IsOverdue(dueDate, now) {
		return false
	}
	return dueDate.Sub(now) <= window
}

// HoursRemaining returns the whole hours until the due date, negative
// once past it.
func HoursRemaining(dueDate, now time.Time) int {
	return int(dueDate.Sub(now).Hours())
}

// FormatTimeRemaining renders the countdown shown next to an active
// checkout: "3h 12m 5s remaining", or "1h 0m 2s overdue" once past due.
func FormatTimeRemaining(dueDate, now time.Time) string {
	if dueDate.IsZero() {
		return "No deadline"
	}

	d := dueDate.Sub(now)
	suffix := "remaining"
	if d < 0 {
		d = -d
		suffix = "overdue"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds %s", h, m, s, suffix)
	case m > 0:
		return fmt.Sprintf("%dm %ds %s", m, s, suffix)
	default:
		return fmt.Sprintf("%ds %s", s, suffix)
	}
}

// FormatDistanceToNow renders how long ago a timestamp was: "Just now",
// "5 minutes ago", "3 hours ago", "2 days ago".
func FormatDistanceToNow(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}

	minutes := int(now.Sub(t).Minutes())
	hours := minutes / 60
	days := hours / 24

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%d %s ago", minutes, plural("minute", minutes))
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural("hour", hours))
	default:
		return fmt.Sprintf("%d %s ago", days, plural("day", days))
	}
}

// StatusColor maps a request status to the badge color the front end
// shows for it. Unknown statuses fall back to gray.
func StatusColor(status string) string {
	switch status {
	case models.StatusPending:
		return "gray"
	case models.StatusActive:
		return "warning"
	case models.StatusReturned:
		return "success"
	case models.StatusOverdue:
		return "danger"
	default:
		return "gray"
	}
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

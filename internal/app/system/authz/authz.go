// Package authz holds the role-resolution rule applied at login.
package authz

import (
	"strings"

	"github.com/dalemusser/studytrack/internal/domain/models"
)

// ResolveRole computes the effective role for an identity at login
// time. The three sources the original system consulted in separate
// checks are merged here with most-privileged-wins:
//
//   - allowList: admin emails fixed in configuration
//   - preAddedRole: the role on the pre-added record matched by email
//     ("" when no record exists)
//   - adminRecordExists: an admin-emails document for this address
//
// Any admin signal wins; otherwise the role is user. Email comparison
// is case-insensitive.
func ResolveRole(email string, allowList []string, preAddedRole string, adminRecordExists bool) string {
	for _, allowed := range allowList {
		if strings.EqualFold(strings.TrimSpace(allowed), email) {
			return models.RoleAdmin
		}
	}
	if strings.EqualFold(preAddedRole, models.RoleAdmin) {
		return models.RoleAdmin
	}
	if adminRecordExists {
		return models.RoleAdmin
	}
	return models.RoleUser
}

package shared

import (
	"net/http"

	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
)

// Actor builds the lifecycle actor from the signed-in session user.
// Handlers behind RequireSignedIn can rely on ok being true.
func Actor(r *http.Request) (lifecycle.Actor, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok || u == nil {
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}, true
}

package adminpanel

import (
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /api/admin. Everything here is
// admin-only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/stats", h.ServeStats)
	r.Get("/users", h.ServeUsers)

	r.Get("/preadded", h.ServePreAddedList)
	r.Post("/preadded", h.ServePreAddedAdd)
	r.Delete("/preadded/{email}", h.ServePreAddedDelete)

	r.Get("/emails", h.ServeAdminEmailList)
	r.Post("/emails", h.ServeAdminEmailAdd)
	r.Delete("/emails/{email}", h.ServeAdminEmailDelete)

	return r
}

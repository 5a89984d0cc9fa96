package requests

import (
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /api/requests.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeSubmit)
	r.Get("/available", h.ServeAvailable)
	r.Get("/{id}", h.ServeGet)
	r.Post("/{id}/return", h.ServeReturn)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole(models.RoleAdmin))
		ar.Get("/export", h.ServeExport)
		ar.Post("/{id}/approve", h.ServeApprove)
		ar.Post("/{id}/reject", h.ServeReject)
		ar.Delete("/{id}", h.ServeDelete)
	})

	return r
}

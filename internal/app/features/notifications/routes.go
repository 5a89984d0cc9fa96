package notifications

import (
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /api/notifications.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/read_all", h.ServeMarkAllRead)
	r.Post("/{id}/read", h.ServeMarkRead)
	r.Delete("/{id}", h.ServeDelete)

	return r
}

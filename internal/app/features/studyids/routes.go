package studyids

import (
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /api/studyids. Reading the catalog
// needs a session; changing it needs admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireRole(models.RoleAdmin))
		ar.Post("/", h.ServeCreate)
		ar.Post("/bulk", h.ServeBulkAdd)
		ar.Post("/import", h.ServeImport)
		ar.Get("/export", h.ServeExport)
		ar.Get("/template", h.ServeTemplate)
		ar.Put("/{id}", h.ServeUpdate)
		ar.Delete("/{id}", h.ServeDelete)
	})

	return r
}

// Package studyids is the admin surface for managing the participant
// id catalog: CRUD, bulk add, and the CSV import/export pair.
package studyids

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/studytrack/internal/app/features/shared"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/app/system/csvutil"
	"github.com/dalemusser/studytrack/internal/app/system/sanitize"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Import uploads are capped to keep a stray file from ballooning the
// collection in one request.
const maxImportBytes = 1 << 20 // 1 MiB

type Handler struct {
	Store *studyidstore.Store
	Log   *zap.Logger
}

func NewHandler(store *studyidstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

// ServeList handles GET /api/studyids?active=true&q=…
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	ids, err := h.Store.List(r.Context(), activeOnly, r.URL.Query().Get("q"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"study_ids": ids})
}

type studyIDBody struct {
	ParticipantID string `json:"participant_id"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Notes         string `json:"notes"`
	Status        string `json:"status"`
	IsActive      *bool  `json:"is_active"`
}

func (b studyIDBody) toModel() models.StudyID {
	sid := models.StudyID{
		ParticipantID: sanitize.Text(b.ParticipantID),
		Description:   sanitize.Text(b.Description),
		Category:      sanitize.Text(b.Category),
		Notes:         sanitize.Text(b.Notes),
		Status:        sanitize.Text(b.Status),
		IsActive:      true,
	}
	if b.IsActive != nil {
		sid.IsActive = *b.IsActive
	}
	return sid
}

// ServeCreate handles POST /api/studyids
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var body studyIDBody
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	sid := body.toModel()
	if u, ok := auth.CurrentUser(r); ok {
		sid.CreatedBy = u.ID
	}

	created, err := h.Store.Create(r.Context(), sid)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Log.Info("study id created", zap.String("participant_id", created.ParticipantID))
	shared.JSON(w, http.StatusCreated, created)
}

// ServeBulkAdd handles POST /api/studyids/bulk with a JSON array of
// participant ids. Existing ids are skipped, not errors.
func (h *Handler) ServeBulkAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParticipantIDs []string `json:"participant_ids"`
	}
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if len(body.ParticipantIDs) == 0 {
		shared.Error(w, h.Log, apperr.Validation("at least one participant id is required"))
		return
	}

	createdBy := ""
	if u, ok := auth.CurrentUser(r); ok {
		createdBy = u.ID
	}

	batch := make([]models.StudyID, 0, len(body.ParticipantIDs))
	for _, pid := range sanitize.Fields(body.ParticipantIDs) {
		if pid == "" {
			continue
		}
		batch = append(batch, models.StudyID{
			ParticipantID: pid,
			IsActive:      true,
			CreatedBy:     createdBy,
		})
	}

	inserted, skipped, err := h.Store.CreateMany(r.Context(), batch)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Log.Info("study ids bulk added",
		zap.Int("inserted", len(inserted)), zap.Int("skipped", len(skipped)))
	shared.JSON(w, http.StatusOK, map[string]any{
		"inserted": inserted,
		"skipped":  skipped,
	})
}

// ServeUpdate handles PUT /api/studyids/{id}
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := studyIDParam(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	var body studyIDBody
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	if err := h.Store.Update(r.Context(), id, body.toModel()); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	updated, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, updated)
}

// ServeDelete handles DELETE /api/studyids/{id}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, err := studyIDParam(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ServeImport handles POST /api/studyids/import with a CSV body. Rows
// that fail the pre-scan are reported back with line numbers; valid
// rows are inserted, skipping ids that already exist.
func (h *Handler) ServeImport(w http.ResponseWriter, r *http.Request) {
	rows, rowErrs := csvutil.PreScanStudyIDCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if len(rows) == 0 && len(rowErrs) == 0 {
		shared.Error(w, h.Log, apperr.Validation("the file contains no rows"))
		return
	}

	createdBy := ""
	if u, ok := auth.CurrentUser(r); ok {
		createdBy = u.ID
	}

	batch := make([]models.StudyID, 0, len(rows))
	for _, row := range rows {
		isActive := row.Status != "inactive"
		batch = append(batch, models.StudyID{
			ParticipantID: row.ParticipantID,
			Description:   sanitize.Text(row.Description),
			Category:      sanitize.Text(row.Category),
			Notes:         sanitize.Text(row.Notes),
			Status:        sanitize.Text(row.Status),
			IsActive:      isActive,
			CreatedBy:     createdBy,
		})
	}

	inserted, skipped, err := h.Store.CreateMany(r.Context(), batch)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	errStrings := make([]string, 0, len(rowErrs))
	for _, re := range rowErrs {
		errStrings = append(errStrings, re.String())
	}
	h.Log.Info("study id import",
		zap.Int("inserted", len(inserted)),
		zap.Int("skipped", len(skipped)),
		zap.Int("row_errors", len(rowErrs)))
	shared.JSON(w, http.StatusOK, map[string]any{
		"inserted": len(inserted),
		"skipped":  skipped,
		"errors":   errStrings,
	})
}

// ServeExport handles GET /api/studyids/export: the catalog as CSV in
// the same column layout the import accepts.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Store.List(r.Context(), false, "")
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=study-ids-%s.csv", time.Now().UTC().Format("2006-01-02")))
	if err := csvutil.WriteStudyIDs(w, ids); err != nil {
		h.Log.Error("study id export failed", zap.Error(err))
	}
}

// ServeTemplate handles GET /api/studyids/template: a sample CSV in
// the import layout.
func (h *Handler) ServeTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=study-ids-template.csv")
	if err := csvutil.WriteStudyIDTemplate(w); err != nil {
		h.Log.Error("template write failed", zap.Error(err))
	}
}

func studyIDParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid study id")
	}
	return id, nil
}

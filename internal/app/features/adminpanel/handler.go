// Package adminpanel is the admin console surface: dashboard stats,
// the user directory, pre-added user provisioning, and the durable
// admin grants.
package adminpanel

import (
	"net/http"
	"time"

	"github.com/dalemusser/studytrack/internal/app/features/shared"
	adminstore "github.com/dalemusser/studytrack/internal/app/store/admins"
	preaddedstore "github.com/dalemusser/studytrack/internal/app/store/preadded"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/app/system/duetime"
	"github.com/dalemusser/studytrack/internal/app/system/sanitize"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Requests *requeststore.Store
	StudyIDs *studyidstore.Store
	Users    *userstore.Store
	PreAdded *preaddedstore.Store
	Admins   *adminstore.Store
	Log      *zap.Logger
}

func NewHandler(
	requests *requeststore.Store,
	studyIDs *studyidstore.Store,
	users *userstore.Store,
	preAdded *preaddedstore.Store,
	admins *adminstore.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Requests: requests,
		StudyIDs: studyIDs,
		Users:    users,
		PreAdded: preAdded,
		Admins:   admins,
		Log:      logger,
	}
}

type statsResponse struct {
	Requests struct {
		Total    int64 `json:"total"`
		Pending  int64 `json:"pending"`
		Active   int64 `json:"active"`
		Overdue  int64 `json:"overdue"`
		Returned int64 `json:"returned"`
		Rejected int64 `json:"rejected"`
	} `json:"requests"`
	StudyIDs struct {
		Total     int64 `json:"total"`
		Available int64 `json:"available"`
	} `json:"study_ids"`
	Users int64 `json:"users"`
}

// ServeStats handles GET /api/admin/stats. The overdue count is
// derived from due dates at read time, so checkouts that crossed their
// deadline since the last reconciler pass are counted as overdue even
// though their stored status is still active.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.Requests.CountByStatus(ctx)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	var resp statsResponse
	resp.Requests.Pending = counts[models.StatusPending]
	resp.Requests.Active = counts[models.StatusActive]
	resp.Requests.Overdue = counts[models.StatusOverdue]
	resp.Requests.Returned = counts[models.StatusReturned]
	resp.Requests.Rejected = counts[models.StatusRejected]
	for _, n := range counts {
		resp.Requests.Total += n
	}

	now := time.Now().UTC()
	active, err := h.Requests.ListActive(ctx)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	for _, req := range active {
		if req.DueDate != nil && duetime.IsOverdue(*req.DueDate, now) {
			resp.Requests.Active--
			resp.Requests.Overdue++
		}
	}

	allIDs, err := h.StudyIDs.List(ctx, false, "")
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	held, err := h.Requests.HeldParticipantIDs(ctx)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	resp.StudyIDs.Total = int64(len(allIDs))
	for _, sid := range allIDs {
		if sid.IsActive && !held[sid.ParticipantID] {
			resp.StudyIDs.Available++
		}
	}

	resp.Users, err = h.Users.Count(ctx)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	shared.JSON(w, http.StatusOK, resp)
}

// ServeUsers handles GET /api/admin/users: the registered user
// directory, for the on-behalf request picker and role review.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"users": users})
}

// ServePreAddedList handles GET /api/admin/preadded
func (h *Handler) ServePreAddedList(w http.ResponseWriter, r *http.Request) {
	list, err := h.PreAdded.List(r.Context())
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"pre_added_users": list})
}

// ServePreAddedAdd handles POST /api/admin/preadded
func (h *Handler) ServePreAddedAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if body.Role == "" {
		body.Role = models.RoleUser
	}

	addedBy := ""
	if u, ok := auth.CurrentUser(r); ok {
		addedBy = u.ID
	}

	err := h.PreAdded.Upsert(r.Context(), models.PreAddedUser{
		Email:       body.Email,
		DisplayName: sanitize.Text(body.DisplayName),
		Role:        body.Role,
		AddedBy:     addedBy,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	// Pre-adding an admin also records the durable grant, so the role
	// survives even if the pre-added record is later removed.
	if body.Role == models.RoleAdmin {
		if err := h.Admins.Add(r.Context(), body.Email, addedBy); err != nil {
			shared.Error(w, h.Log, err)
			return
		}
	}

	h.Log.Info("user pre-added",
		zap.String("email", body.Email), zap.String("role", body.Role))
	shared.JSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// ServePreAddedDelete handles DELETE /api/admin/preadded/{email}
func (h *Handler) ServePreAddedDelete(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		shared.Error(w, h.Log, apperr.Validation("email is required"))
		return
	}
	if err := h.PreAdded.Delete(r.Context(), email); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	// Drop any matching admin grant too; absent is fine.
	if err := h.Admins.Remove(r.Context(), email); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ServeAdminEmailList handles GET /api/admin/emails
func (h *Handler) ServeAdminEmailList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Admins.List(r.Context())
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"admin_emails": list})
}

// ServeAdminEmailAdd handles POST /api/admin/emails. The grant takes
// effect at the address's next sign-in.
func (h *Handler) ServeAdminEmailAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	addedBy := ""
	if u, ok := auth.CurrentUser(r); ok {
		addedBy = u.ID
	}

	if err := h.Admins.Add(r.Context(), body.Email, addedBy); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Log.Info("admin email added", zap.String("email", body.Email))
	shared.JSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// ServeAdminEmailDelete handles DELETE /api/admin/emails/{email}
func (h *Handler) ServeAdminEmailDelete(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		shared.Error(w, h.Log, apperr.Validation("email is required"))
		return
	}
	if err := h.Admins.Remove(r.Context(), email); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

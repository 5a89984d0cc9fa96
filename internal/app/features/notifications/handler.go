// Package notifications is the HTTP surface over a user's alert feed.
// Every operation is scoped to the signed-in user.
package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/studytrack/internal/app/features/shared"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/app/system/duetime"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultListLimit = 50

type Handler struct {
	Store *notificationstore.Store
	Log   *zap.Logger
}

func NewHandler(store *notificationstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

// ServeList handles GET /api/notifications?limit=…
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	limit := int64(defaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := h.Store.ListByUser(r.Context(), user.ID, limit)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	unread, err := h.Store.CountUnread(r.Context(), user.ID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	now := time.Now().UTC()
	views := make([]notificationView, len(list))
	for i, n := range list {
		views[i] = notificationView{
			Notification: n,
			TimeAgo:      duetime.FormatDistanceToNow(n.CreatedAt, now),
		}
	}

	shared.JSON(w, http.StatusOK, map[string]any{
		"notifications": views,
		"unread_count":  unread,
	})
}

// notificationView adds the rendered age the feed displays.
type notificationView struct {
	models.Notification
	TimeAgo string `json:"time_ago"`
}

// ServeMarkRead handles POST /api/notifications/{id}/read
func (h *Handler) ServeMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := notificationID(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	if err := h.Store.MarkRead(r.Context(), id, user.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// ServeMarkAllRead handles POST /api/notifications/read_all
func (h *Handler) ServeMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	n, err := h.Store.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"marked": n})
}

// ServeDelete handles DELETE /api/notifications/{id}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := notificationID(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	if err := h.Store.SoftDelete(r.Context(), id, user.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func notificationID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid notification id")
	}
	return id, nil
}

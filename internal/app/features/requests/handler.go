// Package requests is the HTTP surface over the request lifecycle:
// listing, submission, the admin decisions, returns, and the CSV
// export.
package requests

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/studytrack/internal/app/features/shared"
	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/system/csvutil"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Controller *lifecycle.Controller
	Log        *zap.Logger
}

func NewHandler(controller *lifecycle.Controller, logger *zap.Logger) *Handler {
	return &Handler{Controller: controller, Log: logger}
}

// ServeList handles GET /api/requests?status=…
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	reqs, err := h.Controller.List(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	now := time.Now().UTC()
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, newRequestView(req, now))
	}
	shared.JSON(w, http.StatusOK, map[string]any{"requests": views})
}

// ServeGet handles GET /api/requests/{id}
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := requestID(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	req, err := h.Controller.Get(r.Context(), actor, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, newRequestView(req, time.Now().UTC()))
}

type submitBody struct {
	ParticipantIDs  []string `json:"participant_ids"`
	Reason          string   `json:"reason"`
	OnBehalfOfID    string   `json:"on_behalf_of_id,omitempty"`
	OnBehalfOfEmail string   `json:"on_behalf_of_email,omitempty"`
	OnBehalfOfName  string   `json:"on_behalf_of_name,omitempty"`
	ManualEntry     bool     `json:"manual_entry,omitempty"`
}

// ServeSubmit handles POST /api/requests
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	var body submitBody
	if err := shared.Decode(r, &body); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	created, err := h.Controller.Submit(r.Context(), actor, lifecycle.SubmitInput{
		ParticipantIDs:  body.ParticipantIDs,
		Reason:          body.Reason,
		OnBehalfOfID:    body.OnBehalfOfID,
		OnBehalfOfEmail: body.OnBehalfOfEmail,
		OnBehalfOfName:  body.OnBehalfOfName,
		ManualEntry:     body.ManualEntry,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, newRequestView(created, time.Now().UTC()))
}

// ServeApprove handles POST /api/requests/{id}/approve
func (h *Handler) ServeApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor lifecycle.Actor, id primitive.ObjectID) (any, error) {
		req, err := h.Controller.Approve(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		return newRequestView(req, time.Now().UTC()), nil
	})
}

// ServeReject handles POST /api/requests/{id}/reject
func (h *Handler) ServeReject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string `json:"note"`
	}
	// An empty body is fine; the note is optional.
	_ = shared.Decode(r, &body)

	h.transition(w, r, func(actor lifecycle.Actor, id primitive.ObjectID) (any, error) {
		req, err := h.Controller.Reject(r.Context(), actor, id, body.Note)
		if err != nil {
			return nil, err
		}
		return newRequestView(req, time.Now().UTC()), nil
	})
}

// ServeReturn handles POST /api/requests/{id}/return
func (h *Handler) ServeReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor lifecycle.Actor, id primitive.ObjectID) (any, error) {
		req, err := h.Controller.MarkReturned(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		return newRequestView(req, time.Now().UTC()), nil
	})
}

// ServeDelete handles DELETE /api/requests/{id}
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor lifecycle.Actor, id primitive.ObjectID) (any, error) {
		if err := h.Controller.Delete(r.Context(), actor, id); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted"}, nil
	})
}

// ServeAvailable handles GET /api/requests/available: the active study
// ids not held by any open request.
func (h *Handler) ServeAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.Controller.AvailableStudyIDs(r.Context())
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]any{"study_ids": available})
}

// ServeExport handles GET /api/requests/export: all requests as CSV.
// Admin-only via routing.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}

	reqs, err := h.Controller.List(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=file-requests-%s.csv", time.Now().UTC().Format("2006-01-02")))
	if err := csvutil.WriteRequests(w, reqs); err != nil {
		h.Log.Error("request export failed", zap.Error(err))
	}
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(lifecycle.Actor, primitive.ObjectID) (any, error)) {
	actor, ok := shared.Actor(r)
	if !ok {
		shared.Error(w, h.Log, apperr.Forbidden("sign in required"))
		return
	}
	id, err := requestID(r)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	result, err := op(actor, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, result)
}

func requestID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid request id")
	}
	return id, nil
}

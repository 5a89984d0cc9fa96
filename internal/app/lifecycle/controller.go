// Package lifecycle drives file requests through their states. The
// Controller is the single write path: handlers never touch the
// request store directly, so every transition here carries the same
// validation, authorization, and notification behavior no matter which
// surface triggered it.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/studytrack/internal/app/notify"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	"github.com/dalemusser/studytrack/internal/app/system/sanitize"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// A request may name at most this many participant ids.
const maxParticipantIDs = 20

// Actor identifies who is performing an operation. Handlers build it
// from the session; the reconciler and tests build it directly.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Config carries the lifecycle policy knobs.
type Config struct {
	// CheckoutWindow is how long approved files may be held before
	// they are due back.
	CheckoutWindow time.Duration
	// AllowRequesterReturn lets the requester close their own checkout
	// instead of requiring an admin to confirm the return.
	AllowRequesterReturn bool
}

type Controller struct {
	requests *requeststore.Store
	studyIDs *studyidstore.Store
	notifier *notify.Notifier
	cfg      Config
	log      *zap.Logger
}

func NewController(requests *requeststore.Store, studyIDs *studyidstore.Store, notifier *notify.Notifier, cfg Config, logger *zap.Logger) *Controller {
	return &Controller{
		requests: requests,
		studyIDs: studyIDs,
		notifier: notifier,
		cfg:      cfg,
		log:      logger,
	}
}

// SubmitInput is a new checkout request. OnBehalfOf* is set when an
// admin files for someone else; ManualEntry marks a person with no
// account, in which case the request is attributed to the admin and
// the person's name is kept for display.
type SubmitInput struct {
	ParticipantIDs []string
	Reason         string

	OnBehalfOfID    string
	OnBehalfOfEmail string
	OnBehalfOfName  string
	ManualEntry     bool
}

// Submit validates and files a new request in the pending state.
func (c *Controller) Submit(ctx context.Context, actor Actor, in SubmitInput) (models.FileRequest, error) {
	pids, err := normalizeParticipantIDs(in.ParticipantIDs)
	if err != nil {
		return models.FileRequest{}, err
	}

	reason := sanitize.Text(in.Reason)
	if reason == "" {
		return models.FileRequest{}, apperr.Validation("a reason is required")
	}

	req := models.FileRequest{
		UserID:         actor.ID,
		UserEmail:      actor.Email,
		UserName:       actor.Name,
		ParticipantIDs: pids,
		Reason:         reason,
	}

	onBehalf := in.OnBehalfOfID != "" || in.OnBehalfOfEmail != "" || in.OnBehalfOfName != "" || in.ManualEntry
	if onBehalf {
		if !actor.IsAdmin() {
			return models.FileRequest{}, apperr.Forbidden("only admins can file requests for someone else")
		}
		req.RequestedByAdmin = true
		req.AdminID = actor.ID
		req.AdminEmail = actor.Email
		req.AdminName = actor.Name
		req.ManualEntry = in.ManualEntry

		name := sanitize.Text(in.OnBehalfOfName)
		if in.ManualEntry {
			if name == "" {
				return models.FileRequest{}, apperr.Validation("a name is required for a manual entry")
			}
			// No account to attribute the checkout to; the admin owns
			// it and the person is recorded by name only.
			req.UserName = name
		} else {
			if in.OnBehalfOfID == "" {
				return models.FileRequest{}, apperr.Validation("the user to request for is required")
			}
			req.UserID = in.OnBehalfOfID
			req.UserEmail = strings.ToLower(strings.TrimSpace(in.OnBehalfOfEmail))
			if name != "" {
				req.UserName = name
			}
		}
	}

	// Every requested id must exist, be active, and not be held by an
	// open request. The availability race is closed by the unique index
	// at insert time; these checks exist to name the offending ids in
	// the message.
	active, err := c.studyIDs.GetActiveByParticipantIDs(ctx, pids)
	if err != nil {
		return models.FileRequest{}, err
	}
	for _, pid := range pids {
		if _, ok := active[pid]; !ok {
			return models.FileRequest{}, apperr.Validation("participant id %s is not available", pid)
		}
	}

	held, err := c.requests.HeldParticipantIDs(ctx)
	if err != nil {
		return models.FileRequest{}, err
	}
	var taken []string
	for _, pid := range pids {
		if held[pid] {
			taken = append(taken, pid)
		}
	}
	if len(taken) > 0 {
		return models.FileRequest{}, apperr.Validation("already checked out: %s", strings.Join(taken, ", "))
	}

	created, err := c.requests.Create(ctx, req)
	if err != nil {
		return models.FileRequest{}, err
	}

	c.log.Info("request submitted",
		zap.String("request_id", created.ID.Hex()),
		zap.String("user_id", created.UserID),
		zap.Strings("participant_ids", created.ParticipantIDs))
	c.notifier.RequestSubmitted(ctx, created)
	return created, nil
}

// Approve moves a pending request to active. The due date is the
// approval time plus the checkout window.
func (c *Controller) Approve(ctx context.Context, actor Actor, id primitive.ObjectID) (models.FileRequest, error) {
	if !actor.IsAdmin() {
		return models.FileRequest{}, apperr.Forbidden("only admins can approve requests")
	}

	due := time.Now().UTC().Add(c.cfg.CheckoutWindow)
	approved, err := c.requests.Approve(ctx, id, actor.ID, actor.Name, due)
	if err != nil {
		return models.FileRequest{}, err
	}

	c.log.Info("request approved",
		zap.String("request_id", id.Hex()),
		zap.String("admin_id", actor.ID),
		zap.Time("due_date", due))
	c.notifier.RequestApproved(ctx, approved, due)
	return approved, nil
}

// Reject moves a pending request to the terminal rejected state,
// releasing its participant ids.
func (c *Controller) Reject(ctx context.Context, actor Actor, id primitive.ObjectID, note string) (models.FileRequest, error) {
	if !actor.IsAdmin() {
		return models.FileRequest{}, apperr.Forbidden("only admins can reject requests")
	}

	note = sanitize.Text(note)
	rejected, err := c.requests.Reject(ctx, id, actor.ID, actor.Name, note)
	if err != nil {
		return models.FileRequest{}, err
	}

	c.log.Info("request rejected",
		zap.String("request_id", id.Hex()),
		zap.String("admin_id", actor.ID))
	c.notifier.RequestRejected(ctx, rejected, note)
	return rejected, nil
}

// MarkReturned closes an active or overdue checkout. Admins can return
// any checkout; the requester can return their own only when the
// deployment allows it.
func (c *Controller) MarkReturned(ctx context.Context, actor Actor, id primitive.ObjectID) (models.FileRequest, error) {
	if !actor.IsAdmin() {
		if !c.cfg.AllowRequesterReturn {
			return models.FileRequest{}, apperr.Forbidden("only admins can mark files returned")
		}
		current, err := c.requests.GetByID(ctx, id)
		if err != nil {
			return models.FileRequest{}, err
		}
		if current.UserID != actor.ID {
			return models.FileRequest{}, apperr.Forbidden("you can only return your own checkouts")
		}
	}

	returned, err := c.requests.MarkReturned(ctx, id, actor.ID, actor.Name)
	if err != nil {
		return models.FileRequest{}, err
	}

	c.log.Info("files returned",
		zap.String("request_id", id.Hex()),
		zap.String("returned_by", actor.ID))
	c.notifier.FileReturned(ctx, returned)
	return returned, nil
}

// Delete removes a request outright. Admin-only; the audit trail for
// normal operation is the terminal statuses, deletion is for mistakes.
func (c *Controller) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("only admins can delete requests")
	}
	if err := c.requests.Delete(ctx, id); err != nil {
		return err
	}
	c.log.Info("request deleted",
		zap.String("request_id", id.Hex()),
		zap.String("admin_id", actor.ID))
	return nil
}

// Get returns one request, scoped to the actor: admins see any,
// users only their own.
func (c *Controller) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (models.FileRequest, error) {
	req, err := c.requests.GetByID(ctx, id)
	if err != nil {
		return models.FileRequest{}, err
	}
	if !actor.IsAdmin() && req.UserID != actor.ID {
		// Hide the existence of other users' requests.
		return models.FileRequest{}, apperr.NotFound("request %s", id.Hex())
	}
	return req, nil
}

// List returns requests visible to the actor, optionally filtered by
// stored status. Admins see everything; users see their own.
func (c *Controller) List(ctx context.Context, actor Actor, status string) ([]models.FileRequest, error) {
	if status != "" && !models.IsValidStatus(status) {
		return nil, apperr.Validation("unknown status %q", status)
	}
	if actor.IsAdmin() {
		filter := bson.M{}
		if status != "" {
			filter["status"] = status
		}
		return c.requests.List(ctx, filter)
	}
	return c.requests.ListByUser(ctx, actor.ID, status)
}

// AvailableStudyIDs returns the active study ids not held by any open
// request, for the submission picker.
func (c *Controller) AvailableStudyIDs(ctx context.Context) ([]models.StudyID, error) {
	active, err := c.studyIDs.List(ctx, true, "")
	if err != nil {
		return nil, err
	}
	held, err := c.requests.HeldParticipantIDs(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]models.StudyID, 0, len(active))
	for _, sid := range active {
		if !held[sid.ParticipantID] {
			available = append(available, sid)
		}
	}
	return available, nil
}

func normalizeParticipantIDs(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	pids := make([]string, 0, len(raw))
	for _, pid := range raw {
		pid = strings.ToUpper(sanitize.Text(pid))
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	if len(pids) == 0 {
		return nil, apperr.Validation("at least one participant id is required")
	}
	if len(pids) > maxParticipantIDs {
		return nil, apperr.Validation("at most %d participant ids per request", maxParticipantIDs)
	}
	return pids, nil
}

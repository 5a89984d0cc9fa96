// Package notify fans notifications out to users as the request
// lifecycle advances. Delivery is best-effort: a failed insert is
// logged and never propagated, so a notification problem cannot roll
// back the state change that triggered it.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type Notifier struct {
	notifications *notificationstore.Store
	users         *userstore.Store
	log           *zap.Logger
}

func New(notifications *notificationstore.Store, users *userstore.Store, logger *zap.Logger) *Notifier {
	return &Notifier{notifications: notifications, users: users, log: logger}
}

// RequestSubmitted tells the requester their request is awaiting
// approval and alerts every admin about the new pending request.
func (n *Notifier) RequestSubmitted(ctx context.Context, req models.FileRequest) {
	ids := joinIDs(req.ParticipantIDs)

	n.send(ctx, models.Notification{
		UserID:           req.UserID,
		Type:             models.NotifyRequestSubmitted,
		Title:            "Request Submitted",
		Message:          fmt.Sprintf("Your file request for %s has been submitted and is awaiting approval.", ids),
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids": req.ParticipantIDs,
			"reason":          req.Reason,
		},
	})

	adminIDs, err := n.users.ListAdminIDs(ctx)
	if err != nil {
		n.log.Error("admin lookup for fan-out failed", zap.Error(err))
		return
	}
	for _, adminID := range adminIDs {
		if adminID == req.UserID {
			continue
		}
		n.send(ctx, models.Notification{
			UserID:           adminID,
			Type:             models.NotifyRequestSubmitted,
			Title:            "New File Request",
			Message:          fmt.Sprintf("%s requested access to %s", req.UserName, ids),
			RelatedRequestID: req.ID.Hex(),
			Metadata: bson.M{
				"requester_name":  req.UserName,
				"requester_email": req.UserEmail,
				"participant_ids": req.ParticipantIDs,
				"reason":          req.Reason,
			},
		})
	}
}

// RequestApproved tells the requester their checkout is active and
// when the files are due back.
func (n *Notifier) RequestApproved(ctx context.Context, req models.FileRequest, dueDate time.Time) {
	ids := joinIDs(req.ParticipantIDs)
	n.send(ctx, models.Notification{
		UserID:           req.UserID,
		Type:             models.NotifyRequestApproved,
		Title:            "Request Approved! 🎉",
		Message:          fmt.Sprintf("Your request for %s has been approved. Files must be returned by %s.", ids, dueDate.Format("Jan 2, 2006 3:04 PM")),
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids": req.ParticipantIDs,
			"due_date":        dueDate,
			"approved_by":     req.ApprovedByName,
		},
	})
}

// RequestRejected tells the requester the request was declined, with
// the admin's note when one was given.
func (n *Notifier) RequestRejected(ctx context.Context, req models.FileRequest, note string) {
	msg := fmt.Sprintf("Your request for %s has been rejected.", joinIDs(req.ParticipantIDs))
	if note != "" {
		msg += " " + note
	}
	n.send(ctx, models.Notification{
		UserID:           req.UserID,
		Type:             models.NotifyRequestRejected,
		Title:            "Request Rejected",
		Message:          msg,
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids":  req.ParticipantIDs,
			"rejection_reason": note,
			"rejected_by":      req.RejectedByName,
		},
	})
}

// FileOverdue alerts the requester that their checkout is past due,
// and fans the alert out to every admin.
func (n *Notifier) FileOverdue(ctx context.Context, req models.FileRequest) {
	ids := joinIDs(req.ParticipantIDs)
	base := models.Notification{
		Type:             models.NotifyFileOverdue,
		Title:            "⚠️ Files Overdue!",
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids": req.ParticipantIDs,
			"due_date":        req.DueDate,
		},
	}

	user := base
	user.UserID = req.UserID
	user.Message = fmt.Sprintf("Your files for %s are overdue. Please return them immediately.", ids)
	n.send(ctx, user)

	adminIDs, err := n.users.ListAdminIDs(ctx)
	if err != nil {
		n.log.Error("admin lookup for fan-out failed", zap.Error(err))
		return
	}
	for _, adminID := range adminIDs {
		if adminID == req.UserID {
			continue
		}
		admin := base
		admin.UserID = adminID
		admin.Message = fmt.Sprintf("%s has overdue files for %s.", req.UserName, ids)
		n.send(ctx, admin)
	}
}

// FileDueSoon warns the requester their checkout is approaching its
// due date. Admins are not warned; they only hear about actual
// violations.
func (n *Notifier) FileDueSoon(ctx context.Context, req models.FileRequest, hoursRemaining int) {
	n.send(ctx, models.Notification{
		UserID:           req.UserID,
		Type:             models.NotifyFileDueSoon,
		Title:            "Files Due Soon ⏰",
		Message:          fmt.Sprintf("Your files for %s are due in %d hours.", joinIDs(req.ParticipantIDs), hoursRemaining),
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids": req.ParticipantIDs,
			"due_date":        req.DueDate,
			"hours_remaining": hoursRemaining,
		},
	})
}

// FileReturned confirms a completed return to the requester.
func (n *Notifier) FileReturned(ctx context.Context, req models.FileRequest) {
	n.send(ctx, models.Notification{
		UserID:           req.UserID,
		Type:             models.NotifyFileReturned,
		Title:            "Files Returned ✅",
		Message:          fmt.Sprintf("Files for %s have been successfully returned.", joinIDs(req.ParticipantIDs)),
		RelatedRequestID: req.ID.Hex(),
		Metadata: bson.M{
			"participant_ids": req.ParticipantIDs,
		},
	})
}

func (n *Notifier) send(ctx context.Context, notif models.Notification) {
	if _, err := n.notifications.Insert(ctx, notif); err != nil {
		n.log.Error("notification insert failed",
			zap.String("type", notif.Type),
			zap.String("user_id", notif.UserID),
			zap.Error(err))
	}
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "Unknown"
	}
	return strings.Join(ids, ", ")
}

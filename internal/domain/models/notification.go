package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types, one per lifecycle event that fans out to a user.
const (
	NotifyRequestSubmitted = "request_submitted"
	NotifyRequestApproved  = "request_approved"
	NotifyRequestRejected  = "request_rejected"
	NotifyFileOverdue      = "file_overdue"
	NotifyFileDueSoon      = "file_due_soon"
	NotifyFileReturned     = "file_returned"
)

// Notification is one immutable alert record for a user. Records are
// never hard-deleted; Deleted soft-hides them.
type Notification struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string             `bson:"user_id" json:"user_id"`
	Type             string             `bson:"type" json:"type"`
	Title            string             `bson:"title" json:"title"`
	Message          string             `bson:"message" json:"message"`
	RelatedRequestID string             `bson:"related_request_id,omitempty" json:"related_request_id,omitempty"`
	Metadata         bson.M             `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Read             bool               `bson:"read" json:"read"`
	Deleted          bool               `bson:"deleted" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	DeletedAt        *time.Time         `bson:"deleted_at,omitempty" json:"-"`
}

// IsValidNotificationType reports whether t is one of the notification
// type tags.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotifyRequestSubmitted, NotifyRequestApproved, NotifyRequestRejected,
		NotifyFileOverdue, NotifyFileDueSoon, NotifyFileReturned:
		return true
	}
	return false
}

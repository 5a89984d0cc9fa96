package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request statuses. Participant ids are held while a request is
// pending, active, or overdue; rejected and returned are terminal.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
)

// FileRequest is one checkout transaction: a user asks for temporary
// access to the files behind one or more participant ids, an admin
// approves or rejects, and approved checkouts must come back within
// the checkout window.
type FileRequest struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// Requester identity, denormalized at creation time.
	UserID    string `bson:"user_id" json:"user_id"`
	UserEmail string `bson:"user_email" json:"user_email"`
	UserName  string `bson:"user_name" json:"user_name"`

	ParticipantIDs []string `bson:"participant_ids" json:"participant_ids"`
	Reason         string   `bson:"reason" json:"reason"`

	Status string `bson:"status" json:"status"`

	// Open is true while the request holds its participant ids
	// (pending, active, or overdue). It exists so the partial unique
	// index on participant_ids can enforce "one open request per
	// participant id" at write time; the transitions that release the
	// ids (reject, return) clear it in the same update as the status
	// change.
	Open bool `bson:"open" json:"-"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`

	ApprovedAt      *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedByID    string     `bson:"approved_by_id,omitempty" json:"approved_by_id,omitempty"`
	ApprovedByName  string     `bson:"approved_by_name,omitempty" json:"approved_by_name,omitempty"`
	DueDate         *time.Time `bson:"due_date,omitempty" json:"due_date,omitempty"`
	RejectedAt      *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectedByID    string     `bson:"rejected_by_id,omitempty" json:"rejected_by_id,omitempty"`
	RejectedByName  string     `bson:"rejected_by_name,omitempty" json:"rejected_by_name,omitempty"`
	RejectionNote   string     `bson:"rejection_note,omitempty" json:"rejection_note,omitempty"`
	ReturnedAt      *time.Time `bson:"returned_at,omitempty" json:"returned_at,omitempty"`
	ReturnedByID    string     `bson:"returned_by_id,omitempty" json:"returned_by_id,omitempty"`
	ReturnedByName  string     `bson:"returned_by_name,omitempty" json:"returned_by_name,omitempty"`

	// Set when an administrator files the request on behalf of someone
	// else. ManualEntry marks a person who has no registered account.
	RequestedByAdmin bool   `bson:"requested_by_admin,omitempty" json:"requested_by_admin,omitempty"`
	AdminID          string `bson:"admin_id,omitempty" json:"admin_id,omitempty"`
	AdminEmail       string `bson:"admin_email,omitempty" json:"admin_email,omitempty"`
	AdminName        string `bson:"admin_name,omitempty" json:"admin_name,omitempty"`
	ManualEntry      bool   `bson:"manual_entry,omitempty" json:"manual_entry,omitempty"`
}

// IsValidStatus reports whether s is one of the request statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusActive, StatusRejected, StatusReturned, StatusOverdue:
		return true
	}
	return false
}

// IsOpenStatus reports whether a request with this status holds its
// participant ids (making them unavailable to other requests). An
// overdue checkout still holds its ids until the files come back.
func IsOpenStatus(s string) bool {
	return s == StatusPending || s == StatusActive || s == StatusOverdue
}

// IsTerminalStatus reports whether no transition leads out of s.
func IsTerminalStatus(s string) bool {
	return s == StatusRejected || s == StatusReturned
}

// CanTransition reports whether a request may move from one status to
// another:
//
//	pending → active | rejected
//	active  → returned | overdue
//	overdue → returned
//
// Overdue requests may still be returned; rejected and returned are
// terminal.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusActive || to == StatusRejected
	case StatusActive:
		return to == StatusReturned || to == StatusOverdue
	case StatusOverdue:
		return to == StatusReturned
	}
	return false
}

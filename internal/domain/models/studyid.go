package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudyID is a participant identifier that can be checked out. The
// participant id is the business key: stored upper-cased, unique across
// the collection. IsActive gates whether the id is offered for new
// requests; Status is a free-text label and is distinct from it.
type StudyID struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ParticipantID   string             `bson:"participant_id" json:"participant_id"`
	ParticipantIDCI string             `bson:"participant_id_ci" json:"-"` // lowercase, diacritics-stripped
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Category        string             `bson:"category,omitempty" json:"category,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          string             `bson:"status,omitempty" json:"status,omitempty"`
	IsActive        bool               `bson:"is_active" json:"is_active"`
	CreatedBy       string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

package models

import "time"

// Roles an identity can resolve to at login.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the denormalized projection of an identity-provider account,
// upserted on every login. Role is recomputed at login time from the
// admin allow-list, the pre-added record, and the admin-emails
// collection; the stored value is a cache of that resolution, not
// ground truth.
//
// The document is keyed by the provider uid (string _id), matching how
// the identity provider names accounts.
type User struct {
	ID            string    `bson:"_id" json:"id"`
	Email         string    `bson:"email" json:"email"`
	DisplayName   string    `bson:"display_name" json:"display_name"`
	DisplayNameCI string    `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	PhotoURL      string    `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Role          string    `bson:"role" json:"role"` // admin | user
	WasPreAdded   bool      `bson:"was_pre_added" json:"was_pre_added"`
	LastLogin     time.Time `bson:"last_login" json:"last_login"`
}

// PreAddedUser is an identity provisioned with a role before its first
// login, keyed by email. Status moves pending → active when the person
// first signs in and the record is reconciled against their real
// identity.
type PreAddedUser struct {
	Email        string     `bson:"_id" json:"email"`
	DisplayName  string     `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Role         string     `bson:"role" json:"role"`
	Status       string     `bson:"status" json:"status"` // pending | active
	AddedBy      string     `bson:"added_by" json:"added_by"`
	AddedAt      time.Time  `bson:"added_at" json:"added_at"`
	FirstLoginAt *time.Time `bson:"first_login_at,omitempty" json:"first_login_at,omitempty"`
}

// AdminEmail marks an email address as an administrator, alongside the
// startup allow-list. Removal is best-effort; a missing record is not
// an error.
type AdminEmail struct {
	Email   string    `bson:"_id" json:"email"`
	AddedBy string    `bson:"added_by" json:"added_by"`
	AddedAt time.Time `bson:"added_at" json:"added_at"`
}

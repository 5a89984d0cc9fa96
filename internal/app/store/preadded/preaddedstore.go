// Package preaddedstore provides access to the pre_added_users
// collection, keyed by email.
package preaddedstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("pre_added_users")}
}

// Upsert provisions (or re-provisions) an identity before first login.
// The record is keyed by lower-cased email; re-adding updates the role
// and display name but keeps the original status.
func (s *Store) Upsert(ctx context.Context, p models.PreAddedUser) error {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	if p.Role != models.RoleAdmin && p.Role != models.RoleUser {
		return apperr.Validation("role must be admin or user")
	}

	_, err := s.c.UpdateByID(ctx, email, bson.M{
		"$set": bson.M{
			"display_name": p.DisplayName,
			"role":         p.Role,
		},
		"$setOnInsert": bson.M{
			"status":   "pending",
			"added_by": p.AddedBy,
			"added_at": time.Now().UTC(),
		},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Store("upsert pre-added user", err)
	}
	return nil
}

// GetByEmail looks up a provisioning record. A missing record is
// reported as not found so login reconciliation can distinguish "never
// provisioned" from a store failure.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.PreAddedUser, error) {
	var p models.PreAddedUser
	err := s.c.FindOne(ctx, bson.M{"_id": strings.ToLower(strings.TrimSpace(email))}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PreAddedUser{}, apperr.NotFound("pre-added user %s", email)
	}
	if err != nil {
		return models.PreAddedUser{}, apperr.Store("get pre-added user", err)
	}
	return p, nil
}

// MarkActive records that the provisioned identity has signed in for
// the first time. Idempotent: a second call leaves first_login_at at
// its original value.
func (s *Store) MarkActive(ctx context.Context, email string) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": strings.ToLower(strings.TrimSpace(email)), "status": "pending"},
		bson.M{"$set": bson.M{"status": "active", "first_login_at": now}},
	)
	if err != nil {
		return apperr.Store("activate pre-added user", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]models.PreAddedUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Store("list pre-added users", err)
	}
	defer cur.Close(ctx)

	var out []models.PreAddedUser
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode pre-added users", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return apperr.Store("delete pre-added user", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("pre-added user %s", email)
	}
	return nil
}

// Package adminstore provides access to the admin_emails collection, a
// durable supplement to the startup admin allow-list.
package adminstore

import (
	"context"
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
	return &Store{c: db.Collection("admin_emails")}
}

// Add grants admin to an email address. Re-adding is a no-op.
func (s *Store) Add(ctx context.Context, email, addedBy string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	_, err := s.c.UpdateByID(ctx, email, bson.M{
		"$setOnInsert": bson.M{
			"added_by": addedBy,
			"added_at": time.Now().UTC(),
		},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Store("add admin email", err)
	}
	return nil
}

// Exists reports whether the email has a durable admin grant.
func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return false, apperr.Store("check admin email", err)
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]models.AdminEmail, error) {
	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Store("list admin emails", err)
	}
	defer cur.Close(ctx)

	var out []models.AdminEmail
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode admin emails", err)
	}
	return out, nil
}

// Remove revokes a durable admin grant. Best-effort: removing an email
// that was never granted succeeds.
func (s *Store) Remove(ctx context.Context, email string) error {
	if _, err := s.c.DeleteOne(ctx, bson.M{"_id": strings.ToLower(strings.TrimSpace(email))}); err != nil {
		return apperr.Store("remove admin email", err)
	}
	return nil
}

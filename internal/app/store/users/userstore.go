// Package userstore provides access to the users collection. Users are
// keyed by the identity provider's subject so repeated sign-ins upsert
// the same document.
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Upsert records a sign-in: inserts the user on first login, refreshes
// profile fields and last_login on subsequent ones. Role is always
// written so promotions take effect on the next sign-in.
func (s *Store) Upsert(ctx context.Context, u models.User) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateByID(ctx, u.ID, bson.M{
		"$set": bson.M{
			"email":           u.Email,
			"display_name":    u.DisplayName,
			"display_name_ci": text.Fold(u.DisplayName),
			"photo_url":       u.PhotoURL,
			"role":            u.Role,
			"last_login":      now,
		},
		"$setOnInsert": bson.M{
			"was_pre_added": u.WasPreAdded,
		},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.Store("upsert user", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.NotFound("user %s", id)
	}
	if err != nil {
		return models.User{}, apperr.Store("get user", err)
	}
	return u, nil
}

// List returns all users sorted by display name. Used by the admin
// surface when filing a request on a user's behalf.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "display_name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Store("list users", err)
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode users", err)
	}
	return out, nil
}

// ListAdminIDs returns the ids of all admin users, for notification
// fan-out.
func (s *Store) ListAdminIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.c.Find(ctx, bson.M{"role": models.RoleAdmin}, opts)
	if err != nil {
		return nil, apperr.Store("list admins", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Store("decode admin id", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Store("list admins", err)
	}
	return ids, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, apperr.Store("count users", err)
	}
	return n, nil
}

// Package notificationstore provides access to the notifications
// collection. Deletion is a soft flag so the audit trail survives;
// reads exclude soft-deleted records.
package notificationstore

import (
	"context"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

func (s *Store) Insert(ctx context.Context, n models.Notification) (models.Notification, error) {
	if !models.IsValidNotificationType(n.Type) {
		return models.Notification{}, apperr.Validation("unknown notification type %q", n.Type)
	}
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	n.Read = false
	n.Deleted = false

	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.Notification{}, apperr.Store("insert notification", err)
	}
	return n, nil
}

// ListByUser returns the user's visible notifications, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "deleted": false}, opts)
	if err != nil {
		return nil, apperr.Store("list notifications", err)
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode notifications", err)
	}
	return out, nil
}

// CountUnread returns the user's unread, undeleted notification count.
func (s *Store) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"user_id": userID, "deleted": false, "read": false})
	if err != nil {
		return 0, apperr.Store("count unread notifications", err)
	}
	return n, nil
}

// MarkRead flags one notification as read. Scoped to the owning user so
// a caller cannot touch another user's records.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, userID string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"read": true, "updated_at": now}},
	)
	if err != nil {
		return apperr.Store("mark notification read", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("notification %s", id.Hex())
	}
	return nil
}

// MarkAllRead flags every unread notification for the user.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "deleted": false, "read": false},
		bson.M{"$set": bson.M{"read": true, "updated_at": now}},
	)
	if err != nil {
		return 0, apperr.Store("mark notifications read", err)
	}
	return res.ModifiedCount, nil
}

// SoftDelete hides one notification from the user's list.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID, userID string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now}},
	)
	if err != nil {
		return apperr.Store("delete notification", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("notification %s", id.Hex())
	}
	return nil
}

// PurgeOlderThan hard-deletes notifications created before the cutoff.
// Used by the retention job; returns the number removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, apperr.Store("purge notifications", err)
	}
	return res.DeletedCount, nil
}

// Package indexes reconciles the MongoDB indexes this app depends on.
// EnsureAll runs at startup and is idempotent; errors are aggregated so
// every problem is visible and startup can fail fast.
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureAll creates the indexes for every collection.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureFileRequests(ctx, db); err != nil {
		problems = append(problems, "file_requests: "+err.Error())
	}
	if err := ensureStudyIDs(ctx, db); err != nil {
		problems = append(problems, "study_ids: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "notifications: "+err.Error())
	}
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureFileRequests(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("file_requests")

	// The partial unique index on participant_ids is the server-side
	// guard for "no two open requests hold the same participant id".
	// participant_ids is an array, so the unique constraint applies per
	// element across documents; restricting it to open documents lets a
	// returned or rejected request release its ids.
	openExclusive := mongo.IndexModel{
		Keys: bson.D{{Key: "participant_ids", Value: 1}},
		Options: options.Index().
			SetName("uniq_open_participant_ids").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"open": true}),
	}

	byUser := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("by_user_created"),
	}
	byStatusDue := mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}},
		Options: options.Index().SetName("by_status_due"),
	}

	return createAll(ctx, coll, openExclusive, byUser, byStatusDue)
}

func ensureStudyIDs(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("study_ids")

	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "participant_id", Value: 1}},
		Options: options.Index().SetName("uniq_participant_id").SetUnique(true),
	}
	active := mongo.IndexModel{
		Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "participant_id", Value: 1}},
		Options: options.Index().SetName("by_active"),
	}

	return createAll(ctx, coll, unique, active)
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("notifications")

	byUser := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("by_user_created"),
	}

	return createAll(ctx, coll, byUser)
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("users")

	byEmail := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("by_email"),
	}

	return createAll(ctx, coll, byEmail)
}

func createAll(ctx context.Context, coll *mongo.Collection, idx ...mongo.IndexModel) error {
	names, err := coll.Indexes().CreateMany(ctx, idx)
	if err != nil {
		return err
	}
	zap.L().Info("indexes ensured",
		zap.String("collection", coll.Name()),
		zap.Strings("names", names))
	return nil
}

// Package requeststore provides access to the file_requests collection.
//
// Status transitions are conditional writes: the filter requires the
// permitting status, so a lost race or a repeated call matches zero
// documents instead of silently re-applying. The partial unique index
// on participant_ids (see system/indexes) makes "one open request per
// participant id" a write-time guarantee; every closing transition
// clears the open flag in the same update as the status change.
package requeststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("file_requests")}
}

// Create inserts a new request in the pending state. A duplicate-key
// error from the open-participant index means another open request
// already holds one of the ids; that is a validation failure, not a
// store failure.
func (s *Store) Create(ctx context.Context, req models.FileRequest) (models.FileRequest, error) {
	now := time.Now().UTC()

	req.ID = primitive.NewObjectID()
	req.Status = models.StatusPending
	req.Open = models.IsOpenStatus(req.Status)
	req.CreatedAt = now
	req.UpdatedAt = &now

	if _, err := s.c.InsertOne(ctx, req); err != nil {
		if wafflemongo.IsDup(err) {
			return models.FileRequest{}, apperr.Validation("one or more participant ids are already checked out")
		}
		return models.FileRequest{}, apperr.Store("insert request", err)
	}
	return req, nil
}

// GetByID returns a request by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.FileRequest, error) {
	var req models.FileRequest
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.FileRequest{}, apperr.NotFound("request %s", id.Hex())
	}
	if err != nil {
		return models.FileRequest{}, apperr.Store("get request", err)
	}
	return req, nil
}

// List returns requests matching filter, newest first.
func (s *Store) List(ctx context.Context, filter bson.M) ([]models.FileRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Store("list requests", err)
	}
	defer cur.Close(ctx)

	var out []models.FileRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode requests", err)
	}
	return out, nil
}

// ListByUser returns one user's requests, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, status string) ([]models.FileRequest, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	return s.List(ctx, filter)
}

// ListActive returns requests carrying the stored active status,
// soonest due first. The reconciler reads these.
func (s *Store) ListActive(ctx context.Context) ([]models.FileRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"status": models.StatusActive}, opts)
	if err != nil {
		return nil, apperr.Store("list active requests", err)
	}
	defer cur.Close(ctx)

	var out []models.FileRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode requests", err)
	}
	return out, nil
}

// HeldParticipantIDs returns every participant id referenced by a
// request that still holds its files. Used for the friendly
// availability check before submission; the unique index is the actual
// guard.
func (s *Store) HeldParticipantIDs(ctx context.Context) (map[string]bool, error) {
	cur, err := s.c.Find(ctx, bson.M{"open": true},
		options.Find().SetProjection(bson.M{"participant_ids": 1}))
	if err != nil {
		return nil, apperr.Store("list held ids", err)
	}
	defer cur.Close(ctx)

	held := make(map[string]bool)
	for cur.Next(ctx) {
		var doc struct {
			ParticipantIDs []string `bson:"participant_ids"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Store("decode held ids", err)
		}
		for _, id := range doc.ParticipantIDs {
			held[id] = true
		}
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Store("list held ids", err)
	}
	return held, nil
}

// Approve moves a pending request to active, stamping the due date and
// the approving admin. Fails with InvalidState when the request is not
// pending, NotFound when it does not exist.
func (s *Store) Approve(ctx context.Context, id primitive.ObjectID, adminID, adminName string, dueDate time.Time) (models.FileRequest, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":           models.StatusActive,
		"approved_at":      now,
		"approved_by_id":   adminID,
		"approved_by_name": adminName,
		"due_date":         dueDate.UTC(),
		"updated_at":       now,
	}}
	return s.transition(ctx, id, statusAllowing(models.StatusActive), update, "approve")
}

// Reject moves a pending request to the terminal rejected state and
// releases its participant ids.
func (s *Store) Reject(ctx context.Context, id primitive.ObjectID, adminID, adminName, note string) (models.FileRequest, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":           models.StatusRejected,
		"open":             false,
		"rejected_at":      now,
		"rejected_by_id":   adminID,
		"rejected_by_name": adminName,
		"updated_at":       now,
	}
	if note != "" {
		set["rejection_note"] = note
	}
	return s.transition(ctx, id, statusAllowing(models.StatusRejected), bson.M{"$set": set}, "reject")
}

// MarkReturned closes an active or overdue checkout and releases its
// participant ids. A second call finds no matching status and fails
// with InvalidState rather than silently re-applying.
func (s *Store) MarkReturned(ctx context.Context, id primitive.ObjectID, actorID, actorName string) (models.FileRequest, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":           models.StatusReturned,
		"open":             false,
		"returned_at":      now,
		"returned_by_id":   actorID,
		"returned_by_name": actorName,
		"updated_at":       now,
	}}
	return s.transition(ctx, id, statusAllowing(models.StatusReturned), update, "return")
}

// MarkOverdue persists active → overdue. The open flag stays set: an
// overdue checkout still holds its participant ids until it is
// returned. Zero matches are fine here; the reconciler may race a
// concurrent return.
func (s *Store) MarkOverdue(ctx context.Context, id primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	filter := statusAllowing(models.StatusOverdue)
	filter["_id"] = id
	res, err := s.c.UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"status": models.StatusOverdue, "updated_at": now}})
	if err != nil {
		return false, apperr.Store("mark overdue", err)
	}
	return res.ModifiedCount > 0, nil
}

// Delete hard-deletes a request in any state.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Store("delete request", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("request %s", id.Hex())
	}
	return nil
}

// CountByStatus returns the number of requests per stored status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, apperr.Store("count requests", err)
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			N      int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, apperr.Store("decode counts", err)
		}
		counts[row.Status] = row.N
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Store("count requests", err)
	}
	return counts, nil
}

// statusAllowing builds the status filter for a conditional update
// from the transition table, so the stored writes and
// models.CanTransition can never encode different state machines.
func statusAllowing(to string) bson.M {
	from := bson.A{}
	for _, s := range []string{models.StatusPending, models.StatusActive, models.StatusOverdue} {
		if models.CanTransition(s, to) {
			from = append(from, s)
		}
	}
	if len(from) == 1 {
		return bson.M{"status": from[0]}
	}
	return bson.M{"status": bson.M{"$in": from}}
}

// transition performs a conditional status update and, when nothing
// matched, re-reads the document to tell "absent" from "wrong status".
func (s *Store) transition(ctx context.Context, id primitive.ObjectID, cond bson.M, update bson.M, op string) (models.FileRequest, error) {
	filter := bson.M{"_id": id}
	for k, v := range cond {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.FileRequest
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.FileRequest{}, apperr.Store(op+" request", err)
	}

	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return models.FileRequest{}, getErr // NotFound or Store
	}
	if models.IsTerminalStatus(current.Status) {
		return models.FileRequest{}, apperr.InvalidState("request is already %s", current.Status)
	}
	return models.FileRequest{}, apperr.InvalidState("cannot %s request in status %q", op, current.Status)
}

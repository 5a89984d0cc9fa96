// Package studyidstore provides access to the study_ids collection.
// Participant ids are stored upper-cased; uniqueness is enforced by the
// collection's unique index, not by a read-then-write check.
package studyidstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("study_ids")}
}

// Create inserts a new study id. The participant id is upper-cased and
// must be unique; a duplicate maps to a validation error.
func (s *Store) Create(ctx context.Context, sid models.StudyID) (models.StudyID, error) {
	now := time.Now().UTC()

	sid.ID = primitive.NewObjectID()
	sid.ParticipantID = strings.ToUpper(strings.TrimSpace(sid.ParticipantID))
	sid.ParticipantIDCI = text.Fold(sid.ParticipantID)
	if sid.Status == "" {
		sid.Status = "active"
	}
	sid.CreatedAt = now
	sid.UpdatedAt = &now

	if sid.ParticipantID == "" {
		return models.StudyID{}, apperr.Validation("participant id is required")
	}

	if _, err := s.c.InsertOne(ctx, sid); err != nil {
		if wafflemongo.IsDup(err) {
			return models.StudyID{}, apperr.Validation("participant id %s already exists", sid.ParticipantID)
		}
		return models.StudyID{}, apperr.Store("insert study id", err)
	}
	return sid, nil
}

// CreateMany inserts a batch, skipping ids that already exist. Returns
// the inserted records and the participant ids that were skipped as
// duplicates.
func (s *Store) CreateMany(ctx context.Context, sids []models.StudyID) (inserted []models.StudyID, skipped []string, err error) {
	for _, sid := range sids {
		created, cerr := s.Create(ctx, sid)
		if cerr != nil {
			if errors.Is(cerr, apperr.ErrValidation) {
				skipped = append(skipped, strings.ToUpper(strings.TrimSpace(sid.ParticipantID)))
				continue
			}
			return inserted, skipped, cerr
		}
		inserted = append(inserted, created)
	}
	return inserted, skipped, nil
}

// GetByID returns a study id by document id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.StudyID, error) {
	var sid models.StudyID
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.StudyID{}, apperr.NotFound("study id %s", id.Hex())
	}
	if err != nil {
		return models.StudyID{}, apperr.Store("get study id", err)
	}
	return sid, nil
}

// List returns study ids, optionally only active ones and optionally
// filtered by a case-insensitive search over participant id and
// description. Sorted by participant id.
func (s *Store) List(ctx context.Context, activeOnly bool, search string) ([]models.StudyID, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	if q := strings.TrimSpace(search); q != "" {
		folded := text.Fold(q)
		filter["$or"] = bson.A{
			bson.M{"participant_id_ci": bson.M{"$regex": folded}},
			bson.M{"description": bson.M{"$regex": q, "$options": "i"}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "participant_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Store("list study ids", err)
	}
	defer cur.Close(ctx)

	var out []models.StudyID
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Store("decode study ids", err)
	}
	return out, nil
}

// GetActiveByParticipantIDs returns the active study ids among the
// given participant ids, keyed by participant id. Used by submission
// validation.
func (s *Store) GetActiveByParticipantIDs(ctx context.Context, participantIDs []string) (map[string]models.StudyID, error) {
	if len(participantIDs) == 0 {
		return map[string]models.StudyID{}, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"participant_id": bson.M{"$in": participantIDs},
		"is_active":      true,
	})
	if err != nil {
		return nil, apperr.Store("lookup study ids", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]models.StudyID)
	for cur.Next(ctx) {
		var sid models.StudyID
		if err := cur.Decode(&sid); err != nil {
			return nil, apperr.Store("decode study id", err)
		}
		out[sid.ParticipantID] = sid
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Store("lookup study ids", err)
	}
	return out, nil
}

// Update modifies mutable fields and refreshes UpdatedAt. A changed
// participant id is re-cased and must remain unique.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, mut models.StudyID) error {
	set := bson.M{}

	if pid := strings.ToUpper(strings.TrimSpace(mut.ParticipantID)); pid != "" {
		set["participant_id"] = pid
		set["participant_id_ci"] = text.Fold(pid)
	}
	set["description"] = mut.Description
	set["category"] = mut.Category
	set["notes"] = mut.Notes
	if mut.Status != "" {
		set["status"] = mut.Status
	}
	set["is_active"] = mut.IsActive

	now := time.Now().UTC()
	set["updated_at"] = now

	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.Validation("participant id %s already exists", mut.ParticipantID)
		}
		return apperr.Store("update study id", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("study id %s", id.Hex())
	}
	return nil
}

// Delete removes a study id.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Store("delete study id", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("study id %s", id.Hex())
	}
	return nil
}

package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, id, name, email, role string) models.User {
	f.t.Helper()

	user := models.User{
		ID:            id,
		Email:         strings.ToLower(email),
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		Role:          role,
		LastLogin:     time.Now().UTC(),
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, id, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, id, name, email, models.RoleAdmin)
}

// CreateStudyID creates an active study id with the given participant id.
func (f *Fixtures) CreateStudyID(ctx context.Context, participantID string) models.StudyID {
	f.t.Helper()

	now := time.Now().UTC()
	pid := strings.ToUpper(participantID)
	sid := models.StudyID{
		ID:              primitive.NewObjectID(),
		ParticipantID:   pid,
		ParticipantIDCI: text.Fold(pid),
		Description:     "Test participant",
		Status:          "active",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       &now,
	}

	if _, err := f.db.Collection("study_ids").InsertOne(ctx, sid); err != nil {
		f.t.Fatalf("failed to create test study id: %v", err)
	}
	return sid
}

// CreateRequest creates a file request in the given status. Open is
// set to match how the lifecycle leaves it for that status.
func (f *Fixtures) CreateRequest(ctx context.Context, userID string, participantIDs []string, status string) models.FileRequest {
	f.t.Helper()

	now := time.Now().UTC()
	upper := make([]string, len(participantIDs))
	for i, pid := range participantIDs {
		upper[i] = strings.ToUpper(pid)
	}

	req := models.FileRequest{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		UserEmail:      "user@test.com",
		UserName:       "Test User",
		ParticipantIDs: upper,
		Reason:         "Test request",
		Status:         status,
		Open:           status == models.StatusPending || status == models.StatusActive || status == models.StatusOverdue,
		CreatedAt:      now,
		UpdatedAt:      &now,
	}
	if status == models.StatusActive || status == models.StatusOverdue {
		approved := now.Add(-time.Hour)
		due := approved.Add(24 * time.Hour)
		if status == models.StatusOverdue {
			due = now.Add(-time.Hour)
		}
		req.ApprovedAt = &approved
		req.ApprovedByID = "admin-1"
		req.ApprovedByName = "Test Admin"
		req.DueDate = &due
	}

	if _, err := f.db.Collection("file_requests").InsertOne(ctx, req); err != nil {
		f.t.Fatalf("failed to create test request: %v", err)
	}
	return req
}

// CreateNotification creates a notification for the given user.
func (f *Fixtures) CreateNotification(ctx context.Context, userID, notifType, title string) models.Notification {
	f.t.Helper()

	n := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   "Test message",
		CreatedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("notifications").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}

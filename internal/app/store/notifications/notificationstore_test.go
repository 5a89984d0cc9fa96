package notificationstore_test

import (
	"errors"
	"testing"
	"time"

	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/studytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestStore(t *testing.T) *notificationstore.Store {
	t.Helper()
	return notificationstore.New(testutil.SetupTestDB(t))
}

func insert(t *testing.T, store *notificationstore.Store, userID, typ, title string) models.Notification {
	t.Helper()
	n, err := store.Insert(testutil.TestContext(t), models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: "message",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return n
}

func TestInsert_RejectsUnknownType(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Insert(testutil.TestContext(t), models.Notification{
		UserID: "u1",
		Type:   "bogus",
		Title:  "x",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestListByUser_ExcludesDeletedAndOtherUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	mine := insert(t, store, "u1", models.NotifyRequestApproved, "Request Approved! 🎉")
	deleted := insert(t, store, "u1", models.NotifyFileOverdue, "⚠️ Files Overdue!")
	insert(t, store, "u2", models.NotifyRequestSubmitted, "Request Submitted")

	if err := store.SoftDelete(ctx, deleted.ID, "u1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	got, err := store.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Errorf("list: got %+v", got)
	}
}

func TestMarkRead_ScopedToOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	n := insert(t, store, "u1", models.NotifyRequestApproved, "Request Approved! 🎉")

	err := store.MarkRead(ctx, n.ID, "u2")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cross-user mark read: got %v, want not found", err)
	}

	if err := store.MarkRead(ctx, n.ID, "u1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	unread, err := store.CountUnread(ctx, "u1")
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread: got %d, want 0", unread)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := newTestStore(t)
	ctx := testutil.TestContext(t)

	insert(t, store, "u1", models.NotifyFileDueSoon, "Files Due Soon ⏰")
	insert(t, store, "u1", models.NotifyFileOverdue, "⚠️ Files Overdue!")
	insert(t, store, "u2", models.NotifyFileReturned, "Files Returned ✅")

	n, err := store.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if n != 2 {
		t.Errorf("modified: got %d, want 2", n)
	}

	otherUnread, err := store.CountUnread(ctx, "u2")
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if otherUnread != 1 {
		t.Errorf("u2 unread: got %d, want 1", otherUnread)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx := testutil.TestContext(t)

	insert2 := func(created time.Time) {
		t.Helper()
		_, err := db.Collection("notifications").InsertOne(ctx, models.Notification{
			ID:        primitive.NewObjectID(),
			UserID:    "u1",
			Type:      models.NotifyRequestSubmitted,
			Title:     "old",
			CreatedAt: created,
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	insert2(time.Now().UTC().AddDate(0, 0, -40))
	insert2(time.Now().UTC())

	removed, err := store.PurgeOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}

	var remaining int64
	remaining, err = db.Collection("notifications").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining: got %d, want 1", remaining)
	}
}

package lifecycle_test

import (
	"testing"
	"time"

	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/notify"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/indexes"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/studytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type reconcilerEnv struct {
	reconciler    *lifecycle.Reconciler
	requests      *requeststore.Store
	notifications *notificationstore.Store
	users         *userstore.Store
	watcher       *requeststore.Watcher
	fx            *testutil.Fixtures
}

func newReconcilerEnv(t *testing.T, cfg lifecycle.ReconcilerConfig) *reconcilerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if err := indexes.EnsureAll(testutil.TestContext(t), db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	requests := requeststore.New(db)
	notifications := notificationstore.New(db)
	users := userstore.New(db)
	notifier := notify.New(notifications, users, zap.NewNop())
	watcher := requeststore.NewWatcher(requests, time.Minute, zap.NewNop())

	if cfg.DueSoonWindow == 0 {
		cfg.DueSoonWindow = 2 * time.Hour
	}

	return &reconcilerEnv{
		reconciler:    lifecycle.NewReconciler(requests, notifications, watcher, notifier, cfg, zap.NewNop()),
		requests:      requests,
		notifications: notifications,
		users:         users,
		watcher:       watcher,
		fx:            testutil.NewFixtures(t, db),
	}
}

// activeRequest creates an approved checkout with the given due date.
func activeRequest(t *testing.T, env *reconcilerEnv, userID, pid string, due time.Time) models.FileRequest {
	t.Helper()
	ctx := testutil.TestContext(t)

	created, err := env.requests.Create(ctx, models.FileRequest{
		UserID:         userID,
		UserEmail:      userID + "@test.com",
		UserName:       "Test User",
		ParticipantIDs: []string{pid},
		Reason:         "test",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	approved, err := env.requests.Approve(ctx, created.ID, "admin-1", "Admin", due)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	return approved
}

func TestSweep_MarksOverdueAndNotifies(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{})
	ctx := testutil.TestContext(t)

	env.fx.CreateAdmin(ctx, "admin-1", "Admin", "a1@test.com")

	now := time.Now().UTC()
	past := activeRequest(t, env, "u1", "STUDY-001", now.Add(-time.Hour))
	future := activeRequest(t, env, "u2", "STUDY-002", now.Add(20*time.Hour))

	env.reconciler.Sweep(ctx, now)

	got, err := env.requests.GetByID(ctx, past.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.StatusOverdue {
		t.Errorf("past-due status: got %q, want overdue", got.Status)
	}
	if !got.Open {
		t.Error("overdue checkout must keep holding its ids")
	}

	stillActive, err := env.requests.GetByID(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stillActive.Status != models.StatusActive {
		t.Errorf("future-due status: got %q, want active", stillActive.Status)
	}

	// Requester and admin both hear about the violation.
	userNotifs, err := env.notifications.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(userNotifs) != 1 || userNotifs[0].Type != models.NotifyFileOverdue {
		t.Errorf("user notifications: got %+v", userNotifs)
	}
	adminNotifs, err := env.notifications.ListByUser(ctx, "admin-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(adminNotifs) != 1 {
		t.Errorf("admin notifications: got %+v", adminNotifs)
	}
}

func TestSweep_DueSoonOncePerProcess(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{})
	ctx := testutil.TestContext(t)

	now := time.Now().UTC()
	activeRequest(t, env, "u1", "STUDY-001", now.Add(90*time.Minute))

	env.reconciler.Sweep(ctx, now)
	env.reconciler.Sweep(ctx, now.Add(time.Minute))

	got, err := env.notifications.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("due-soon notifications: got %d, want 1", len(got))
	}
	if got[0].Type != models.NotifyFileDueSoon {
		t.Errorf("type: got %q", got[0].Type)
	}
}

func TestSweep_DueSoonThenOverdue(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{})
	ctx := testutil.TestContext(t)

	now := time.Now().UTC()
	req := activeRequest(t, env, "u1", "STUDY-001", now.Add(time.Hour))

	env.reconciler.Sweep(ctx, now)
	env.reconciler.Sweep(ctx, now.Add(2*time.Hour))

	got, err := env.requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.StatusOverdue {
		t.Errorf("status: got %q, want overdue", got.Status)
	}

	notifs, err := env.notifications.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	types := map[string]int{}
	for _, n := range notifs {
		types[n.Type]++
	}
	if types[models.NotifyFileDueSoon] != 1 || types[models.NotifyFileOverdue] != 1 {
		t.Errorf("notification types: got %v", types)
	}
}

func TestSweep_ReturnedBeforeScanIsIgnored(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{})
	ctx := testutil.TestContext(t)

	now := time.Now().UTC()
	req := activeRequest(t, env, "u1", "STUDY-001", now.Add(-time.Hour))

	if _, err := env.requests.MarkReturned(ctx, req.ID, "admin-1", "Admin"); err != nil {
		t.Fatalf("MarkReturned failed: %v", err)
	}

	env.reconciler.Sweep(ctx, now)

	got, err := env.requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.StatusReturned {
		t.Errorf("status: got %q, want returned", got.Status)
	}

	notifs, err := env.notifications.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	for _, n := range notifs {
		if n.Type == models.NotifyFileOverdue {
			t.Errorf("returned checkout must not trigger overdue alerts: %+v", n)
		}
	}
}

func TestSweep_PurgesExpiredNotifications(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{
		NotificationRetention: 30 * 24 * time.Hour,
	})
	ctx := testutil.TestContext(t)

	old := env.fx.CreateNotification(ctx, "u1", models.NotifyRequestSubmitted, "old")
	_, err := env.fx.DB().Collection("notifications").UpdateByID(ctx, old.ID,
		bson.M{"$set": bson.M{"created_at": time.Now().UTC().AddDate(0, 0, -60)}})
	if err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	env.fx.CreateNotification(ctx, "u1", models.NotifyRequestSubmitted, "fresh")

	env.reconciler.Sweep(ctx, time.Now().UTC())

	got, err := env.notifications.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Errorf("after purge: got %+v", got)
	}
}

func TestReconciler_WatcherDriven(t *testing.T) {
	env := newReconcilerEnv(t, lifecycle.ReconcilerConfig{})
	ctx := testutil.TestContext(t)

	now := time.Now().UTC()
	req := activeRequest(t, env, "u1", "STUDY-001", now.Add(-time.Hour))

	env.reconciler.Start()
	defer env.reconciler.Stop()
	env.watcher.Start()
	defer env.watcher.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		// Drive deliveries directly instead of waiting out the poll interval.
		env.watcher.Poll()

		got, err := env.requests.GetByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status == models.StatusOverdue {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("checkout never marked overdue, status %q", got.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

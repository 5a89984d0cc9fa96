package lifecycle_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/notify"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/indexes"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/studytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type testEnv struct {
	controller    *lifecycle.Controller
	requests      *requeststore.Store
	studyIDs      *studyidstore.Store
	notifications *notificationstore.Store
	users         *userstore.Store
	fx            *testutil.Fixtures
}

func newTestEnv(t *testing.T, cfg lifecycle.Config) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if err := indexes.EnsureAll(testutil.TestContext(t), db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	requests := requeststore.New(db)
	studyIDs := studyidstore.New(db)
	notifications := notificationstore.New(db)
	users := userstore.New(db)
	notifier := notify.New(notifications, users, zap.NewNop())

	if cfg.CheckoutWindow == 0 {
		cfg.CheckoutWindow = 24 * time.Hour
	}

	return &testEnv{
		controller:    lifecycle.NewController(requests, studyIDs, notifier, cfg, zap.NewNop()),
		requests:      requests,
		studyIDs:      studyIDs,
		notifications: notifications,
		users:         users,
		fx:            testutil.NewFixtures(t, db),
	}
}

var (
	requester = lifecycle.Actor{ID: "u1", Name: "Test User", Email: "u1@test.com", Role: models.RoleUser}
	admin     = lifecycle.Actor{ID: "admin-1", Name: "Test Admin", Email: "admin@test.com", Role: models.RoleAdmin}
)

func TestSubmit_FullLifecycle(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")
	env.fx.CreateStudyID(ctx, "STUDY-002")

	created, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"study-001", " STUDY-002 ", "study-001"},
		Reason:         "baseline analysis",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if created.Status != models.StatusPending {
		t.Errorf("status: got %q, want pending", created.Status)
	}
	if len(created.ParticipantIDs) != 2 {
		t.Errorf("participant ids not deduped/upper-cased: %v", created.ParticipantIDs)
	}

	approved, err := env.controller.Approve(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.DueDate == nil || approved.ApprovedAt == nil {
		t.Fatal("approval stamps missing")
	}
	window := approved.DueDate.Sub(*approved.ApprovedAt)
	if (window - 24*time.Hour).Abs() > time.Minute {
		t.Errorf("checkout window: got %v, want ~24h", window)
	}

	returned, err := env.controller.MarkReturned(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("MarkReturned failed: %v", err)
	}
	if returned.Status != models.StatusReturned {
		t.Errorf("status: got %q, want returned", returned.Status)
	}

	// The ids are free again.
	if _, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "followup",
	}); err != nil {
		t.Fatalf("Submit after return failed: %v", err)
	}
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	cases := []struct {
		name string
		in   lifecycle.SubmitInput
	}{
		{"no ids", lifecycle.SubmitInput{Reason: "x"}},
		{"no reason", lifecycle.SubmitInput{ParticipantIDs: []string{"STUDY-001"}}},
		{"unknown id", lifecycle.SubmitInput{ParticipantIDs: []string{"STUDY-999"}, Reason: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.controller.Submit(ctx, requester, tc.in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestSubmit_InactiveStudyID(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)

	if _, err := env.studyIDs.Create(ctx, models.StudyID{ParticipantID: "STUDY-001", IsActive: false}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestSubmit_HeldIDRejected(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	if _, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "first",
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	other := lifecycle.Actor{ID: "u2", Name: "Other", Email: "u2@test.com", Role: models.RoleUser}
	_, err := env.controller.Submit(ctx, other, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "second",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "STUDY-001") {
		t.Errorf("error should name the held id, got %q", err)
	}
}

func TestSubmit_OnBehalfRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	_, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
		OnBehalfOfID:   "u2",
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestSubmit_AdminOnBehalf(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	created, err := env.controller.Submit(ctx, admin, lifecycle.SubmitInput{
		ParticipantIDs:  []string{"STUDY-001"},
		Reason:          "on behalf",
		OnBehalfOfID:    "u2",
		OnBehalfOfEmail: "U2@Test.com",
		OnBehalfOfName:  "User Two",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if created.UserID != "u2" || created.UserEmail != "u2@test.com" {
		t.Errorf("attribution: got %+v", created)
	}
	if !created.RequestedByAdmin || created.AdminID != admin.ID {
		t.Errorf("admin stamp missing: %+v", created)
	}
}

func TestSubmit_ManualEntry(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	created, err := env.controller.Submit(ctx, admin, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "walk-in",
		ManualEntry:    true,
		OnBehalfOfName: "Visiting Researcher",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !created.ManualEntry {
		t.Error("manual entry flag missing")
	}
	if created.UserID != admin.ID {
		t.Errorf("manual entry should be attributed to the admin, got %q", created.UserID)
	}
	if created.UserName != "Visiting Researcher" {
		t.Errorf("user name: got %q", created.UserName)
	}
}

func TestApprove_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	created, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err = env.controller.Approve(ctx, requester, created.ID)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestReject_ThenApprove_InvalidState(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	created, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rejected, err := env.controller.Reject(ctx, admin, created.ID, "incomplete paperwork")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.RejectionNote != "incomplete paperwork" {
		t.Errorf("rejection note: got %q", rejected.RejectionNote)
	}

	_, err = env.controller.Approve(ctx, admin, created.ID)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("approve after reject: got %v, want invalid state", err)
	}
}

func TestMarkReturned_RequesterPolicy(t *testing.T) {
	t.Run("disallowed by default", func(t *testing.T) {
		env := newTestEnv(t, lifecycle.Config{})
		ctx := testutil.TestContext(t)
		env.fx.CreateStudyID(ctx, "STUDY-001")

		created, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
			ParticipantIDs: []string{"STUDY-001"},
			Reason:         "x",
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := env.controller.Approve(ctx, admin, created.ID); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}

		if _, err := env.controller.MarkReturned(ctx, requester, created.ID); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("got %v, want forbidden", err)
		}
	})

	t.Run("own checkout when enabled", func(t *testing.T) {
		env := newTestEnv(t, lifecycle.Config{AllowRequesterReturn: true})
		ctx := testutil.TestContext(t)
		env.fx.CreateStudyID(ctx, "STUDY-001")
		env.fx.CreateStudyID(ctx, "STUDY-002")

		mine, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
			ParticipantIDs: []string{"STUDY-001"},
			Reason:         "mine",
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := env.controller.Approve(ctx, admin, mine.ID); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}

		other := lifecycle.Actor{ID: "u2", Name: "Other", Email: "u2@test.com", Role: models.RoleUser}
		theirs, err := env.controller.Submit(ctx, other, lifecycle.SubmitInput{
			ParticipantIDs: []string{"STUDY-002"},
			Reason:         "theirs",
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := env.controller.Approve(ctx, admin, theirs.ID); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}

		if _, err := env.controller.MarkReturned(ctx, requester, mine.ID); err != nil {
			t.Fatalf("own return failed: %v", err)
		}
		if _, err := env.controller.MarkReturned(ctx, requester, theirs.ID); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("cross-user return: got %v, want forbidden", err)
		}
	})
}

func TestMarkReturned_DoubleReturn(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")

	created, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := env.controller.Approve(ctx, admin, created.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := env.controller.MarkReturned(ctx, admin, created.ID); err != nil {
		t.Fatalf("MarkReturned failed: %v", err)
	}

	_, err = env.controller.MarkReturned(ctx, admin, created.ID)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("second return: got %v, want invalid state", err)
	}

	// One returned notification, not two.
	got, err := env.notifications.ListByUser(ctx, requester.ID, 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	returnedCount := 0
	for _, n := range got {
		if n.Type == models.NotifyFileReturned {
			returnedCount++
		}
	}
	if returnedCount != 1 {
		t.Errorf("returned notifications: got %d, want 1", returnedCount)
	}
}

func TestGetAndList_Scoping(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")
	env.fx.CreateStudyID(ctx, "STUDY-002")

	mine, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "mine",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	other := lifecycle.Actor{ID: "u2", Name: "Other", Email: "u2@test.com", Role: models.RoleUser}
	theirs, err := env.controller.Submit(ctx, other, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-002"},
		Reason:         "theirs",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Users cannot see others' requests, and cannot tell they exist.
	if _, err := env.controller.Get(ctx, requester, theirs.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cross-user get: got %v, want not found", err)
	}
	if _, err := env.controller.Get(ctx, requester, mine.ID); err != nil {
		t.Fatalf("own get failed: %v", err)
	}

	userList, err := env.controller.List(ctx, requester, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(userList) != 1 {
		t.Errorf("user list: got %d, want 1", len(userList))
	}

	adminList, err := env.controller.List(ctx, admin, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(adminList) != 2 {
		t.Errorf("admin list: got %d, want 2", len(adminList))
	}
}

func TestAvailableStudyIDs_ExcludesHeld(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)
	env.fx.CreateStudyID(ctx, "STUDY-001")
	env.fx.CreateStudyID(ctx, "STUDY-002")

	if _, err := env.controller.Submit(ctx, requester, lifecycle.SubmitInput{
		ParticipantIDs: []string{"STUDY-001"},
		Reason:         "x",
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	available, err := env.controller.AvailableStudyIDs(ctx)
	if err != nil {
		t.Fatalf("AvailableStudyIDs failed: %v", err)
	}
	if len(available) != 1 || available[0].ParticipantID != "STUDY-002" {
		t.Errorf("available: got %+v", available)
	}
}

func TestDelete_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, lifecycle.Config{})
	ctx := testutil.TestContext(t)

	if err := env.controller.Delete(ctx, requester, primitive.NewObjectID()); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
	if err := env.controller.Delete(ctx, admin, primitive.NewObjectID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

package notifications_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/studytrack/internal/app/features/notifications"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/studytrack/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*notifications.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return notifications.NewHandler(notificationstore.New(db), zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestServeList(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.RegularUser()
	fx.CreateNotification(ctx, user.ID, models.NotifyRequestApproved, "Request Approved! 🎉")
	fx.CreateNotification(ctx, "someone-else", models.NotifyRequestSubmitted, "Request Submitted")

	req := testutil.NewAuthenticatedRequest("GET", "/api/notifications", user)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Notifications []struct {
			models.Notification
			TimeAgo string `json:"time_ago"`
		} `json:"notifications"`
		UnreadCount int64 `json:"unread_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(resp.Notifications))
	}
	if resp.Notifications[0].TimeAgo != "Just now" {
		t.Errorf("time_ago: got %q", resp.Notifications[0].TimeAgo)
	}
	if resp.UnreadCount != 1 {
		t.Errorf("unread_count: got %d, want 1", resp.UnreadCount)
	}
}

func TestServeMarkReadAndDelete(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.RegularUser()
	n := fx.CreateNotification(ctx, user.ID, models.NotifyFileDueSoon, "Files Due Soon ⏰")

	read := httptest.NewRequest("POST", "/api/notifications/"+n.ID.Hex()+"/read", nil)
	read = testutil.WithUser(read, user)
	read = testutil.WithChiURLParam(read, "id", n.ID.Hex())
	readRec := httptest.NewRecorder()
	h.ServeMarkRead(readRec, read)
	if readRec.Code != http.StatusOK {
		t.Fatalf("mark read: got %d: %s", readRec.Code, readRec.Body.String())
	}

	// Another user cannot delete it.
	foreign := httptest.NewRequest("DELETE", "/api/notifications/"+n.ID.Hex(), nil)
	foreign = testutil.WithUser(foreign, testutil.RegularUser())
	foreign = testutil.WithChiURLParam(foreign, "id", n.ID.Hex())
	foreignRec := httptest.NewRecorder()
	h.ServeDelete(foreignRec, foreign)
	if foreignRec.Code != http.StatusNotFound {
		t.Fatalf("cross-user delete: got %d, want 404", foreignRec.Code)
	}

	del := httptest.NewRequest("DELETE", "/api/notifications/"+n.ID.Hex(), nil)
	del = testutil.WithUser(del, user)
	del = testutil.WithChiURLParam(del, "id", n.ID.Hex())
	delRec := httptest.NewRecorder()
	h.ServeDelete(delRec, del)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete: got %d: %s", delRec.Code, delRec.Body.String())
	}

	list := testutil.NewAuthenticatedRequest("GET", "/api/notifications", user)
	listRec := httptest.NewRecorder()
	h.ServeList(listRec, list)
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notifications) != 0 {
		t.Errorf("deleted notification still listed: %+v", resp.Notifications)
	}
}

func TestServeMarkAllRead(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.RegularUser()
	fx.CreateNotification(ctx, user.ID, models.NotifyFileOverdue, "⚠️ Files Overdue!")
	fx.CreateNotification(ctx, user.ID, models.NotifyFileReturned, "Files Returned ✅")

	req := httptest.NewRequest("POST", "/api/notifications/read_all", nil)
	req = testutil.WithUser(req, user)
	rec := httptest.NewRecorder()
	h.ServeMarkAllRead(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Marked int64 `json:"marked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Marked != 2 {
		t.Errorf("marked: got %d, want 2", resp.Marked)
	}
}

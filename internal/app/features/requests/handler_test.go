package requests_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studytrack/internal/app/features/requests"
	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/notify"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/indexes"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/dalemusser/studytrack/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*requests.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if err := indexes.EnsureAll(testutil.TestContext(t), db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	reqStore := requeststore.New(db)
	sidStore := studyidstore.New(db)
	notifier := notify.New(notificationstore.New(db), userstore.New(db), zap.NewNop())
	controller := lifecycle.NewController(reqStore, sidStore, notifier, lifecycle.Config{
		CheckoutWindow: 24 * time.Hour,
	}, zap.NewNop())

	return requests.NewHandler(controller, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestServeSubmit(t *testing.T) {
	h, fx := newTestHandler(t)
	fx.CreateStudyID(testutil.TestContext(t), "STUDY-001")

	body := `{"participant_ids":["study-001"],"reason":"baseline analysis"}`
	req := httptest.NewRequest("POST", "/api/requests", strings.NewReader(body))
	req = testutil.WithUser(req, testutil.RegularUser())
	rec := httptest.NewRecorder()

	h.ServeSubmit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status         string   `json:"status"`
		ParticipantIDs []string `json:"participant_ids"`
		StatusColor    string   `json:"status_color"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.StatusPending {
		t.Errorf("status: got %q, want pending", resp.Status)
	}
	if len(resp.ParticipantIDs) != 1 || resp.ParticipantIDs[0] != "STUDY-001" {
		t.Errorf("participant ids: got %v", resp.ParticipantIDs)
	}
	if resp.StatusColor == "" {
		t.Error("status_color missing from projection")
	}
}

func TestServeSubmit_ValidationError(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/requests", strings.NewReader(`{"reason":"x"}`))
	req = testutil.WithUser(req, testutil.RegularUser())
	rec := httptest.NewRecorder()

	h.ServeSubmit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("error message missing")
	}
}

func TestServeApprove_ThenConflictOnReject(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	fx.CreateStudyID(ctx, "STUDY-001")

	user := testutil.RegularUser()
	admin := testutil.AdminUser()

	submit := httptest.NewRequest("POST", "/api/requests",
		strings.NewReader(`{"participant_ids":["STUDY-001"],"reason":"x"}`))
	submit = testutil.WithUser(submit, user)
	submitRec := httptest.NewRecorder()
	h.ServeSubmit(submitRec, submit)
	if submitRec.Code != http.StatusCreated {
		t.Fatalf("submit: got %d: %s", submitRec.Code, submitRec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(submitRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	approve := httptest.NewRequest("POST", "/api/requests/"+created.ID+"/approve", nil)
	approve = testutil.WithUser(approve, admin)
	approve = testutil.WithChiURLParam(approve, "id", created.ID)
	approveRec := httptest.NewRecorder()
	h.ServeApprove(approveRec, approve)
	if approveRec.Code != http.StatusOK {
		t.Fatalf("approve: got %d: %s", approveRec.Code, approveRec.Body.String())
	}

	// Rejecting an already-active request conflicts.
	reject := httptest.NewRequest("POST", "/api/requests/"+created.ID+"/reject", nil)
	reject = testutil.WithUser(reject, admin)
	reject = testutil.WithChiURLParam(reject, "id", created.ID)
	rejectRec := httptest.NewRecorder()
	h.ServeReject(rejectRec, reject)
	if rejectRec.Code != http.StatusConflict {
		t.Fatalf("reject after approve: got %d, want 409: %s", rejectRec.Code, rejectRec.Body.String())
	}
}

func TestServeApprove_NonAdminForbidden(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	fx.CreateStudyID(ctx, "STUDY-001")
	created := fx.CreateRequest(ctx, "u1", []string{"STUDY-001"}, models.StatusPending)

	req := httptest.NewRequest("POST", "/api/requests/"+created.ID.Hex()+"/approve", nil)
	req = testutil.WithUser(req, testutil.RegularUser())
	req = testutil.WithChiURLParam(req, "id", created.ID.Hex())
	rec := httptest.NewRecorder()

	h.ServeApprove(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestServeList_UserScoped(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.RegularUser()
	fx.CreateRequest(ctx, user.ID, []string{"STUDY-001"}, models.StatusPending)
	fx.CreateRequest(ctx, "someone-else", []string{"STUDY-002"}, models.StatusPending)

	req := testutil.NewAuthenticatedRequest("GET", "/api/requests", user)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Requests) != 1 {
		t.Errorf("requests: got %d, want 1", len(resp.Requests))
	}
}

func TestServeList_DerivedOverdue(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.RegularUser()
	fx.CreateRequest(ctx, user.ID, []string{"STUDY-001"}, models.StatusOverdue)

	req := testutil.NewAuthenticatedRequest("GET", "/api/requests", user)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	var resp struct {
		Requests []struct {
			IsOverdue     bool   `json:"is_overdue"`
			TimeRemaining string `json:"time_remaining"`
			StatusColor   string `json:"status_color"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Requests) != 1 {
		t.Fatalf("requests: got %d, want 1", len(resp.Requests))
	}
	if !resp.Requests[0].IsOverdue {
		t.Error("is_overdue not derived")
	}
	if !strings.Contains(resp.Requests[0].TimeRemaining, "overdue") {
		t.Errorf("time_remaining: got %q", resp.Requests[0].TimeRemaining)
	}
	if resp.Requests[0].StatusColor != "danger" {
		t.Errorf("status_color: got %q", resp.Requests[0].StatusColor)
	}
}

func TestServeExport_CSV(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	fx.CreateRequest(ctx, "u1", []string{"STUDY-001"}, models.StatusReturned)

	req := testutil.NewAuthenticatedRequest("GET", "/api/requests/export", testutil.AdminUser())
	rec := httptest.NewRecorder()
	h.ServeExport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type: got %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "ID,User,Participant IDs,Status,Created,Due Date,Returned") {
		t.Errorf("csv header missing: %q", body)
	}
	if !strings.Contains(body, "STUDY-001") {
		t.Errorf("csv row missing: %q", body)
	}
}

func TestServeAvailable(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx := testutil.TestContext(t)
	fx.CreateStudyID(ctx, "STUDY-001")
	fx.CreateStudyID(ctx, "STUDY-002")
	fx.CreateRequest(ctx, "u1", []string{"STUDY-001"}, models.StatusActive)

	req := testutil.NewAuthenticatedRequest("GET", "/api/requests/available", testutil.RegularUser())
	rec := httptest.NewRecorder()
	h.ServeAvailable(rec, req)

	var resp struct {
		StudyIDs []models.StudyID `json:"study_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.StudyIDs) != 1 || resp.StudyIDs[0].ParticipantID != "STUDY-002" {
		t.Errorf("available: got %+v", resp.StudyIDs)
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

// ── helpers ──

func setupTestSessionService() (SessionService, *testRepos) {
	repo, m := newTestRepository()
	return NewSessionService(repo, zap.NewNop()), m
}

var staffCaller = Caller{UserID: "staff-1", Role: model.RoleStaff, DepartmentID: testDeptNursing}

func (m *testRepos) seedSession(id, title, status string) *model.Session {
	s := model.Session{
		SessionID:          id,
		Title:              title,
		DurationMinutes:    30,
		PassMark:           70,
		Status:             status,
		CertificateEnabled: true,
	}
	s.Version = 1
	m.sessions.sessions[id] = s
	return &s
}

// seedQuestion stores a question whose correct option is always index 1.
func (m *testRepos) seedQuestion(id, sessionID, category string, points int) {
	m.questions.questions[id] = model.QuestionBank{
		QuestionBankID: id,
		SessionID:      sessionID,
		Category:       category,
		Question:       "Question " + id,
		Options:        datatypes.JSONSlice[string]{"wrong", "right", "also wrong"},
		CorrectOption:  1,
		Points:         points,
	}
}

// ── Create / Get / List ──

func TestSessionService_Create_Defaults(t *testing.T) {
	svc, _ := setupTestSessionService()

	resp, err := svc.Create(context.Background(), &dto.CreateSessionRequest{
		Title:           " Induction ",
		DurationMinutes: 45,
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create should succeed, got %v", err)
	}
	if resp.Title != "Induction" || resp.Status != model.SessionStatusDraft {
		t.Errorf("unexpected session %+v", resp)
	}
	if resp.PassMark != 70 || !resp.CertificateEnabled {
		t.Errorf("expected pass mark 70 and certificates on, got %d/%v", resp.PassMark, resp.CertificateEnabled)
	}
	if resp.Version != 1 {
		t.Errorf("expected version 1, got %d", resp.Version)
	}
}

func TestSessionService_Create_InvalidWindow(t *testing.T) {
	svc, _ := setupTestSessionService()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.Create(context.Background(), &dto.CreateSessionRequest{
		Title: "Bad", DurationMinutes: 10, StartsAt: &start, EndsAt: &end,
	}, "admin-1")
	if !errors.Is(err, ErrSessionWindowInvalid) {
		t.Errorf("expected ErrSessionWindowInvalid, got %v", err)
	}
}

func TestSessionService_Get_DraftHiddenFromStaff(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-draft", "Draft", model.SessionStatusDraft)
	m.seedQuestion("q-1", "s-draft", model.CategoryCommunity, 1)

	if _, err := svc.Get(context.Background(), "s-draft", staffCaller); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("staff must not see drafts, got %v", err)
	}
	resp, err := svc.Get(context.Background(), "s-draft", adminCaller)
	if err != nil {
		t.Fatalf("admin Get failed: %v", err)
	}
	if resp.QuestionCount != 1 || resp.CategoryCounts[model.CategoryCommunity] != 1 {
		t.Errorf("expected one community question, got %+v", resp.CategoryCounts)
	}
}

func TestSessionService_List_StaffSeesOpenPublishedOnly(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "A open", model.SessionStatusPublished)
	m.seedSession("s-2", "B draft", model.SessionStatusDraft)
	m.seedSession("s-3", "C closed", model.SessionStatusClosed)
	future := m.seedSession("s-4", "D future", model.SessionStatusPublished)
	starts := time.Now().Add(24 * time.Hour)
	future.StartsAt = &starts
	m.sessions.sessions["s-4"] = *future

	sessions, total, err := svc.List(context.Background(), &dto.SessionListRequest{Status: model.SessionStatusDraft}, staffCaller)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || sessions[0].ID != "s-1" {
		t.Errorf("expected only the open session, got %+v", sessions)
	}

	all, total, err := svc.List(context.Background(), &dto.SessionListRequest{}, adminCaller)
	if err != nil {
		t.Fatalf("admin List failed: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Errorf("admin should see every session, got %d", total)
	}
}

// ── Update ──

func TestSessionService_Update_VersionMismatch(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "Induction", model.SessionStatusDraft)
	title := "Stale"

	_, err := svc.Update(context.Background(), "s-1", &dto.UpdateSessionRequest{Version: 7, Title: &title}, "admin-1")
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}
}

func TestSessionService_Update_BumpsVersion(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "Induction", model.SessionStatusDraft)
	title := "Induction v2"

	resp, err := svc.Update(context.Background(), "s-1", &dto.UpdateSessionRequest{Version: 1, Title: &title}, "admin-1")
	if err != nil {
		t.Fatalf("Update should succeed, got %v", err)
	}
	if resp.Version != 2 || resp.Title != "Induction v2" {
		t.Errorf("unexpected update result %+v", resp)
	}
}

func TestSessionService_Update_ScoringLockedOnceStarted(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "Induction", model.SessionStatusPublished)
	m.progress.attempts["p-1"] = model.UserSessionProgress{ProgressID: "p-1", UserID: "u-1", SessionID: "s-1", Status: model.ProgressStatusInProgress}
	passMark := 50
	title := "Renamed"

	_, err := svc.Update(context.Background(), "s-1", &dto.UpdateSessionRequest{Version: 1, PassMark: &passMark}, "admin-1")
	if !errors.Is(err, ErrSessionLocked) {
		t.Errorf("expected ErrSessionLocked, got %v", err)
	}

	if _, err := svc.Update(context.Background(), "s-1", &dto.UpdateSessionRequest{Version: 1, Title: &title}, "admin-1"); err != nil {
		t.Errorf("non-scoring edits stay allowed, got %v", err)
	}
}

// ── Publish / Close / Delete ──

func TestSessionService_Publish(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "Induction", model.SessionStatusDraft)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, "s-1", "admin-1"); !errors.Is(err, ErrSessionNoQuestions) {
		t.Errorf("expected ErrSessionNoQuestions, got %v", err)
	}

	m.seedQuestion("q-1", "s-1", model.CategoryRespect, 2)
	resp, err := svc.Publish(ctx, "s-1", "admin-1")
	if err != nil {
		t.Fatalf("Publish should succeed, got %v", err)
	}
	if resp.Status != model.SessionStatusPublished {
		t.Errorf("expected published, got %s", resp.Status)
	}

	if _, err := svc.Publish(ctx, "s-1", "admin-1"); !errors.Is(err, ErrSessionInvalidStatus) {
		t.Errorf("expected ErrSessionInvalidStatus on republish, got %v", err)
	}
}

func TestSessionService_Close(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-draft", "Draft", model.SessionStatusDraft)
	m.seedSession("s-pub", "Live", model.SessionStatusPublished)

	if _, err := svc.Close(context.Background(), "s-draft", "admin-1"); !errors.Is(err, ErrSessionInvalidStatus) {
		t.Errorf("expected ErrSessionInvalidStatus, got %v", err)
	}
	resp, err := svc.Close(context.Background(), "s-pub", "admin-1")
	if err != nil {
		t.Fatalf("Close should succeed, got %v", err)
	}
	if resp.Status != model.SessionStatusClosed {
		t.Errorf("expected closed, got %s", resp.Status)
	}
}

func TestSessionService_Delete(t *testing.T) {
	svc, m := setupTestSessionService()
	m.seedSession("s-1", "Used", model.SessionStatusPublished)
	m.seedSession("s-2", "Unused", model.SessionStatusDraft)
	m.progress.attempts["p-1"] = model.UserSessionProgress{ProgressID: "p-1", UserID: "u-1", SessionID: "s-1"}

	if err := svc.Delete(context.Background(), "s-1", "admin-1"); !errors.Is(err, ErrSessionHasProgress) {
		t.Errorf("expected ErrSessionHasProgress, got %v", err)
	}
	if err := svc.Delete(context.Background(), "s-2", "admin-1"); err != nil {
		t.Errorf("Delete should succeed, got %v", err)
	}
}

// ── Results / ExportResults ──

func seedResults(m *testRepos) {
	m.seedSession("s-1", "Fire Safety", model.SessionStatusPublished)
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(20 * time.Minute)
	nurse := m.seedUser("nurse-1", "N1", model.RoleStaff, testDeptNursing, "password123")
	pharm := m.seedUser("pharm-1", "P1", model.RoleStaff, testDeptPharmacy, "password123")
	m.progress.attempts["p-1"] = model.UserSessionProgress{
		ProgressID: "p-1", UserID: nurse.UserID, SessionID: "s-1", Status: model.ProgressStatusCompleted,
		Score: 8, TotalPoints: 10, Percentage: 80, Passed: true, StartedAt: started, CompletedAt: &completed, User: nurse,
	}
	m.progress.attempts["p-2"] = model.UserSessionProgress{
		ProgressID: "p-2", UserID: pharm.UserID, SessionID: "s-1", Status: model.ProgressStatusInProgress,
		StartedAt: started.Add(time.Minute), User: pharm,
	}
}

func TestSessionService_Results_HODForcedToOwnDepartment(t *testing.T) {
	svc, m := setupTestSessionService()
	seedResults(m)

	rows, total, err := svc.Results(context.Background(), "s-1", &dto.SessionResultsRequest{DepartmentID: testDeptPharmacy}, hodCaller)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if total != 1 || rows[0].UserID != "nurse-1" {
		t.Errorf("expected only the nursing attempt, got %+v", rows)
	}

	_, total, err = svc.Results(context.Background(), "s-1", &dto.SessionResultsRequest{}, adminCaller)
	if err != nil {
		t.Fatalf("admin Results failed: %v", err)
	}
	if total != 2 {
		t.Errorf("admin should see every attempt, got %d", total)
	}
}

func TestSessionService_ExportResults(t *testing.T) {
	svc, m := setupTestSessionService()
	seedResults(m)

	buf, filename, err := svc.ExportResults(context.Background(), "s-1", "", adminCaller)
	if err != nil {
		t.Fatalf("ExportResults failed: %v", err)
	}
	if !strings.HasPrefix(filename, "results_fire_safety_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected file name %q", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("read Results sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Staff ID" || rows[1][0] != "N1" || rows[1][7] != "yes" {
		t.Errorf("unexpected export content %v", rows[:2])
	}
}

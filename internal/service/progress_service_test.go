package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
)

var testClock = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// setupTestProgressService seeds a published session with questions in the
// community and service categories only: 2+3 points and 5 points.
func setupTestProgressService() (*progressService, *testRepos, *fakeEnqueuer) {
	repo, m := newTestRepository()
	enq := &fakeEnqueuer{}
	svc := NewProgressService(repo, enq, zap.NewNop()).(*progressService)
	svc.now = func() time.Time { return testClock }

	m.seedUser("staff-1", "S1", model.RoleStaff, testDeptNursing, "password123")
	m.seedSession("s-1", "Fire Safety", model.SessionStatusPublished)
	m.seedQuestion("q-c1", "s-1", model.CategoryCommunity, 2)
	m.seedQuestion("q-c2", "s-1", model.CategoryCommunity, 3)
	m.seedQuestion("q-s1", "s-1", model.CategoryService, 5)
	return svc, m, enq
}

func (s *progressService) advance(d time.Duration) {
	at := testClock.Add(d)
	s.now = func() time.Time { return at }
}

// ── Start ──

func TestProgressService_Start(t *testing.T) {
	svc, _, _ := setupTestProgressService()

	resp, err := svc.Start(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Start should succeed, got %v", err)
	}
	if resp.Status != model.ProgressStatusInProgress || resp.CurrentCategory != model.CategoryCommunity {
		t.Errorf("unexpected attempt %+v", resp)
	}
	if resp.RemainingSeconds != 30*60 {
		t.Errorf("expected 1800 seconds remaining, got %d", resp.RemainingSeconds)
	}
	if len(resp.CompletedCategories) != 0 || len(resp.Answers) != 0 {
		t.Errorf("expected a blank attempt, got %+v", resp)
	}
}

func TestProgressService_Start_Idempotent(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	ctx := context.Background()

	first, err := svc.Start(ctx, "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	svc.advance(10 * time.Minute)
	second, err := svc.Start(ctx, "staff-1", "s-1")
	if err != nil {
		t.Fatalf("second Start should resume, got %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same attempt, got %s and %s", first.ID, second.ID)
	}
	if second.RemainingSeconds != 20*60 {
		t.Errorf("expected the original deadline to hold, got %d seconds", second.RemainingSeconds)
	}
	if len(m.progress.attempts) != 1 {
		t.Errorf("expected one stored attempt, got %d", len(m.progress.attempts))
	}
}

func TestProgressService_Start_NotOpen(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	m.seedSession("s-draft", "Draft", model.SessionStatusDraft)

	if _, err := svc.Start(context.Background(), "staff-1", "s-draft"); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("expected ErrSessionNotOpen, got %v", err)
	}

	ends := testClock.Add(-time.Hour)
	s := m.sessions.sessions["s-1"]
	s.EndsAt = &ends
	m.sessions.sessions["s-1"] = s
	if _, err := svc.Start(context.Background(), "staff-1", "s-1"); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("expected ErrSessionNotOpen after the window closed, got %v", err)
	}
}

func TestProgressService_Start_NoQuestions(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	m.seedSession("s-empty", "Empty", model.SessionStatusPublished)

	if _, err := svc.Start(context.Background(), "staff-1", "s-empty"); !errors.Is(err, ErrSessionNoQuestions) {
		t.Errorf("expected ErrSessionNoQuestions, got %v", err)
	}
}

func TestProgressService_Start_UnknownSession(t *testing.T) {
	svc, _, _ := setupTestProgressService()

	if _, err := svc.Start(context.Background(), "staff-1", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// ── category flow ──

func TestProgressService_CategoryQuestions(t *testing.T) {
	svc, _, _ := setupTestProgressService()
	ctx := context.Background()
	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.CategoryQuestions(ctx, "staff-1", "s-1", model.CategoryService); !errors.Is(err, ErrCategoryNotCurrent) {
		t.Errorf("expected ErrCategoryNotCurrent for a later category, got %v", err)
	}

	resp, err := svc.CategoryQuestions(ctx, "staff-1", "s-1", model.CategoryCommunity)
	if err != nil {
		t.Fatalf("CategoryQuestions failed: %v", err)
	}
	if len(resp.Questions) != 2 {
		t.Fatalf("expected 2 community questions, got %d", len(resp.Questions))
	}
	for _, q := range resp.Questions {
		if q.QuestionBankID == "" || len(q.Options) != 3 {
			t.Errorf("unexpected question view %+v", q)
		}
	}
}

func TestProgressService_CategoryQuestions_NotStarted(t *testing.T) {
	svc, _, _ := setupTestProgressService()

	_, err := svc.CategoryQuestions(context.Background(), "staff-1", "s-1", model.CategoryCommunity)
	if !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("expected ErrProgressNotFound, got %v", err)
	}
}

func TestProgressService_SyncAnswers_Validation(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	ctx := context.Background()
	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tests := []struct {
		name    string
		answers map[string]int
		want    error
	}{
		{"question from a later category", map[string]int{"q-s1": 1}, ErrQuestionNotInCategory},
		{"unknown question", map[string]int{"q-x": 0}, ErrQuestionNotInCategory},
		{"option past the end", map[string]int{"q-c1": 3}, ErrAnswerOutOfRange},
		{"one bad answer rejects the batch", map[string]int{"q-c1": 1, "q-c2": 9}, ErrAnswerOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: tt.answers})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	for _, p := range m.progress.attempts {
		if len(p.AnswerSheet()) != 0 {
			t.Errorf("expected no answers stored after rejected syncs, got %v", p.AnswerSheet())
		}
	}
}

func TestProgressService_SyncAnswers_Merges(t *testing.T) {
	svc, _, _ := setupTestProgressService()
	ctx := context.Background()
	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-c1": 0}}); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	resp, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-c1": 1, "q-c2": 2}})
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if resp.Answers["q-c1"] != 1 || resp.Answers["q-c2"] != 2 || len(resp.Answers) != 2 {
		t.Errorf("expected merged answers, got %v", resp.Answers)
	}
}

func TestProgressService_CompleteCategory_SkipsEmptyCategories(t *testing.T) {
	svc, _, _ := setupTestProgressService()
	ctx := context.Background()
	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.CompleteCategory(ctx, "staff-1", "s-1", &dto.CompleteCategoryRequest{Category: model.CategoryService}); !errors.Is(err, ErrCategoryNotCurrent) {
		t.Errorf("expected ErrCategoryNotCurrent, got %v", err)
	}

	resp, err := svc.CompleteCategory(ctx, "staff-1", "s-1", &dto.CompleteCategoryRequest{Category: model.CategoryCommunity})
	if err != nil {
		t.Fatalf("CompleteCategory failed: %v", err)
	}
	if resp.CurrentCategory != model.CategoryService {
		t.Errorf("expected respect and integrity to be skipped, got %q", resp.CurrentCategory)
	}

	resp, err = svc.CompleteCategory(ctx, "staff-1", "s-1", &dto.CompleteCategoryRequest{Category: model.CategoryService})
	if err != nil {
		t.Fatalf("CompleteCategory failed: %v", err)
	}
	if resp.CurrentCategory != "" || len(resp.CompletedCategories) != 2 {
		t.Errorf("expected every category closed, got %+v", resp)
	}
	if resp.Status != model.ProgressStatusInProgress {
		t.Errorf("closing the last category must not submit, got %s", resp.Status)
	}
}

func TestProgressService_WriteAfterConcurrentSubmit(t *testing.T) {
	tests := []struct {
		name  string
		write func(svc *progressService) error
	}{
		{"SyncAnswers", func(svc *progressService) error {
			_, err := svc.SyncAnswers(context.Background(), "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-c2": 2}})
			return err
		}},
		{"CompleteCategory", func(svc *progressService) error {
			_, err := svc.CompleteCategory(context.Background(), "staff-1", "s-1", &dto.CompleteCategoryRequest{Category: model.CategoryCommunity})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m, _ := setupTestProgressService()
			ctx := context.Background()
			if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			if _, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-c1": 1}}); err != nil {
				t.Fatalf("sync failed: %v", err)
			}

			// the submit lands after the write loaded the attempt
			m.progress.beforeUpdate = func() {
				m.progress.beforeUpdate = nil
				if _, err := svc.Submit(ctx, "staff-1", "s-1"); err != nil {
					t.Fatalf("Submit failed: %v", err)
				}
			}

			if err := tt.write(svc); !errors.Is(err, ErrProgressAlreadyCompleted) {
				t.Fatalf("expected ErrProgressAlreadyCompleted, got %v", err)
			}
			stored, err := m.progress.GetByUserAndSession(ctx, "staff-1", "s-1")
			if err != nil {
				t.Fatalf("GetByUserAndSession: %v", err)
			}
			if stored.Status != model.ProgressStatusCompleted || stored.Score != 2 {
				t.Errorf("expected the submitted result to survive, got %+v", stored)
			}

			if _, err := svc.Submit(ctx, "staff-1", "s-1"); !errors.Is(err, ErrProgressAlreadyCompleted) {
				t.Errorf("second Submit: expected ErrProgressAlreadyCompleted, got %v", err)
			}
			if got := m.users.users["staff-1"].TotalScore; got != 2 {
				t.Errorf("expected the score credited once, got %d", got)
			}
		})
	}
}

// ── Submit ──

func answerAll(t *testing.T, svc *progressService, correctService bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// q-c1 right, q-c2 wrong
	if _, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-c1": 1, "q-c2": 0}}); err != nil {
		t.Fatalf("sync community failed: %v", err)
	}
	if _, err := svc.CompleteCategory(ctx, "staff-1", "s-1", &dto.CompleteCategoryRequest{Category: model.CategoryCommunity}); err != nil {
		t.Fatalf("complete community failed: %v", err)
	}
	option := 2
	if correctService {
		option = 1
	}
	if _, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-s1": option}}); err != nil {
		t.Fatalf("sync service failed: %v", err)
	}
}

func TestProgressService_Submit_Passed(t *testing.T) {
	svc, m, enq := setupTestProgressService()
	answerAll(t, svc, true)

	resp, err := svc.Submit(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.Score != 7 || resp.TotalPoints != 10 || resp.Percentage != 70 {
		t.Errorf("expected 7/10 = 70%%, got %d/%d = %v", resp.Score, resp.TotalPoints, resp.Percentage)
	}
	if !resp.Passed || resp.TimedOut || resp.Status != model.ProgressStatusCompleted {
		t.Errorf("unexpected result %+v", resp)
	}
	if resp.CertificateID == "" {
		t.Fatal("expected a certificate id on a passed attempt")
	}

	if got := m.users.users["staff-1"].TotalScore; got != 7 {
		t.Errorf("expected the score credited to the user, got %d", got)
	}
	cert, ok := m.certs.certs[resp.CertificateID]
	if !ok || cert.Status != model.CertificateStatusPending || cert.Score != 7 {
		t.Errorf("expected a pending certificate, got %+v", cert)
	}
	if len(enq.certificates) != 1 || enq.certificates[0] != resp.CertificateID {
		t.Errorf("expected the certificate enqueued, got %v", enq.certificates)
	}
}

func TestProgressService_Submit_Failed(t *testing.T) {
	svc, m, enq := setupTestProgressService()
	answerAll(t, svc, false)

	resp, err := svc.Submit(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.Passed || resp.Score != 2 || resp.Percentage != 20 {
		t.Errorf("expected a 20%% fail, got %+v", resp)
	}
	if len(m.certs.certs) != 0 || len(enq.certificates) != 0 {
		t.Error("a failed attempt must not produce a certificate")
	}
	if got := m.users.users["staff-1"].TotalScore; got != 2 {
		t.Errorf("points still count towards the leaderboard, got %d", got)
	}
}

func TestProgressService_Submit_CertificatesDisabled(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	s := m.sessions.sessions["s-1"]
	s.CertificateEnabled = false
	m.sessions.sessions["s-1"] = s
	answerAll(t, svc, true)

	resp, err := svc.Submit(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !resp.Passed || resp.CertificateID != "" || len(m.certs.certs) != 0 {
		t.Errorf("expected a pass without a certificate, got %+v", resp)
	}
}

func TestProgressService_Submit_Twice(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	answerAll(t, svc, true)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, "staff-1", "s-1"); !errors.Is(err, ErrProgressAlreadyCompleted) {
		t.Errorf("expected ErrProgressAlreadyCompleted, got %v", err)
	}
	if got := m.users.users["staff-1"].TotalScore; got != 7 {
		t.Errorf("expected the score credited once, got %d", got)
	}
	if _, err := svc.Start(ctx, "staff-1", "s-1"); !errors.Is(err, ErrProgressAlreadyCompleted) {
		t.Errorf("expected Start after completion to fail, got %v", err)
	}

	got, err := svc.Get(ctx, "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CertificateID == "" || got.RemainingSeconds != 0 {
		t.Errorf("expected the completed view with its certificate, got %+v", got)
	}
}

func TestProgressService_Submit_EnqueueFailureKeepsResult(t *testing.T) {
	svc, m, enq := setupTestProgressService()
	answerAll(t, svc, true)
	enq.err = errors.New("redis down")

	resp, err := svc.Submit(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Submit should not fail on enqueue errors, got %v", err)
	}
	if cert := m.certs.certs[resp.CertificateID]; cert.Status != model.CertificateStatusPending {
		t.Errorf("expected the certificate left pending, got %s", cert.Status)
	}
}

// ── time limit ──

func TestProgressService_Expired(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	answerAll(t, svc, true)
	svc.advance(31 * time.Minute)
	ctx := context.Background()

	_, err := svc.SyncAnswers(ctx, "staff-1", "s-1", &dto.SyncAnswersRequest{Answers: map[string]int{"q-s1": 0}})
	if !errors.Is(err, ErrProgressExpired) {
		t.Fatalf("expected ErrProgressExpired, got %v", err)
	}

	got, err := svc.Get(ctx, "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.ProgressStatusCompleted || !got.TimedOut {
		t.Errorf("expected a timed-out completion, got %+v", got)
	}
	// answers saved before the deadline still count
	if !got.Passed || got.Score != 7 {
		t.Errorf("expected the synced answers scored, got %+v", got)
	}
	if len(m.certs.certs) != 1 {
		t.Errorf("expected a certificate for a timed-out pass, got %d", len(m.certs.certs))
	}
}

func TestProgressService_Submit_AfterDeadline(t *testing.T) {
	svc, _, _ := setupTestProgressService()
	answerAll(t, svc, false)
	svc.advance(45 * time.Minute)

	resp, err := svc.Submit(context.Background(), "staff-1", "s-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !resp.TimedOut {
		t.Errorf("expected the late submit flagged as timed out, got %+v", resp)
	}
}

func TestProgressService_ExpireOverdue(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	ctx := context.Background()
	m.seedUser("staff-2", "S2", model.RoleStaff, testDeptNursing, "password123")

	if _, err := svc.Start(ctx, "staff-1", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	svc.advance(20 * time.Minute)
	if _, err := svc.Start(ctx, "staff-2", "s-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	n, err := svc.ExpireOverdue(ctx, testClock.Add(35*time.Minute))
	if err != nil {
		t.Fatalf("ExpireOverdue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 attempt finalised, got %d", n)
	}
	for _, p := range m.progress.attempts {
		switch p.UserID {
		case "staff-1":
			if p.Status != model.ProgressStatusCompleted || !p.TimedOut {
				t.Errorf("expected staff-1 timed out, got %+v", p)
			}
		case "staff-2":
			if p.Status != model.ProgressStatusInProgress {
				t.Errorf("expected staff-2 still running, got %s", p.Status)
			}
		}
	}
}

func TestProgressService_ListMine(t *testing.T) {
	svc, m, _ := setupTestProgressService()
	ctx := context.Background()
	m.seedSession("s-2", "Hand Hygiene", model.SessionStatusPublished)
	m.seedQuestion("q-h1", "s-2", model.CategoryRespect, 1)

	for _, id := range []string{"s-1", "s-2"} {
		if _, err := svc.Start(ctx, "staff-1", id); err != nil {
			t.Fatalf("Start %s failed: %v", id, err)
		}
	}
	list, err := svc.ListMine(ctx, "staff-1")
	if err != nil {
		t.Fatalf("ListMine failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(list))
	}
}

func TestScoreAnswers(t *testing.T) {
	_, m, _ := setupTestProgressService()
	questions, _ := m.questions.ListBySession(context.Background(), "s-1")

	score, total := scoreAnswers(questions, model.AnswerSheet{"q-c1": 1, "q-c2": 1, "q-s1": 0, "stale": 1})
	if score != 5 || total != 10 {
		t.Errorf("expected 5/10, got %d/%d", score, total)
	}
}

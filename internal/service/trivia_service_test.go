package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
)

var triviaClock = time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

func setupTestTriviaService() (*triviaService, *testRepos, *fakeBroadcaster) {
	repo, m := newTestRepository()
	b := &fakeBroadcaster{}
	svc := NewTriviaService(repo, NewStaticTriviaGenerator(), b, 5, zap.NewNop()).(*triviaService)
	svc.now = func() time.Time { return triviaClock }

	m.seedUser("staff-1", "S1", model.RoleStaff, testDeptNursing, "password123")
	m.seedUser("staff-2", "S2", model.RoleStaff, testDeptPharmacy, "password123")
	return svc, m, b
}

// seedTrivia stores May 2026 with three questions worth 1, 2 and 3 points.
func (m *testRepos) seedTrivia(id string) {
	start, end, _ := monthWindow("2026-05")
	m.trivia.trivia[id] = model.Trivia{
		TriviaID: id,
		Title:    "May Trivia",
		Month:    "2026-05",
		Questions: datatypes.JSONSlice[model.TriviaQuestion]{
			{Question: "Q1", Options: []string{"a", "b"}, CorrectOption: 0, Points: 1},
			{Question: "Q2", Options: []string{"a", "b", "c"}, CorrectOption: 2, Points: 2},
			{Question: "Q3", Options: []string{"a", "b"}, CorrectOption: 1, Points: 3},
		},
		StartsAt: start,
		EndsAt:   end,
		IsActive: true,
	}
}

func TestMonthWindow(t *testing.T) {
	start, end, err := monthWindow("2026-02")
	if err != nil {
		t.Fatalf("monthWindow failed: %v", err)
	}
	if !start.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("unexpected end %v", end)
	}

	if _, _, err := monthWindow("2026-13"); err == nil {
		t.Error("expected an invalid month to fail")
	}
}

// ── admin ──

func TestTriviaService_Create(t *testing.T) {
	svc, _, _ := setupTestTriviaService()
	ctx := context.Background()
	req := &dto.CreateTriviaRequest{
		Title: " June ",
		Month: "2026-06",
		Questions: []dto.TriviaQuestionRequest{
			{Question: "Q", Options: []string{"a", "b"}, CorrectOption: intPtr(1)},
		},
	}

	resp, err := svc.Create(ctx, req, "admin-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if resp.Title != "June" || resp.QuestionCount != 1 || resp.Questions[0].Points != 1 {
		t.Errorf("unexpected trivia %+v", resp)
	}
	if resp.Questions[0].CorrectOption == nil || *resp.Questions[0].CorrectOption != 1 {
		t.Error("expected the admin view to include answers")
	}

	if _, err := svc.Create(ctx, req, "admin-1"); !errors.Is(err, ErrTriviaMonthExists) {
		t.Errorf("expected ErrTriviaMonthExists, got %v", err)
	}
}

func TestTriviaService_CreateAndSeed_LostMonthRace(t *testing.T) {
	tests := []struct {
		name   string
		create func(svc *triviaService) error
	}{
		{"Create", func(svc *triviaService) error {
			_, err := svc.Create(context.Background(), &dto.CreateTriviaRequest{
				Title: "September",
				Month: "2026-09",
				Questions: []dto.TriviaQuestionRequest{
					{Question: "Q", Options: []string{"a", "b"}, CorrectOption: intPtr(0)},
				},
			}, "admin-1")
			return err
		}},
		{"Seed", func(svc *triviaService) error {
			_, err := svc.Seed(context.Background(), "2026-09", "")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m, _ := setupTestTriviaService()
			// another admin stores the month after the pre-check passed
			m.trivia.beforeCreate = func() {
				m.trivia.beforeCreate = nil
				m.trivia.trivia["t-other"] = model.Trivia{TriviaID: "t-other", Month: "2026-09"}
			}

			if err := tt.create(svc); !errors.Is(err, ErrTriviaMonthExists) {
				t.Fatalf("expected ErrTriviaMonthExists, got %v", err)
			}
			if len(m.trivia.trivia) != 1 {
				t.Errorf("expected only the winning trivia, got %d", len(m.trivia.trivia))
			}
		})
	}
}

func TestTriviaService_Create_Validation(t *testing.T) {
	svc, _, _ := setupTestTriviaService()
	ctx := context.Background()

	_, err := svc.Create(ctx, &dto.CreateTriviaRequest{
		Title: "Bad", Month: "2026-07",
		Questions: []dto.TriviaQuestionRequest{{Question: "Q", Options: []string{"a", "b"}, CorrectOption: intPtr(4)}},
	}, "admin-1")
	if !errors.Is(err, ErrCorrectOptionRange) {
		t.Errorf("expected ErrCorrectOptionRange, got %v", err)
	}

	starts := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	ends := starts.Add(-time.Hour)
	_, err = svc.Create(ctx, &dto.CreateTriviaRequest{
		Title: "Bad", Month: "2026-07", StartsAt: &starts, EndsAt: &ends,
		Questions: []dto.TriviaQuestionRequest{{Question: "Q", Options: []string{"a", "b"}, CorrectOption: intPtr(0)}},
	}, "admin-1")
	if !errors.Is(err, ErrTriviaWindowInvalid) {
		t.Errorf("expected ErrTriviaWindowInvalid, got %v", err)
	}
}

func TestTriviaService_Update_LockedAfterParticipation(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")
	m.participations.participations = append(m.participations.participations, model.TriviaParticipation{
		ParticipationID: "p-1", UserID: "staff-1", TriviaID: "t-1",
	})

	_, err := svc.Update(context.Background(), "t-1", &dto.UpdateTriviaRequest{
		Questions: []dto.TriviaQuestionRequest{{Question: "Q", Options: []string{"a", "b"}, CorrectOption: intPtr(0)}},
	}, "admin-1")
	if !errors.Is(err, ErrTriviaHasParticipations) {
		t.Errorf("expected ErrTriviaHasParticipations, got %v", err)
	}

	title := "Renamed"
	resp, err := svc.Update(context.Background(), "t-1", &dto.UpdateTriviaRequest{Title: &title}, "admin-1")
	if err != nil {
		t.Fatalf("title-only update should succeed, got %v", err)
	}
	if resp.Title != "Renamed" {
		t.Errorf("expected the new title, got %q", resp.Title)
	}
}

func TestTriviaService_Delete(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")

	if err := svc.Delete(context.Background(), "t-1", "admin-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(context.Background(), "t-1", "admin-1"); !errors.Is(err, ErrTriviaNotFound) {
		t.Errorf("expected ErrTriviaNotFound, got %v", err)
	}
}

func TestTriviaService_Seed(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	ctx := context.Background()

	resp, err := svc.Seed(ctx, "2026-09", "")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if resp.Title != "CRISP Trivia September 2026" || resp.QuestionCount != 5 {
		t.Errorf("unexpected seeded trivia %+v", resp)
	}
	if resp.StartsAt == "" || resp.EndsAt == "" {
		t.Error("expected the calendar month as the window")
	}
	if _, err := svc.Seed(ctx, "2026-09", ""); !errors.Is(err, ErrTriviaMonthExists) {
		t.Errorf("expected ErrTriviaMonthExists, got %v", err)
	}
	if len(m.trivia.trivia) != 1 {
		t.Errorf("expected one stored trivia, got %d", len(m.trivia.trivia))
	}
}

func TestTriviaService_List(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")
	if _, err := svc.Seed(context.Background(), "2026-06", "admin-1"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	list, total, err := svc.List(context.Background(), &dto.PaginationRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || list[0].Month != "2026-06" {
		t.Errorf("expected newest month first, got total=%d first=%+v", total, list[0])
	}
}

// ── staff ──

func TestTriviaService_Current_HidesAnswers(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")
	ctx := context.Background()

	resp, err := svc.Current(ctx, staffCaller)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	for _, q := range resp.Questions {
		if q.CorrectOption != nil {
			t.Fatalf("staff must not see answers, got %+v", q)
		}
	}
	if resp.Participated {
		t.Error("expected participated=false before submitting")
	}

	admin, err := svc.Get(ctx, "t-1", adminCaller)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if admin.Questions[1].CorrectOption == nil || *admin.Questions[1].CorrectOption != 2 {
		t.Error("expected admins to see answers")
	}
}

func TestTriviaService_Current_None(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")
	svc.now = func() time.Time { return triviaClock.AddDate(0, 1, 0) }

	if _, err := svc.Current(context.Background(), staffCaller); !errors.Is(err, ErrTriviaNotFound) {
		t.Errorf("expected ErrTriviaNotFound, got %v", err)
	}
}

func TestTriviaService_Participate(t *testing.T) {
	svc, m, b := setupTestTriviaService()
	m.seedTrivia("t-1")
	ctx := context.Background()

	// Q1 right, Q2 wrong, Q3 right
	resp, err := svc.Participate(ctx, "t-1", "staff-1", &dto.ParticipateRequest{Answers: []int{0, 1, 1}})
	if err != nil {
		t.Fatalf("Participate failed: %v", err)
	}
	if resp.Score != 4 || resp.CorrectCount != 2 || resp.Total != 3 {
		t.Errorf("expected 4 points from 2 of 3, got %+v", resp)
	}
	if got := m.users.users["staff-1"].TotalScore; got != 4 {
		t.Errorf("expected the score credited, got %d", got)
	}

	if len(b.rooms) != 1 || b.rooms[0] != TriviaRoom("t-1") {
		t.Fatalf("expected a leaderboard push to the trivia room, got %v", b.rooms)
	}
	if b.messages[0].Type != MessageTriviaLeaderboard {
		t.Errorf("unexpected frame type %q", b.messages[0].Type)
	}
	board, ok := b.messages[0].Data.([]dto.LeaderboardEntry)
	if !ok || len(board) != 1 || board[0].UserID != "staff-1" || board[0].Rank != 1 {
		t.Errorf("unexpected pushed leaderboard %+v", b.messages[0].Data)
	}

	if _, err := svc.Participate(ctx, "t-1", "staff-1", &dto.ParticipateRequest{Answers: []int{0, 2, 1}}); !errors.Is(err, ErrTriviaAlreadyParticipated) {
		t.Errorf("expected ErrTriviaAlreadyParticipated, got %v", err)
	}

	mine, err := svc.MyParticipation(ctx, "t-1", "staff-1")
	if err != nil {
		t.Fatalf("MyParticipation failed: %v", err)
	}
	if mine.Score != 4 || len(mine.Answers) != 3 {
		t.Errorf("unexpected participation %+v", mine)
	}

	got, err := svc.Get(ctx, "t-1", staffCaller)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Participated {
		t.Error("expected participated=true after submitting")
	}
}

func TestTriviaService_Participate_Rejections(t *testing.T) {
	svc, m, b := setupTestTriviaService()
	m.seedTrivia("t-1")
	ctx := context.Background()

	if _, err := svc.Participate(ctx, "t-1", "staff-1", &dto.ParticipateRequest{Answers: []int{0, 1}}); !errors.Is(err, ErrTriviaAnswerCount) {
		t.Errorf("expected ErrTriviaAnswerCount, got %v", err)
	}
	if _, err := svc.Participate(ctx, "missing", "staff-1", &dto.ParticipateRequest{Answers: []int{0}}); !errors.Is(err, ErrTriviaNotFound) {
		t.Errorf("expected ErrTriviaNotFound, got %v", err)
	}

	tr := m.trivia.trivia["t-1"]
	tr.IsActive = false
	m.trivia.trivia["t-1"] = tr
	if _, err := svc.Participate(ctx, "t-1", "staff-1", &dto.ParticipateRequest{Answers: []int{0, 1, 1}}); !errors.Is(err, ErrTriviaNotOpen) {
		t.Errorf("expected ErrTriviaNotOpen, got %v", err)
	}

	if len(m.participations.participations) != 0 || len(b.rooms) != 0 {
		t.Error("rejected submissions must not be recorded or broadcast")
	}
	if _, err := svc.MyParticipation(ctx, "t-1", "staff-1"); !errors.Is(err, ErrTriviaParticipationMissing) {
		t.Errorf("expected ErrTriviaParticipationMissing, got %v", err)
	}
}

func TestTriviaService_Leaderboard(t *testing.T) {
	svc, m, _ := setupTestTriviaService()
	m.seedTrivia("t-1")
	m.seedUser("staff-3", "S3", model.RoleStaff, testDeptNursing, "password123")
	ctx := context.Background()

	submit := func(userID string, answers []int, at time.Time) {
		svc.now = func() time.Time { return at }
		if _, err := svc.Participate(ctx, "t-1", userID, &dto.ParticipateRequest{Answers: answers}); err != nil {
			t.Fatalf("Participate %s failed: %v", userID, err)
		}
	}
	submit("staff-1", []int{0, 0, 0}, triviaClock)                   // 1
	submit("staff-2", []int{0, 2, 1}, triviaClock.Add(time.Minute))   // 6
	submit("staff-3", []int{1, 2, 0}, triviaClock.Add(2*time.Minute)) // 2

	board, err := svc.Leaderboard(ctx, "t-1", 2)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected the limit applied, got %d rows", len(board))
	}
	if board[0].UserID != "staff-2" || board[0].Score != 6 || board[1].UserID != "staff-3" || board[1].Rank != 2 {
		t.Errorf("unexpected ranking %+v", board)
	}
}

func TestToTriviaResponse_AnswersOnlyWhenAsked(t *testing.T) {
	tr := &model.Trivia{
		TriviaID: "t-1",
		Month:    "2026-03",
		Questions: datatypes.JSONSlice[model.TriviaQuestion]{
			{Question: "Q1", Options: []string{"a", "b"}, CorrectOption: 1, Points: 2},
		},
	}

	staff, err := toTriviaResponse(tr, false, true)
	if err != nil {
		t.Fatalf("toTriviaResponse failed: %v", err)
	}
	if len(staff.Questions) != 1 || staff.Questions[0].Question != "Q1" || staff.Questions[0].Points != 2 {
		t.Fatalf("unexpected questions %+v", staff.Questions)
	}
	if staff.Questions[0].CorrectOption != nil || !staff.Participated {
		t.Errorf("unexpected staff view %+v", staff.Questions[0])
	}

	admin, err := toTriviaResponse(tr, true, false)
	if err != nil {
		t.Fatalf("toTriviaResponse failed: %v", err)
	}
	if admin.Questions[0].CorrectOption == nil || *admin.Questions[0].CorrectOption != 1 {
		t.Errorf("expected the answer in the admin view, got %+v", admin.Questions[0])
	}
}

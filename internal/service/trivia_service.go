package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/internal/ws"
)

// ── trivia errors ──

var (
	ErrTriviaNotFound             = errors.New("trivia not found")
	ErrTriviaMonthExists          = errors.New("trivia for this month already exists")
	ErrTriviaWindowInvalid        = errors.New("trivia ends_at must be after starts_at")
	ErrTriviaNotOpen              = errors.New("trivia is not open")
	ErrTriviaAlreadyParticipated  = errors.New("you have already taken this trivia")
	ErrTriviaAnswerCount          = errors.New("answer count does not match question count")
	ErrTriviaHasParticipations    = errors.New("questions cannot change once staff have participated")
	ErrTriviaParticipationMissing = errors.New("you have not taken this trivia")
	ErrTriviaQuestionInvalid      = errors.New("trivia question is invalid")
)

// MessageTriviaLeaderboard websocket frame type for leaderboard pushes.
const MessageTriviaLeaderboard = "trivia.leaderboard"

// LiveLeaderboardSize rows pushed to live leaderboard subscribers.
const LiveLeaderboardSize = 10

// Broadcaster pushes frames to websocket rooms.
type Broadcaster interface {
	Broadcast(room string, msg ws.Message)
}

// TriviaRoom websocket room of a trivia's live leaderboard.
func TriviaRoom(triviaID string) string {
	return "trivia:" + triviaID
}

// TriviaService monthly trivia
type TriviaService interface {
	Create(ctx context.Context, req *dto.CreateTriviaRequest, callerID string) (*dto.TriviaResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateTriviaRequest, callerID string) (*dto.TriviaResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.TriviaResponse, int64, error)
	// Seed generates the month's trivia over the calendar month.
	Seed(ctx context.Context, month string, callerID string) (*dto.TriviaResponse, error)
	Current(ctx context.Context, caller Caller) (*dto.TriviaResponse, error)
	Get(ctx context.Context, id string, caller Caller) (*dto.TriviaResponse, error)
	Participate(ctx context.Context, id string, userID string, req *dto.ParticipateRequest) (*dto.ParticipationResponse, error)
	MyParticipation(ctx context.Context, id string, userID string) (*dto.ParticipationResponse, error)
	Leaderboard(ctx context.Context, id string, limit int) ([]dto.LeaderboardEntry, error)
}

type triviaService struct {
	repo        *repository.Repository
	generator   TriviaGenerator
	broadcaster Broadcaster
	perMonth    int
	logger      *zap.Logger
	now         func() time.Time
}

// NewTriviaService creates a TriviaService. broadcaster may be nil.
func NewTriviaService(
	repo *repository.Repository,
	generator TriviaGenerator,
	broadcaster Broadcaster,
	questionsPerMonth int,
	logger *zap.Logger,
) TriviaService {
	if questionsPerMonth <= 0 {
		questionsPerMonth = 5
	}
	return &triviaService{
		repo:        repo,
		generator:   generator,
		broadcaster: broadcaster,
		perMonth:    questionsPerMonth,
		logger:      logger,
		now:         time.Now,
	}
}

// ────────────────────── Create ──────────────────────

func (s *triviaService) Create(ctx context.Context, req *dto.CreateTriviaRequest, callerID string) (*dto.TriviaResponse, error) {
	if err := s.ensureMonthFree(ctx, req.Month); err != nil {
		return nil, err
	}

	questions, err := toTriviaQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	startsAt, endsAt, err := monthWindow(req.Month)
	if err != nil {
		return nil, err
	}
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		endsAt = req.EndsAt.UTC()
	}
	if !endsAt.After(startsAt) {
		return nil, ErrTriviaWindowInvalid
	}

	t := &model.Trivia{
		Title:     strings.TrimSpace(req.Title),
		Month:     req.Month,
		Questions: datatypes.JSONSlice[model.TriviaQuestion](questions),
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
	}
	t.CreatedBy = &callerID
	t.UpdatedBy = &callerID

	if err := s.repo.Trivia.Create(ctx, t); err != nil {
		// lost a race against the unique month
		if s.monthTaken(ctx, req.Month) {
			return nil, ErrTriviaMonthExists
		}
		s.logger.Error("create trivia failed", zap.String("month", req.Month), zap.Error(err))
		return nil, err
	}
	return toTriviaResponse(t, true, false)
}

// ────────────────────── Update ──────────────────────

func (s *triviaService) Update(ctx context.Context, id string, req *dto.UpdateTriviaRequest, callerID string) (*dto.TriviaResponse, error) {
	t, err := s.getTrivia(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Questions != nil {
		taken, err := s.repo.TriviaParticipation.Leaderboard(ctx, id, 1)
		if err != nil {
			return nil, err
		}
		if len(taken) > 0 {
			return nil, ErrTriviaHasParticipations
		}
		questions, err := toTriviaQuestions(req.Questions)
		if err != nil {
			return nil, err
		}
		t.Questions = datatypes.JSONSlice[model.TriviaQuestion](questions)
	}
	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.StartsAt != nil {
		t.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		t.EndsAt = req.EndsAt.UTC()
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if !t.EndsAt.After(t.StartsAt) {
		return nil, ErrTriviaWindowInvalid
	}

	t.UpdatedBy = &callerID
	if err := s.repo.Trivia.Update(ctx, t); err != nil {
		s.logger.Error("update trivia failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toTriviaResponse(t, true, false)
}

// ────────────────────── Delete ──────────────────────

func (s *triviaService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.getTrivia(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Trivia.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("delete trivia failed", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── List ──────────────────────

func (s *triviaService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.TriviaResponse, int64, error) {
	list, total, err := s.repo.Trivia.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list trivia failed", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.TriviaResponse, 0, len(list))
	for i := range list {
		resp, err := toTriviaResponse(&list[i], true, false)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *resp)
	}
	return result, total, nil
}

// ────────────────────── Seed ──────────────────────

func (s *triviaService) Seed(ctx context.Context, month string, callerID string) (*dto.TriviaResponse, error) {
	if err := s.ensureMonthFree(ctx, month); err != nil {
		return nil, err
	}
	startsAt, endsAt, err := monthWindow(month)
	if err != nil {
		return nil, err
	}

	questions, err := s.generator.Generate(ctx, month, s.perMonth)
	if err != nil {
		s.logger.Error("generate trivia questions failed", zap.String("month", month), zap.Error(err))
		return nil, err
	}

	t := &model.Trivia{
		Title:     "CRISP Trivia " + startsAt.Format("January 2006"),
		Month:     month,
		Questions: datatypes.JSONSlice[model.TriviaQuestion](questions),
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
	}
	if callerID != "" {
		t.CreatedBy = &callerID
		t.UpdatedBy = &callerID
	}

	if err := s.repo.Trivia.Create(ctx, t); err != nil {
		if s.monthTaken(ctx, month) {
			return nil, ErrTriviaMonthExists
		}
		s.logger.Error("seed trivia failed", zap.String("month", month), zap.Error(err))
		return nil, err
	}
	s.logger.Info("trivia seeded", zap.String("month", month), zap.Int("questions", len(questions)))
	return toTriviaResponse(t, true, false)
}

// ────────────────────── Current / Get ──────────────────────

func (s *triviaService) Current(ctx context.Context, caller Caller) (*dto.TriviaResponse, error) {
	t, err := s.repo.Trivia.GetCurrent(ctx, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTriviaNotFound
		}
		s.logger.Error("query current trivia failed", zap.Error(err))
		return nil, err
	}
	return toTriviaResponse(t, caller.Role == model.RoleAdmin, s.participated(ctx, t.TriviaID, caller.UserID))
}

func (s *triviaService) Get(ctx context.Context, id string, caller Caller) (*dto.TriviaResponse, error) {
	t, err := s.getTrivia(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTriviaResponse(t, caller.Role == model.RoleAdmin, s.participated(ctx, id, caller.UserID))
}

// ────────────────────── Participate ──────────────────────

func (s *triviaService) Participate(ctx context.Context, id string, userID string, req *dto.ParticipateRequest) (*dto.ParticipationResponse, error) {
	t, err := s.getTrivia(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !t.IsOpenAt(now) {
		return nil, ErrTriviaNotOpen
	}
	if s.participated(ctx, id, userID) {
		return nil, ErrTriviaAlreadyParticipated
	}
	if len(req.Answers) != len(t.Questions) {
		return nil, ErrTriviaAnswerCount
	}

	score, correct := 0, 0
	for i, q := range t.Questions {
		if req.Answers[i] == q.CorrectOption {
			score += q.Points
			correct++
		}
	}

	p := &model.TriviaParticipation{
		UserID:       userID,
		TriviaID:     id,
		Answers:      datatypes.JSONSlice[int](req.Answers),
		Score:        score,
		CorrectCount: correct,
		SubmittedAt:  now,
	}
	p.CreatedBy = &userID
	p.UpdatedBy = &userID

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.TriviaParticipation.Create(ctx, p); err != nil {
			return err
		}
		if score > 0 {
			return txRepo.User.AddScore(ctx, userID, score)
		}
		return nil
	})
	if err != nil {
		// lost a race against the unique (user_id, trivia_id)
		if s.participated(ctx, id, userID) {
			return nil, ErrTriviaAlreadyParticipated
		}
		s.logger.Error("record participation failed", zap.String("trivia_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("trivia participation recorded",
		zap.String("trivia_id", id), zap.String("user_id", userID), zap.Int("score", score))
	s.broadcastLeaderboard(ctx, id)

	return toParticipationResponse(p, len(t.Questions)), nil
}

func (s *triviaService) broadcastLeaderboard(ctx context.Context, triviaID string) {
	if s.broadcaster == nil {
		return
	}
	board, err := s.Leaderboard(ctx, triviaID, LiveLeaderboardSize)
	if err != nil {
		s.logger.Warn("build live leaderboard failed", zap.String("trivia_id", triviaID), zap.Error(err))
		return
	}
	s.broadcaster.Broadcast(TriviaRoom(triviaID), ws.Message{Type: MessageTriviaLeaderboard, Data: board})
}

// ────────────────────── MyParticipation ──────────────────────

func (s *triviaService) MyParticipation(ctx context.Context, id string, userID string) (*dto.ParticipationResponse, error) {
	t, err := s.getTrivia(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.TriviaParticipation.GetByUserAndTrivia(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTriviaParticipationMissing
		}
		return nil, err
	}
	return toParticipationResponse(p, len(t.Questions)), nil
}

// ────────────────────── Leaderboard ──────────────────────

func (s *triviaService) Leaderboard(ctx context.Context, id string, limit int) ([]dto.LeaderboardEntry, error) {
	if _, err := s.getTrivia(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.TriviaParticipation.Leaderboard(ctx, id, limit)
	if err != nil {
		s.logger.Error("trivia leaderboard failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		entry := dto.LeaderboardEntry{Rank: i + 1, UserID: r.UserID, Score: r.Score}
		if r.User != nil {
			entry.Name = r.User.Name
			entry.DepartmentID = r.User.DepartmentID
			if r.User.Department != nil {
				entry.DepartmentName = r.User.Department.Name
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ── helpers ──

func (s *triviaService) getTrivia(ctx context.Context, id string) (*model.Trivia, error) {
	t, err := s.repo.Trivia.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTriviaNotFound
		}
		s.logger.Error("query trivia failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (s *triviaService) ensureMonthFree(ctx context.Context, month string) error {
	if _, err := s.repo.Trivia.GetByMonth(ctx, month); err == nil {
		return ErrTriviaMonthExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("query trivia by month failed", zap.String("month", month), zap.Error(err))
		return err
	}
	return nil
}

// monthTaken reports whether a trivia now exists for month.
func (s *triviaService) monthTaken(ctx context.Context, month string) bool {
	_, err := s.repo.Trivia.GetByMonth(ctx, month)
	return err == nil
}

func (s *triviaService) participated(ctx context.Context, triviaID, userID string) bool {
	if userID == "" {
		return false
	}
	_, err := s.repo.TriviaParticipation.GetByUserAndTrivia(ctx, userID, triviaID)
	return err == nil
}

// monthWindow the calendar month in UTC, inclusive of its last second.
func monthWindow(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	start = start.UTC()
	return start, start.AddDate(0, 1, 0).Add(-time.Second), nil
}

func toTriviaQuestions(reqs []dto.TriviaQuestionRequest) ([]model.TriviaQuestion, error) {
	out := make([]model.TriviaQuestion, 0, len(reqs))
	for _, r := range reqs {
		points := r.Points
		if points == 0 {
			points = 1
		}
		q := model.TriviaQuestion{
			Question:      strings.TrimSpace(r.Question),
			Options:       trimAll(r.Options),
			CorrectOption: *r.CorrectOption,
			Points:        points,
		}
		if err := validateTriviaQuestion(q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func toTriviaResponse(t *model.Trivia, withAnswers, participated bool) (*dto.TriviaResponse, error) {
	questions := []model.TriviaQuestion(t.Questions)
	views := make([]dto.TriviaQuestionView, 0, len(questions))
	if err := copier.Copy(&views, &questions); err != nil {
		return nil, err
	}
	for i := range views {
		views[i].CorrectOption = nil
		if withAnswers {
			correct := questions[i].CorrectOption
			views[i].CorrectOption = &correct
		}
	}
	return &dto.TriviaResponse{
		ID:            t.TriviaID,
		Title:         t.Title,
		Month:         t.Month,
		Questions:     views,
		StartsAt:      formatTime(t.StartsAt),
		EndsAt:        formatTime(t.EndsAt),
		IsActive:      t.IsActive,
		Participated:  participated,
		QuestionCount: len(questions),
	}, nil
}

func toParticipationResponse(p *model.TriviaParticipation, total int) *dto.ParticipationResponse {
	return &dto.ParticipationResponse{
		ID:           p.ParticipationID,
		TriviaID:     p.TriviaID,
		Answers:      []int(p.Answers),
		Score:        p.Score,
		CorrectCount: p.CorrectCount,
		Total:        total,
		SubmittedAt:  formatTime(p.SubmittedAt),
	}
}

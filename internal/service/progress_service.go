package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

// ── progress errors ──

var (
	ErrProgressNotFound         = errors.New("session has not been started")
	ErrProgressAlreadyCompleted = errors.New("session already completed")
	ErrProgressExpired          = errors.New("time limit reached, the attempt was submitted")
	ErrSessionNotOpen           = errors.New("session is not open")
	ErrCategoryNotCurrent       = errors.New("category is not the current category")
	ErrQuestionNotInCategory    = errors.New("question does not belong to the current category")
	ErrAnswerOutOfRange         = errors.New("answer does not index an option")
)

const expireSweepBatch = 100

// ProgressService staff attempts at a session
type ProgressService interface {
	// Start is idempotent while the attempt is in progress.
	Start(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error)
	Get(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error)
	CategoryQuestions(ctx context.Context, userID, sessionID, category string) (*dto.CategoryQuestionsResponse, error)
	SyncAnswers(ctx context.Context, userID, sessionID string, req *dto.SyncAnswersRequest) (*dto.ProgressResponse, error)
	CompleteCategory(ctx context.Context, userID, sessionID string, req *dto.CompleteCategoryRequest) (*dto.ProgressResponse, error)
	Submit(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error)
	ListMine(ctx context.Context, userID string) ([]dto.ProgressResponse, error)
	// ExpireOverdue finalises in-progress attempts past their time limit.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type progressService struct {
	repo     *repository.Repository
	enqueuer queue.Enqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewProgressService creates a ProgressService
func NewProgressService(repo *repository.Repository, enqueuer queue.Enqueuer, logger *zap.Logger) ProgressService {
	return &progressService{repo: repo, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// ────────────────────── Start ──────────────────────

func (s *progressService) Start(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	existing, err := s.repo.Progress.GetByUserAndSession(ctx, userID, sessionID)
	if err == nil {
		return s.resume(ctx, existing, session, now)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("query progress failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	if !session.IsOpenAt(now) {
		return nil, ErrSessionNotOpen
	}

	counts, err := s.repo.QuestionBank.CountByCategory(ctx, sessionID)
	if err != nil {
		s.logger.Error("count questions failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	first := model.NextCategory("", availableCategories(counts, nil))
	if first == "" {
		return nil, ErrSessionNoQuestions
	}

	p := &model.UserSessionProgress{
		UserID:              userID,
		SessionID:           sessionID,
		Status:              model.ProgressStatusInProgress,
		CurrentCategory:     first,
		CompletedCategories: datatypes.JSONSlice[string]{},
		StartedAt:           now,
		ExpiresAt:           now.Add(time.Duration(session.DurationMinutes) * time.Minute),
	}
	p.SetAnswerSheet(model.AnswerSheet{})
	p.CreatedBy = &userID
	p.UpdatedBy = &userID

	if err := s.repo.Progress.Create(ctx, p); err != nil {
		// a concurrent Start may have won the unique (user_id, session_id)
		if again, getErr := s.repo.Progress.GetByUserAndSession(ctx, userID, sessionID); getErr == nil {
			return s.resume(ctx, again, session, now)
		}
		s.logger.Error("create progress failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("session started",
		zap.String("user_id", userID), zap.String("session_id", sessionID), zap.String("category", first))
	return s.toProgressResponse(p, session, ""), nil
}

func (s *progressService) resume(ctx context.Context, p *model.UserSessionProgress, session *model.Session, now time.Time) (*dto.ProgressResponse, error) {
	if p.Status == model.ProgressStatusCompleted {
		return nil, ErrProgressAlreadyCompleted
	}
	if p.IsOverdue(now) {
		if _, err := s.finalize(ctx, p, session, true); err != nil {
			return nil, err
		}
		return nil, ErrProgressAlreadyCompleted
	}
	return s.toProgressResponse(p, session, ""), nil
}

// ────────────────────── Get ──────────────────────

func (s *progressService) Get(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error) {
	p, session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if p.IsOverdue(s.now()) {
		return s.finalize(ctx, p, session, true)
	}

	certID := ""
	if p.Status == model.ProgressStatusCompleted {
		certID = s.certificateID(ctx, userID, sessionID)
	}
	return s.toProgressResponse(p, session, certID), nil
}

// ────────────────────── CategoryQuestions ──────────────────────

func (s *progressService) CategoryQuestions(ctx context.Context, userID, sessionID, category string) (*dto.CategoryQuestionsResponse, error) {
	p, _, err := s.loadInProgress(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if p.CurrentCategory == "" || p.CurrentCategory != category {
		return nil, ErrCategoryNotCurrent
	}

	questions, err := s.repo.QuestionBank.ListBySessionAndCategory(ctx, sessionID, category)
	if err != nil {
		s.logger.Error("list category questions failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	views, err := toStaffQuestions(questions)
	if err != nil {
		s.logger.Error("map staff questions failed", zap.Error(err))
		return nil, err
	}
	return &dto.CategoryQuestionsResponse{Category: category, Questions: views}, nil
}

// ────────────────────── SyncAnswers ──────────────────────

func (s *progressService) SyncAnswers(ctx context.Context, userID, sessionID string, req *dto.SyncAnswersRequest) (*dto.ProgressResponse, error) {
	p, session, err := s.loadInProgress(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if p.CurrentCategory == "" {
		return nil, ErrCategoryNotCurrent
	}

	questions, err := s.repo.QuestionBank.ListBySessionAndCategory(ctx, sessionID, p.CurrentCategory)
	if err != nil {
		s.logger.Error("list category questions failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	byID := make(map[string]*model.QuestionBank, len(questions))
	for i := range questions {
		byID[questions[i].QuestionBankID] = &questions[i]
	}

	// validate everything before merging anything
	for questionID, option := range req.Answers {
		q, ok := byID[questionID]
		if !ok {
			return nil, ErrQuestionNotInCategory
		}
		if option < 0 || option >= len(q.Options) {
			return nil, ErrAnswerOutOfRange
		}
	}

	sheet := p.AnswerSheet()
	for questionID, option := range req.Answers {
		sheet[questionID] = option
	}
	p.SetAnswerSheet(sheet)
	now := s.now().UTC()
	p.LastSyncedAt = &now
	p.UpdatedBy = &userID

	if err := s.repo.Progress.Update(ctx, p); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrProgressAlreadyCompleted
		}
		s.logger.Error("sync answers failed", zap.String("progress_id", p.ProgressID), zap.Error(err))
		return nil, err
	}
	return s.toProgressResponse(p, session, ""), nil
}

// ────────────────────── CompleteCategory ──────────────────────

func (s *progressService) CompleteCategory(ctx context.Context, userID, sessionID string, req *dto.CompleteCategoryRequest) (*dto.ProgressResponse, error) {
	p, session, err := s.loadInProgress(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if p.CurrentCategory == "" || p.CurrentCategory != req.Category {
		return nil, ErrCategoryNotCurrent
	}

	counts, err := s.repo.QuestionBank.CountByCategory(ctx, sessionID)
	if err != nil {
		s.logger.Error("count questions failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	if !p.HasCompletedCategory(req.Category) {
		p.CompletedCategories = append(p.CompletedCategories, req.Category)
	}
	p.CurrentCategory = model.NextCategory(req.Category, availableCategories(counts, p.CompletedCategories))
	p.UpdatedBy = &userID

	if err := s.repo.Progress.Update(ctx, p); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrProgressAlreadyCompleted
		}
		s.logger.Error("complete category failed", zap.String("progress_id", p.ProgressID), zap.Error(err))
		return nil, err
	}
	return s.toProgressResponse(p, session, ""), nil
}

// ────────────────────── Submit ──────────────────────

func (s *progressService) Submit(ctx context.Context, userID, sessionID string) (*dto.ProgressResponse, error) {
	p, session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.ProgressStatusCompleted {
		return nil, ErrProgressAlreadyCompleted
	}
	return s.finalize(ctx, p, session, p.IsOverdue(s.now()))
}

// ────────────────────── ListMine ──────────────────────

func (s *progressService) ListMine(ctx context.Context, userID string) ([]dto.ProgressResponse, error) {
	list, err := s.repo.Progress.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("list progress failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.ProgressResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toProgressResponse(&list[i], list[i].Session, ""))
	}
	return result, nil
}

// ────────────────────── ExpireOverdue ──────────────────────

func (s *progressService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.Progress.ListExpired(ctx, now.UTC(), expireSweepBatch)
	if err != nil {
		s.logger.Error("list expired attempts failed", zap.Error(err))
		return 0, err
	}

	sessions := make(map[string]*model.Session)
	finalized := 0
	for i := range expired {
		p := &expired[i]
		session, ok := sessions[p.SessionID]
		if !ok {
			session, err = s.getSession(ctx, p.SessionID)
			if err != nil {
				s.logger.Warn("skip expired attempt, session unavailable",
					zap.String("progress_id", p.ProgressID), zap.Error(err))
				continue
			}
			sessions[p.SessionID] = session
		}
		if _, err := s.finalize(ctx, p, session, true); err != nil {
			if errors.Is(err, ErrProgressAlreadyCompleted) {
				continue
			}
			return finalized, err
		}
		finalized++
	}
	return finalized, nil
}

// ═══════════════════════════════════════════════════════════
// finalize scores the attempt, credits the user and, when passed,
// creates a pending certificate in the same transaction.
// ═══════════════════════════════════════════════════════════

func (s *progressService) finalize(ctx context.Context, p *model.UserSessionProgress, session *model.Session, timedOut bool) (*dto.ProgressResponse, error) {
	questions, err := s.repo.QuestionBank.ListBySession(ctx, session.SessionID)
	if err != nil {
		s.logger.Error("list questions failed", zap.String("session_id", session.SessionID), zap.Error(err))
		return nil, err
	}

	score, total := scoreAnswers(questions, p.AnswerSheet())
	now := s.now().UTC()

	p.Score = score
	p.TotalPoints = total
	p.Percentage = 0
	if total > 0 {
		p.Percentage = round2(float64(score) * 100 / float64(total))
	}
	p.Passed = total > 0 && p.Percentage >= float64(session.PassMark)
	p.TimedOut = timedOut
	p.CurrentCategory = ""
	p.CompletedAt = &now

	var cert *model.Certificate
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Progress.Complete(ctx, p); err != nil {
			return err
		}
		if score > 0 {
			if err := txRepo.User.AddScore(ctx, p.UserID, score); err != nil {
				return err
			}
		}
		if p.Passed && session.CertificateEnabled {
			cert = &model.Certificate{
				UserID:            p.UserID,
				SessionID:         session.SessionID,
				CertificateNumber: newCertificateNumber(now),
				Score:             score,
				Percentage:        p.Percentage,
				Status:            model.CertificateStatusPending,
			}
			return txRepo.Certificate.Create(ctx, cert)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrProgressAlreadyCompleted
		}
		s.logger.Error("finalize attempt failed", zap.String("progress_id", p.ProgressID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("attempt completed",
		zap.String("progress_id", p.ProgressID),
		zap.Int("score", score), zap.Int("total", total),
		zap.Bool("passed", p.Passed), zap.Bool("timed_out", timedOut))

	certID := ""
	if cert != nil {
		certID = cert.CertificateID
		if s.enqueuer != nil {
			// the certificate stays pending and can be regenerated if this fails
			if err := s.enqueuer.EnqueueCertificate(ctx, cert.CertificateID); err != nil {
				s.logger.Error("enqueue certificate failed", zap.String("certificate_id", cert.CertificateID), zap.Error(err))
			}
		}
	}

	return s.toProgressResponse(p, session, certID), nil
}

// scoreAnswers sums the points of correctly answered questions against all points.
func scoreAnswers(questions []model.QuestionBank, sheet model.AnswerSheet) (score, total int) {
	for _, q := range questions {
		total += q.Points
		if chosen, ok := sheet[q.QuestionBankID]; ok && chosen == q.CorrectOption {
			score += q.Points
		}
	}
	return score, total
}

// availableCategories categories that still have questions and are not completed.
func availableCategories(counts map[string]int64, completed []string) map[string]bool {
	available := make(map[string]bool, len(counts))
	for c, n := range counts {
		if n > 0 {
			available[c] = true
		}
	}
	for _, c := range completed {
		delete(available, c)
	}
	return available
}

// ── helpers ──

func (s *progressService) load(ctx context.Context, userID, sessionID string) (*model.UserSessionProgress, *model.Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repo.Progress.GetByUserAndSession(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProgressNotFound
		}
		s.logger.Error("query progress failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, nil, err
	}
	return p, session, nil
}

// loadInProgress finalises an overdue attempt and reports ErrProgressExpired.
func (s *progressService) loadInProgress(ctx context.Context, userID, sessionID string) (*model.UserSessionProgress, *model.Session, error) {
	p, session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status == model.ProgressStatusCompleted {
		return nil, nil, ErrProgressAlreadyCompleted
	}
	if p.IsOverdue(s.now()) {
		if _, err := s.finalize(ctx, p, session, true); err != nil && !errors.Is(err, ErrProgressAlreadyCompleted) {
			return nil, nil, err
		}
		return nil, nil, ErrProgressExpired
	}
	return p, session, nil
}

func (s *progressService) getSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("query session failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return session, nil
}

func (s *progressService) certificateID(ctx context.Context, userID, sessionID string) string {
	cert, err := s.repo.Certificate.GetByUserAndSession(ctx, userID, sessionID)
	if err != nil {
		return ""
	}
	return cert.CertificateID
}

func (s *progressService) toProgressResponse(p *model.UserSessionProgress, session *model.Session, certificateID string) *dto.ProgressResponse {
	completed := []string(p.CompletedCategories)
	if completed == nil {
		completed = []string{}
	}
	resp := &dto.ProgressResponse{
		ID:                  p.ProgressID,
		SessionID:           p.SessionID,
		Status:              p.Status,
		CurrentCategory:     p.CurrentCategory,
		CompletedCategories: completed,
		Answers:             p.AnswerSheet(),
		Score:               p.Score,
		TotalPoints:         p.TotalPoints,
		Percentage:          p.Percentage,
		Passed:              p.Passed,
		TimedOut:            p.TimedOut,
		StartedAt:           formatTime(p.StartedAt),
		ExpiresAt:           formatTime(p.ExpiresAt),
		CompletedAt:         formatTimePtr(p.CompletedAt),
		CertificateID:       certificateID,
	}
	if session != nil {
		resp.SessionTitle = session.Title
	}
	if p.Status == model.ProgressStatusInProgress {
		if remaining := p.ExpiresAt.Sub(s.now()); remaining > 0 {
			resp.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return resp
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/repository"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

// ── session errors ──

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionWindowInvalid = errors.New("session ends_at must be after starts_at")
	ErrSessionLocked        = errors.New("duration and pass mark are locked once staff have started the session")
	ErrSessionHasProgress   = errors.New("session already has attempts")
	ErrSessionNoQuestions   = errors.New("session has no questions")
	ErrSessionInvalidStatus = errors.New("session status does not allow this operation")
	ErrExportGenerateFail   = errors.New("failed to build the spreadsheet")
)

const exportPageSize = 500

// SessionService assessment session management
type SessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest, callerID string) (*dto.SessionResponse, error)
	Get(ctx context.Context, id string, caller Caller) (*dto.SessionResponse, error)
	List(ctx context.Context, req *dto.SessionListRequest, caller Caller) ([]dto.SessionResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateSessionRequest, callerID string) (*dto.SessionResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	Publish(ctx context.Context, id string, callerID string) (*dto.SessionResponse, error)
	Close(ctx context.Context, id string, callerID string) (*dto.SessionResponse, error)
	// Results attempts of a session; HODs are forced to their own department.
	Results(ctx context.Context, id string, req *dto.SessionResultsRequest, caller Caller) ([]dto.SessionResultResponse, int64, error)
	// ExportResults returns an xlsx workbook and a suggested file name.
	ExportResults(ctx context.Context, id string, departmentID string, caller Caller) (*bytes.Buffer, string, error)
}

type sessionService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionService creates a SessionService
func NewSessionService(repo *repository.Repository, logger *zap.Logger) SessionService {
	return &sessionService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *sessionService) Create(ctx context.Context, req *dto.CreateSessionRequest, callerID string) (*dto.SessionResponse, error) {
	if err := validateWindow(req.StartsAt, req.EndsAt); err != nil {
		return nil, err
	}

	session := &model.Session{
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		DurationMinutes:    req.DurationMinutes,
		PassMark:           70,
		StartsAt:           utcPtr(req.StartsAt),
		EndsAt:             utcPtr(req.EndsAt),
		Status:             model.SessionStatusDraft,
		CertificateEnabled: true,
	}
	if req.PassMark != nil {
		session.PassMark = *req.PassMark
	}
	if req.CertificateEnabled != nil {
		session.CertificateEnabled = *req.CertificateEnabled
	}
	session.CreatedBy = &callerID
	session.UpdatedBy = &callerID

	if err := s.repo.Session.Create(ctx, session); err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		return nil, err
	}

	return s.toSessionResponse(ctx, session, true), nil
}

// ────────────────────── Get ──────────────────────

func (s *sessionService) Get(ctx context.Context, id string, caller Caller) (*dto.SessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	// drafts are invisible outside administration
	if caller.Role != model.RoleAdmin && session.Status == model.SessionStatusDraft {
		return nil, ErrSessionNotFound
	}
	return s.toSessionResponse(ctx, session, true), nil
}

// ────────────────────── List ──────────────────────

func (s *sessionService) List(ctx context.Context, req *dto.SessionListRequest, caller Caller) ([]dto.SessionResponse, int64, error) {
	filters := &repository.SessionListFilters{Status: req.Status}
	if caller.Role != model.RoleAdmin {
		now := s.now().UTC()
		filters.Status = model.SessionStatusPublished
		filters.AvailableAt = &now
	}

	sessions, total, err := s.repo.Session.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list sessions failed", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		result = append(result, *s.toSessionResponse(ctx, &sessions[i], false))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *sessionService) Update(ctx context.Context, id string, req *dto.UpdateSessionRequest, callerID string) (*dto.SessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	scoringChange := (req.DurationMinutes != nil && *req.DurationMinutes != session.DurationMinutes) ||
		(req.PassMark != nil && *req.PassMark != session.PassMark)
	if scoringChange && session.Status != model.SessionStatusDraft {
		attempts, err := s.repo.Progress.CountBySession(ctx, id)
		if err != nil {
			s.logger.Error("count session attempts failed", zap.String("id", id), zap.Error(err))
			return nil, err
		}
		if attempts > 0 {
			return nil, ErrSessionLocked
		}
	}

	if req.Title != nil {
		session.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		session.DurationMinutes = *req.DurationMinutes
	}
	if req.PassMark != nil {
		session.PassMark = *req.PassMark
	}
	if req.StartsAt != nil {
		session.StartsAt = utcPtr(req.StartsAt)
	}
	if req.EndsAt != nil {
		session.EndsAt = utcPtr(req.EndsAt)
	}
	if req.CertificateEnabled != nil {
		session.CertificateEnabled = *req.CertificateEnabled
	}
	if err := validateWindow(session.StartsAt, session.EndsAt); err != nil {
		return nil, err
	}

	session.UpdatedBy = &callerID
	if err := s.repo.Session.Update(ctx, session); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("update session failed", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return s.toSessionResponse(ctx, session, true), nil
}

// ────────────────────── Delete ──────────────────────

func (s *sessionService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.getSession(ctx, id); err != nil {
		return err
	}

	attempts, err := s.repo.Progress.CountBySession(ctx, id)
	if err != nil {
		s.logger.Error("count session attempts failed", zap.String("id", id), zap.Error(err))
		return err
	}
	if attempts > 0 {
		return ErrSessionHasProgress
	}

	if err := s.repo.Session.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("delete session failed", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Publish / Close ──────────────────────

func (s *sessionService) Publish(ctx context.Context, id string, callerID string) (*dto.SessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusPublished {
		return nil, ErrSessionInvalidStatus
	}

	counts, err := s.repo.QuestionBank.CountByCategory(ctx, id)
	if err != nil {
		s.logger.Error("count questions failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if sumCounts(counts) == 0 {
		return nil, ErrSessionNoQuestions
	}

	return s.setStatus(ctx, session, model.SessionStatusPublished, callerID)
}

func (s *sessionService) Close(ctx context.Context, id string, callerID string) (*dto.SessionResponse, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusPublished {
		return nil, ErrSessionInvalidStatus
	}
	return s.setStatus(ctx, session, model.SessionStatusClosed, callerID)
}

func (s *sessionService) setStatus(ctx context.Context, session *model.Session, status, callerID string) (*dto.SessionResponse, error) {
	session.Status = status
	session.UpdatedBy = &callerID
	if err := s.repo.Session.Update(ctx, session); err != nil {
		s.logger.Error("update session status failed",
			zap.String("id", session.SessionID), zap.String("status", status), zap.Error(err))
		return nil, err
	}
	s.logger.Info("session status changed", zap.String("id", session.SessionID), zap.String("status", status))
	return s.toSessionResponse(ctx, session, true), nil
}

// ────────────────────── Results ──────────────────────

func (s *sessionService) Results(ctx context.Context, id string, req *dto.SessionResultsRequest, caller Caller) ([]dto.SessionResultResponse, int64, error) {
	if _, err := s.getSession(ctx, id); err != nil {
		return nil, 0, err
	}

	departmentID := req.DepartmentID
	if caller.Role == model.RoleHOD {
		departmentID = caller.DepartmentID
	}

	rows, total, err := s.repo.Progress.ListBySession(ctx, id, departmentID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list session results failed", zap.String("id", id), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.SessionResultResponse, 0, len(rows))
	for i := range rows {
		result = append(result, toSessionResult(&rows[i]))
	}
	return result, total, nil
}

// ────────────────────── ExportResults ──────────────────────

func (s *sessionService) ExportResults(ctx context.Context, id string, departmentID string, caller Caller) (*bytes.Buffer, string, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if caller.Role == model.RoleHOD {
		departmentID = caller.DepartmentID
	}

	var results []dto.SessionResultResponse
	for offset := 0; ; offset += exportPageSize {
		rows, total, err := s.repo.Progress.ListBySession(ctx, id, departmentID, offset, exportPageSize)
		if err != nil {
			s.logger.Error("list session results failed", zap.String("id", id), zap.Error(err))
			return nil, "", err
		}
		for i := range rows {
			results = append(results, toSessionResult(&rows[i]))
		}
		if len(rows) < exportPageSize || int64(offset+len(rows)) >= total {
			break
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"Staff ID", "Name", "Department", "Status", "Score", "Total", "Percentage", "Passed", "Timed out", "Started", "Completed"}
	widths := []float64{14, 24, 22, 12, 8, 8, 12, 8, 10, 22, 22}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, widths[i])
		f.SetCellValue(sheet, col+"1", h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i, r := range results {
		row := []interface{}{
			r.StaffID, r.UserName, r.DepartmentName, r.Status, r.Score, r.TotalPoints,
			r.Percentage, yesNo(r.Passed), yesNo(r.TimedOut), r.StartedAt, r.CompletedAt,
		}
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, start, &row); err != nil {
			s.logger.Error("write result row failed", zap.Int("row", i+2), zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write workbook failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("results_%s_%s.xlsx", slug(session.Title), s.now().UTC().Format("20060102"))
	return buf, filename, nil
}

// ── helpers ──

func (s *sessionService) getSession(ctx context.Context, id string) (*model.Session, error) {
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

func (s *sessionService) toSessionResponse(ctx context.Context, session *model.Session, withCounts bool) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:                 session.SessionID,
		Title:              session.Title,
		Description:        session.Description,
		DurationMinutes:    session.DurationMinutes,
		PassMark:           session.PassMark,
		StartsAt:           formatTimePtr(session.StartsAt),
		EndsAt:             formatTimePtr(session.EndsAt),
		Status:             session.Status,
		CertificateEnabled: session.CertificateEnabled,
		Version:            session.Version,
		CreatedAt:          formatTime(session.CreatedAt),
		UpdatedAt:          formatTime(session.UpdatedAt),
	}
	if withCounts {
		counts, err := s.repo.QuestionBank.CountByCategory(ctx, session.SessionID)
		if err != nil {
			s.logger.Warn("count questions failed", zap.String("id", session.SessionID), zap.Error(err))
			return resp
		}
		resp.CategoryCounts = counts
		resp.QuestionCount = sumCounts(counts)
	}
	return resp
}

func toSessionResult(p *model.UserSessionProgress) dto.SessionResultResponse {
	r := dto.SessionResultResponse{
		ProgressID:  p.ProgressID,
		UserID:      p.UserID,
		Status:      p.Status,
		Score:       p.Score,
		TotalPoints: p.TotalPoints,
		Percentage:  p.Percentage,
		Passed:      p.Passed,
		TimedOut:    p.TimedOut,
		StartedAt:   formatTime(p.StartedAt),
		CompletedAt: formatTimePtr(p.CompletedAt),
	}
	if p.User != nil {
		r.UserName = p.User.Name
		r.StaffID = p.User.StaffID
		r.DepartmentID = p.User.DepartmentID
		if p.User.Department != nil {
			r.DepartmentName = p.User.Department.Name
		}
	}
	return r
}

func validateWindow(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return ErrSessionWindowInvalid
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func sumCounts(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// slug keeps letters and digits, joining the rest with underscores.
func slug(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/repository"
)

// ── question bank errors ──

var (
	ErrQuestionNotFound      = errors.New("question not found")
	ErrCorrectOptionRange    = errors.New("correct_option must index one of the options")
	ErrQuestionSessionLocked = errors.New("questions cannot change once staff have started the session")
)

const maxQuestionOptions = 6

// QuestionService question bank management
type QuestionService interface {
	Create(ctx context.Context, sessionID string, req *dto.CreateQuestionRequest, callerID string) (*dto.QuestionResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateQuestionRequest, callerID string) (*dto.QuestionResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	ListBySession(ctx context.Context, sessionID string) ([]dto.QuestionResponse, error)
	ParseImportFile(reader io.Reader) ([]ImportQuestionRow, error)
	Import(ctx context.Context, sessionID string, rows []ImportQuestionRow, callerID string) (*dto.ImportResponse, error)
}

// ImportQuestionRow one parsed spreadsheet row
type ImportQuestionRow struct {
	Row      int
	Category string
	Question string
	Options  []string
	Correct  string // letter A-F
	Points   string
}

type questionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewQuestionService creates a QuestionService
func NewQuestionService(repo *repository.Repository, logger *zap.Logger) QuestionService {
	return &questionService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *questionService) Create(ctx context.Context, sessionID string, req *dto.CreateQuestionRequest, callerID string) (*dto.QuestionResponse, error) {
	if err := s.ensureEditable(ctx, sessionID); err != nil {
		return nil, err
	}
	if *req.CorrectOption >= len(req.Options) {
		return nil, ErrCorrectOptionRange
	}

	points := req.Points
	if points == 0 {
		points = 1
	}
	q := &model.QuestionBank{
		SessionID:     sessionID,
		Category:      req.Category,
		Question:      strings.TrimSpace(req.Question),
		Options:       datatypes.JSONSlice[string](trimAll(req.Options)),
		CorrectOption: *req.CorrectOption,
		Points:        points,
		OrderNum:      req.OrderNum,
	}
	q.CreatedBy = &callerID
	q.UpdatedBy = &callerID

	if err := s.repo.QuestionBank.Create(ctx, q); err != nil {
		s.logger.Error("create question failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return toQuestionResponse(q), nil
}

// ────────────────────── Update ──────────────────────

func (s *questionService) Update(ctx context.Context, id string, req *dto.UpdateQuestionRequest, callerID string) (*dto.QuestionResponse, error) {
	q, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, q.SessionID); err != nil {
		return nil, err
	}

	if req.Category != nil {
		q.Category = *req.Category
	}
	if req.Question != nil {
		q.Question = strings.TrimSpace(*req.Question)
	}
	if req.Options != nil {
		q.Options = datatypes.JSONSlice[string](trimAll(req.Options))
	}
	if req.CorrectOption != nil {
		q.CorrectOption = *req.CorrectOption
	}
	if req.Points != nil {
		q.Points = *req.Points
	}
	if req.OrderNum != nil {
		q.OrderNum = *req.OrderNum
	}
	if q.CorrectOption >= len(q.Options) {
		return nil, ErrCorrectOptionRange
	}

	q.UpdatedBy = &callerID
	if err := s.repo.QuestionBank.Update(ctx, q); err != nil {
		s.logger.Error("update question failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toQuestionResponse(q), nil
}

// ────────────────────── Delete ──────────────────────

func (s *questionService) Delete(ctx context.Context, id string, callerID string) error {
	q, err := s.getQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, q.SessionID); err != nil {
		return err
	}
	if err := s.repo.QuestionBank.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("delete question failed", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ListBySession ──────────────────────

func (s *questionService) ListBySession(ctx context.Context, sessionID string) ([]dto.QuestionResponse, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	questions, err := s.repo.QuestionBank.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("list questions failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	// CRISP order first, then the stored order
	result := make([]dto.QuestionResponse, 0, len(questions))
	for _, category := range model.Categories {
		for i := range questions {
			if questions[i].Category == category {
				result = append(result, *toQuestionResponse(&questions[i]))
			}
		}
	}
	return result, nil
}

// ────────────────────── ParseImportFile ──────────────────────

var optionColumns = []string{"option_a", "option_b", "option_c", "option_d", "option_e", "option_f"}

// ParseImportFile reads the first sheet of an xlsx upload.
// Columns: category, question, option_a..option_f, correct (letter), points.
func (s *questionService) ParseImportFile(reader io.Reader) ([]ImportQuestionRow, error) {
	excelRows, err := readFirstSheet(reader)
	if err != nil {
		return nil, err
	}

	aliases := map[string][]string{
		"category": {"category"},
		"question": {"question"},
		"correct":  {"correct", "answer", "correct_option"},
		"points":   {"points", "score"},
	}
	for i, col := range optionColumns {
		letter := string(rune('a' + i))
		aliases[col] = []string{col, "option " + letter, letter}
	}
	colIndex := parseHeaderIndex(excelRows[0], aliases)
	for _, col := range []string{"category", "question", "correct", "option_a", "option_b"} {
		if colIndex[col] < 0 {
			return nil, ErrImportBadHeader
		}
	}

	var rows []ImportQuestionRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportQuestionRow{
			Row:      i + 1,
			Category: strings.ToLower(cell(row, colIndex["category"])),
			Question: cell(row, colIndex["question"]),
			Correct:  strings.ToUpper(cell(row, colIndex["correct"])),
			Points:   cell(row, colIndex["points"]),
		}
		// keep blank cells in place so the correct letter still lines up
		for _, col := range optionColumns {
			item.Options = append(item.Options, cell(row, colIndex[col]))
		}
		for len(item.Options) > 0 && item.Options[len(item.Options)-1] == "" {
			item.Options = item.Options[:len(item.Options)-1]
		}

		if item.Category == "" && item.Question == "" && len(item.Options) == 0 && item.Correct == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// ────────────────────── Import ──────────────────────

func (s *questionService) Import(ctx context.Context, sessionID string, rows []ImportQuestionRow, callerID string) (*dto.ImportResponse, error) {
	if err := s.ensureEditable(ctx, sessionID); err != nil {
		return nil, err
	}

	resp := &dto.ImportResponse{Total: len(rows)}
	valid := make([]model.QuestionBank, 0, len(rows))

	for _, row := range rows {
		q, reason := buildImportedQuestion(sessionID, row)
		if reason != "" {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportRowError{Row: row.Row, Reason: reason})
			continue
		}
		q.OrderNum = row.Row
		q.CreatedBy = &callerID
		q.UpdatedBy = &callerID
		valid = append(valid, q)
	}

	if len(valid) == 0 {
		return resp, nil
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		return txRepo.QuestionBank.BatchCreate(ctx, valid)
	})
	if err != nil {
		s.logger.Error("import questions failed, rolled back", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("import rolled back: %w", err)
	}

	resp.Success = len(valid)
	return resp, nil
}

// buildImportedQuestion returns a non-empty reason when the row is invalid.
func buildImportedQuestion(sessionID string, row ImportQuestionRow) (model.QuestionBank, string) {
	var q model.QuestionBank
	if !model.IsCategory(row.Category) {
		return q, fmt.Sprintf("unknown category: %q", row.Category)
	}
	if row.Question == "" {
		return q, "question is empty"
	}
	for i, opt := range row.Options {
		if opt == "" {
			return q, fmt.Sprintf("option %c is blank, options must be filled left to right", 'A'+i)
		}
	}
	if len(row.Options) < 2 || len(row.Options) > maxQuestionOptions {
		return q, "between 2 and 6 options are required"
	}
	if len(row.Correct) != 1 || row.Correct[0] < 'A' || row.Correct[0] > 'F' {
		return q, fmt.Sprintf("correct answer must be a letter A-F, got %q", row.Correct)
	}
	correct := int(row.Correct[0] - 'A')
	if correct >= len(row.Options) {
		return q, fmt.Sprintf("correct answer %s has no option", row.Correct)
	}
	points := 1
	if row.Points != "" {
		p, err := strconv.Atoi(row.Points)
		if err != nil || p < 1 || p > 100 {
			return q, fmt.Sprintf("points must be 1-100, got %q", row.Points)
		}
		points = p
	}

	q = model.QuestionBank{
		SessionID:     sessionID,
		Category:      row.Category,
		Question:      row.Question,
		Options:       datatypes.JSONSlice[string](row.Options),
		CorrectOption: correct,
		Points:        points,
	}
	return q, ""
}

// ── helpers ──

// ensureEditable refuses changes once any attempt exists.
func (s *questionService) ensureEditable(ctx context.Context, sessionID string) error {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return err
	}
	attempts, err := s.repo.Progress.CountBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("count session attempts failed", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	if attempts > 0 {
		return ErrQuestionSessionLocked
	}
	return nil
}

func (s *questionService) getSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *questionService) getQuestion(ctx context.Context, id string) (*model.QuestionBank, error) {
	q, err := s.repo.QuestionBank.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		s.logger.Error("query question failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return q, nil
}

func toQuestionResponse(q *model.QuestionBank) *dto.QuestionResponse {
	return &dto.QuestionResponse{
		ID:            q.QuestionBankID,
		SessionID:     q.SessionID,
		Category:      q.Category,
		Question:      q.Question,
		Options:       []string(q.Options),
		CorrectOption: q.CorrectOption,
		Points:        q.Points,
		OrderNum:      q.OrderNum,
	}
}

// toStaffQuestions strips the answers for the attempt view.
func toStaffQuestions(questions []model.QuestionBank) ([]dto.StaffQuestionResponse, error) {
	result := make([]dto.StaffQuestionResponse, 0, len(questions))
	if err := copier.Copy(&result, &questions); err != nil {
		return nil, err
	}
	return result, nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// QuestionBankRepository question data access
type QuestionBankRepository interface {
	Create(ctx context.Context, q *model.QuestionBank) error
	BatchCreate(ctx context.Context, questions []model.QuestionBank) error
	GetByID(ctx context.Context, id string) (*model.QuestionBank, error)
	Update(ctx context.Context, q *model.QuestionBank) error
	Delete(ctx context.Context, id string, deletedBy string) error
	ListBySession(ctx context.Context, sessionID string) ([]model.QuestionBank, error)
	ListBySessionAndCategory(ctx context.Context, sessionID, category string) ([]model.QuestionBank, error)
	// CountByCategory question counts of a session keyed by category
	CountByCategory(ctx context.Context, sessionID string) (map[string]int64, error)
}

type questionBankRepo struct {
	db *gorm.DB
}

// NewQuestionBankRepo creates a QuestionBankRepository
func NewQuestionBankRepo(db *gorm.DB) QuestionBankRepository {
	return &questionBankRepo{db: db}
}

func (r *questionBankRepo) Create(ctx context.Context, q *model.QuestionBank) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *questionBankRepo) BatchCreate(ctx context.Context, questions []model.QuestionBank) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(questions, 100).Error
}

func (r *questionBankRepo) GetByID(ctx context.Context, id string) (*model.QuestionBank, error) {
	var q model.QuestionBank
	err := r.db.WithContext(ctx).
		Where("question_bank_id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *questionBankRepo) Update(ctx context.Context, q *model.QuestionBank) error {
	return r.db.WithContext(ctx).Save(q).Error
}

func (r *questionBankRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.QuestionBank{}).
		Where("question_bank_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *questionBankRepo) ListBySession(ctx context.Context, sessionID string) ([]model.QuestionBank, error) {
	var questions []model.QuestionBank
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("category ASC, order_num ASC, created_at ASC").
		Find(&questions).Error
	return questions, err
}

func (r *questionBankRepo) ListBySessionAndCategory(ctx context.Context, sessionID, category string) ([]model.QuestionBank, error) {
	var questions []model.QuestionBank
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND category = ?", sessionID, category).
		Order("order_num ASC, created_at ASC").
		Find(&questions).Error
	return questions, err
}

func (r *questionBankRepo) CountByCategory(ctx context.Context, sessionID string) (map[string]int64, error) {
	var rows []struct {
		Category string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.QuestionBank{}).
		Select("category, COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Category] = row.Count
	}
	return result, nil
}

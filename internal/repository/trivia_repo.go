package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// TriviaRepository monthly trivia data access
type TriviaRepository interface {
	Create(ctx context.Context, t *model.Trivia) error
	GetByID(ctx context.Context, id string) (*model.Trivia, error)
	GetByMonth(ctx context.Context, month string) (*model.Trivia, error)
	// GetCurrent the active trivia whose window contains now
	GetCurrent(ctx context.Context, now time.Time) (*model.Trivia, error)
	List(ctx context.Context, offset, limit int) ([]model.Trivia, int64, error)
	Update(ctx context.Context, t *model.Trivia) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type triviaRepo struct {
	db *gorm.DB
}

// NewTriviaRepo creates a TriviaRepository
func NewTriviaRepo(db *gorm.DB) TriviaRepository {
	return &triviaRepo{db: db}
}

func (r *triviaRepo) Create(ctx context.Context, t *model.Trivia) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *triviaRepo) GetByID(ctx context.Context, id string) (*model.Trivia, error) {
	var t model.Trivia
	err := r.db.WithContext(ctx).
		Where("trivia_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *triviaRepo) GetByMonth(ctx context.Context, month string) (*model.Trivia, error) {
	var t model.Trivia
	err := r.db.WithContext(ctx).
		Where("month = ?", month).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *triviaRepo) GetCurrent(ctx context.Context, now time.Time) (*model.Trivia, error) {
	var t model.Trivia
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND starts_at <= ? AND ends_at >= ?", true, now, now).
		Order("starts_at DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *triviaRepo) List(ctx context.Context, offset, limit int) ([]model.Trivia, int64, error) {
	var list []model.Trivia
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Trivia{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("month DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *triviaRepo) Update(ctx context.Context, t *model.Trivia) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *triviaRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Trivia{}).
		Where("trivia_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

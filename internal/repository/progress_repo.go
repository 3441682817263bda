package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

// ProgressRepository session attempt data access
type ProgressRepository interface {
	Create(ctx context.Context, p *model.UserSessionProgress) error
	GetByID(ctx context.Context, id string) (*model.UserSessionProgress, error)
	GetByUserAndSession(ctx context.Context, userID, sessionID string) (*model.UserSessionProgress, error)
	// Update writes answers and category progress of an attempt still in progress.
	// Returns pkgerrors.ErrOptimisticLock once the attempt has been completed.
	Update(ctx context.Context, p *model.UserSessionProgress) error
	// Complete writes the final result only while the attempt is still in progress.
	// Returns pkgerrors.ErrOptimisticLock when another request finished it first.
	Complete(ctx context.Context, p *model.UserSessionProgress) error
	ListByUser(ctx context.Context, userID string) ([]model.UserSessionProgress, error)
	// ListBySession attempts with user and department, optionally within one department
	ListBySession(ctx context.Context, sessionID, departmentID string, offset, limit int) ([]model.UserSessionProgress, int64, error)
	// ListExpired in-progress attempts whose expires_at is before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.UserSessionProgress, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	// CountCompletedByUsers completed attempts keyed by user id
	CountCompletedByUsers(ctx context.Context, userIDs []string) (map[string]int64, error)
}

type progressRepo struct {
	db *gorm.DB
}

// NewProgressRepo creates a ProgressRepository
func NewProgressRepo(db *gorm.DB) ProgressRepository {
	return &progressRepo{db: db}
}

func (r *progressRepo) Create(ctx context.Context, p *model.UserSessionProgress) error {
	return r.db.WithContext(ctx).Omit("User", "Session").Create(p).Error
}

func (r *progressRepo) GetByID(ctx context.Context, id string) (*model.UserSessionProgress, error) {
	var p model.UserSessionProgress
	err := r.db.WithContext(ctx).
		Where("progress_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *progressRepo) GetByUserAndSession(ctx context.Context, userID, sessionID string) (*model.UserSessionProgress, error) {
	var p model.UserSessionProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *progressRepo) Update(ctx context.Context, p *model.UserSessionProgress) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserSessionProgress{}).
		Where("progress_id = ? AND status = ?", p.ProgressID, model.ProgressStatusInProgress).
		Updates(map[string]interface{}{
			"answers":              p.Answers,
			"current_category":     p.CurrentCategory,
			"completed_categories": p.CompletedCategories,
			"last_synced_at":       p.LastSyncedAt,
			"updated_by":           p.UpdatedBy,
			"updated_at":           gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *progressRepo) Complete(ctx context.Context, p *model.UserSessionProgress) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserSessionProgress{}).
		Where("progress_id = ? AND status = ?", p.ProgressID, model.ProgressStatusInProgress).
		Updates(map[string]interface{}{
			"status":           model.ProgressStatusCompleted,
			"current_category": p.CurrentCategory,
			"answers":          p.Answers,
			"score":            p.Score,
			"total_points":     p.TotalPoints,
			"percentage":       p.Percentage,
			"passed":           p.Passed,
			"timed_out":        p.TimedOut,
			"completed_at":     p.CompletedAt,
			"updated_at":       gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	p.Status = model.ProgressStatusCompleted
	return nil
}

func (r *progressRepo) ListByUser(ctx context.Context, userID string) ([]model.UserSessionProgress, error) {
	var list []model.UserSessionProgress
	err := r.db.WithContext(ctx).
		Preload("Session").
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&list).Error
	return list, err
}

func (r *progressRepo) ListBySession(ctx context.Context, sessionID, departmentID string, offset, limit int) ([]model.UserSessionProgress, int64, error) {
	var list []model.UserSessionProgress
	var total int64

	db := r.db.WithContext(ctx).
		Model(&model.UserSessionProgress{}).
		Where("user_session_progress.session_id = ?", sessionID)
	if departmentID != "" {
		db = db.Joins("JOIN users ON users.user_id = user_session_progress.user_id").
			Where("users.department_id = ?", departmentID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("User").Preload("User.Department").
		Offset(offset).Limit(limit).
		Order("user_session_progress.percentage DESC, user_session_progress.started_at ASC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *progressRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.UserSessionProgress, error) {
	var list []model.UserSessionProgress
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.ProgressStatusInProgress, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *progressRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserSessionProgress{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (r *progressRepo) CountCompletedByUsers(ctx context.Context, userIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		UserID string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.UserSessionProgress{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ? AND status = ?", userIDs, model.ProgressStatusCompleted).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.UserID] = row.Count
	}
	return result, nil
}

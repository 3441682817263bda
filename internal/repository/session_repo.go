package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

// SessionListFilters list filters
type SessionListFilters struct {
	Status string
	// AvailableAt keeps only published sessions whose window contains it.
	AvailableAt *time.Time
}

// SessionRepository session data access
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, filters *SessionListFilters, offset, limit int) ([]model.Session, int64, error)
	// Update writes all mutable columns guarded by version.
	Update(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo creates a SessionRepository
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) List(ctx context.Context, filters *SessionListFilters, offset, limit int) ([]model.Session, int64, error) {
	var sessions []model.Session
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Session{})
	if filters != nil {
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
		if filters.AvailableAt != nil {
			at := *filters.AvailableAt
			db = db.Where("status = ?", model.SessionStatusPublished).
				Where("starts_at IS NULL OR starts_at <= ?", at).
				Where("ends_at IS NULL OR ends_at >= ?", at)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *sessionRepo) Update(ctx context.Context, session *model.Session) error {
	oldVersion := session.Version
	result := r.db.WithContext(ctx).
		Model(session).
		Where("session_id = ? AND version = ?", session.SessionID, oldVersion).
		Updates(map[string]interface{}{
			"title":               session.Title,
			"description":         session.Description,
			"duration_minutes":    session.DurationMinutes,
			"pass_mark":           session.PassMark,
			"starts_at":           session.StartsAt,
			"ends_at":             session.EndsAt,
			"status":              session.Status,
			"certificate_enabled": session.CertificateEnabled,
			"updated_by":          session.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	session.Version = oldVersion + 1
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

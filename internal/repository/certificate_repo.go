package repository

import (
	"context"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// CertificateListFilters list filters
type CertificateListFilters struct {
	SessionID string
	Status    string
}

// CertificateRepository certificate data access
type CertificateRepository interface {
	Create(ctx context.Context, cert *model.Certificate) error
	// GetByID loads the certificate with its user and session.
	GetByID(ctx context.Context, id string) (*model.Certificate, error)
	GetByUserAndSession(ctx context.Context, userID, sessionID string) (*model.Certificate, error)
	Update(ctx context.Context, cert *model.Certificate) error
	ListByUser(ctx context.Context, userID string) ([]model.Certificate, error)
	List(ctx context.Context, filters *CertificateListFilters, offset, limit int) ([]model.Certificate, int64, error)
}

type certificateRepo struct {
	db *gorm.DB
}

// NewCertificateRepo creates a CertificateRepository
func NewCertificateRepo(db *gorm.DB) CertificateRepository {
	return &certificateRepo{db: db}
}

func (r *certificateRepo) Create(ctx context.Context, cert *model.Certificate) error {
	return r.db.WithContext(ctx).Omit("User", "Session").Create(cert).Error
}

func (r *certificateRepo) GetByID(ctx context.Context, id string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.db.WithContext(ctx).
		Preload("User").Preload("Session").
		Where("certificate_id = ?", id).
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepo) GetByUserAndSession(ctx context.Context, userID, sessionID string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepo) Update(ctx context.Context, cert *model.Certificate) error {
	return r.db.WithContext(ctx).Omit("User", "Session").Save(cert).Error
}

func (r *certificateRepo) ListByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.db.WithContext(ctx).
		Preload("Session").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&certs).Error
	return certs, err
}

func (r *certificateRepo) List(ctx context.Context, filters *CertificateListFilters, offset, limit int) ([]model.Certificate, int64, error) {
	var certs []model.Certificate
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Certificate{})
	if filters != nil {
		if filters.SessionID != "" {
			db = db.Where("session_id = ?", filters.SessionID)
		}
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("User").Preload("Session").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&certs).Error; err != nil {
		return nil, 0, err
	}
	return certs, total, nil
}

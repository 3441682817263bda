package repository

import (
	"context"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// RoleRepository role lookups; roles are seeded by migration
type RoleRepository interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByCode(ctx context.Context, code string) (*model.Role, error)
}

type roleRepo struct {
	db *gorm.DB
}

// NewRoleRepo creates a RoleRepository
func NewRoleRepo(db *gorm.DB) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).Order("code ASC").Find(&roles).Error
	return roles, err
}

func (r *roleRepo) GetByCode(ctx context.Context, code string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// UserListFilters list filters
type UserListFilters struct {
	DepartmentID string
	Role         string
	Keyword      string // matches name, staff_id or email
}

// UserRepository user data access
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByStaffID(ctx context.Context, staffID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update writes the profile and credential columns. total_score is left to AddScore.
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string, deletedBy string) error
	ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// AddScore atomically adds delta to total_score.
	AddScore(ctx context.Context, userID string, delta int) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	// Leaderboard users ordered by total_score, optionally within one department.
	Leaderboard(ctx context.Context, departmentID string, limit int) ([]model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepository
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByStaffID(ctx context.Context, staffID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("staff_id = ?", staffID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// userUpdateColumns are the columns Update writes. total_score and
// last_login_at only change through AddScore and UpdateLastLogin.
var userUpdateColumns = []string{
	"name", "staff_id", "email", "password_hash", "role",
	"department_id", "must_change_password", "updated_by", "updated_at",
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).
		Model(user).
		Select(userUpdateColumns).
		Updates(user).Error
}

func (r *userRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *userRepo) ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filters != nil {
		if filters.DepartmentID != "" {
			db = db.Where("department_id = ?", filters.DepartmentID)
		}
		if filters.Role != "" {
			db = db.Where("role = ?", filters.Role)
		}
		if filters.Keyword != "" {
			kw := "%" + filters.Keyword + "%"
			db = db.Where("name ILIKE ? OR staff_id ILIKE ? OR email ILIKE ?", kw, kw, kw)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Department").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

func (r *userRepo) AddScore(ctx context.Context, userID string, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		UpdateColumn("total_score", gorm.Expr("total_score + ?", delta)).Error
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		UpdateColumn("last_login_at", at).Error
}

func (r *userRepo) Leaderboard(ctx context.Context, departmentID string, limit int) ([]model.User, error) {
	var users []model.User
	db := r.db.WithContext(ctx).Preload("Department")
	if departmentID != "" {
		db = db.Where("department_id = ?", departmentID)
	}
	err := db.Order("total_score DESC").Order("name ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

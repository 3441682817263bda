package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/repository"
)

// ── department errors ──

var (
	ErrDepartmentNameExists = errors.New("department name already exists")
	ErrDepartmentHasMembers = errors.New("department still has members")
)

// DepartmentService department management
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error)
	List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	// GetStaff members with their scores; HODs may only read their own department.
	GetStaff(ctx context.Context, id string, req *dto.PaginationRequest, caller Caller) ([]dto.DepartmentStaffResponse, int64, error)
}

type departmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDepartmentService creates a DepartmentService
func NewDepartmentService(repo *repository.Repository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	name := strings.TrimSpace(req.Name)
	existing, err := s.repo.Department.GetByName(ctx, name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("query department failed", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return nil, ErrDepartmentNameExists
	}

	dept := &model.Department{
		Name:        name,
		Description: req.Description,
		IsActive:    true,
	}
	dept.CreatedBy = &callerID
	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Create(ctx, dept); err != nil {
		s.logger.Error("create department failed", zap.Error(err))
		return nil, err
	}

	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *departmentService) GetByID(ctx context.Context, id string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── List ──────────────────────

func (s *departmentService) List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error) {
	var depts []model.Department
	var err error

	if req.IncludeInactive {
		depts, err = s.repo.Department.ListAll(ctx)
	} else {
		depts, err = s.repo.Department.List(ctx)
	}
	if err != nil {
		s.logger.Error("list departments failed", zap.Error(err))
		return nil, err
	}

	// one grouped count instead of N+1
	deptIDs := make([]string, 0, len(depts))
	for _, d := range depts {
		deptIDs = append(deptIDs, d.DepartmentID)
	}
	countMap, err := s.repo.Department.BatchCountMembers(ctx, deptIDs)
	if err != nil {
		s.logger.Warn("batch member count failed, falling back to 0", zap.Error(err))
		countMap = make(map[string]int64)
	}

	result := make([]dto.DepartmentDetailResponse, 0, len(depts))
	for i := range depts {
		result = append(result, dto.DepartmentDetailResponse{
			ID:          depts[i].DepartmentID,
			Name:        depts[i].Name,
			Description: depts[i].Description,
			IsActive:    depts[i].IsActive,
			MemberCount: countMap[depts[i].DepartmentID],
			CreatedAt:   formatTime(depts[i].CreatedAt),
			UpdatedAt:   formatTime(depts[i].UpdatedAt),
		})
	}

	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *departmentService) Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest, callerID string) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !strings.EqualFold(name, dept.Name) {
			existing, err := s.repo.Department.GetByName(ctx, name)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			if existing != nil {
				return nil, ErrDepartmentNameExists
			}
		}
		dept.Name = name
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}

	dept.UpdatedBy = &callerID

	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("update department failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return s.toDepartmentDetailResponse(ctx, dept), nil
}

// ────────────────────── Delete ──────────────────────

func (s *departmentService) Delete(ctx context.Context, id string, callerID string) error {
	dept, err := s.getDepartment(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.Department.CountMembers(ctx, dept.DepartmentID)
	if err != nil {
		s.logger.Error("count department members failed", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		return ErrDepartmentHasMembers
	}

	if err := s.repo.Department.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("delete department failed", zap.String("id", id), zap.Error(err))
		return err
	}

	return nil
}

// ────────────────────── GetStaff ──────────────────────

func (s *departmentService) GetStaff(ctx context.Context, id string, req *dto.PaginationRequest, caller Caller) ([]dto.DepartmentStaffResponse, int64, error) {
	if caller.Role == model.RoleHOD && caller.DepartmentID != id {
		return nil, 0, ErrNoPermission
	}

	if _, err := s.getDepartment(ctx, id); err != nil {
		return nil, 0, err
	}

	users, total, err := s.repo.User.ListWithFilters(ctx, &repository.UserListFilters{DepartmentID: id}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list department staff failed", zap.String("id", id), zap.Error(err))
		return nil, 0, err
	}

	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.UserID)
	}
	completed, err := s.repo.Progress.CountCompletedByUsers(ctx, userIDs)
	if err != nil {
		s.logger.Warn("count completed sessions failed, falling back to 0", zap.Error(err))
		completed = make(map[string]int64)
	}

	result := make([]dto.DepartmentStaffResponse, 0, len(users))
	for _, u := range users {
		result = append(result, dto.DepartmentStaffResponse{
			UserID:            u.UserID,
			Name:              u.Name,
			StaffID:           u.StaffID,
			Email:             u.Email,
			Role:              u.Role,
			TotalScore:        u.TotalScore,
			CompletedSessions: completed[u.UserID],
		})
	}

	return result, total, nil
}

// ── helpers ──

func (s *departmentService) getDepartment(ctx context.Context, id string) (*model.Department, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("query department failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return dept, nil
}

func (s *departmentService) toDepartmentDetailResponse(ctx context.Context, dept *model.Department) *dto.DepartmentDetailResponse {
	memberCount, _ := s.repo.Department.CountMembers(ctx, dept.DepartmentID)
	return &dto.DepartmentDetailResponse{
		ID:          dept.DepartmentID,
		Name:        dept.Name,
		Description: dept.Description,
		IsActive:    dept.IsActive,
		MemberCount: memberCount,
		CreatedAt:   formatTime(dept.CreatedAt),
		UpdatedAt:   formatTime(dept.UpdatedAt),
	}
}

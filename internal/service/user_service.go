package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
)

// ── user errors ──

var (
	ErrStaffIDExists      = errors.New("staff id already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrUserSelfRoleChange = errors.New("cannot change your own role")
	ErrUserSelfDelete     = errors.New("cannot delete yourself")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrNoPermission       = errors.New("permission denied")
)

const tempPasswordLength = 10

// UserService user management
type UserService interface {
	CreateUser(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error)
	GetByID(ctx context.Context, id string, caller Caller) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest, caller Caller) ([]dto.UserResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateUserRequest, caller Caller) (*dto.UserResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error
	ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error)
	ListRoles(ctx context.Context) ([]dto.RoleResponse, error)
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportResponse, error)
}

// ImportUserRow one parsed spreadsheet row
type ImportUserRow struct {
	Row            int
	Name           string
	StaffID        string
	Email          string
	DepartmentName string
}

type userService struct {
	repo     *repository.Repository
	notifier *notifier
	logger   *zap.Logger
}

// NewUserService creates a UserService
func NewUserService(repo *repository.Repository, enqueuer queue.Enqueuer, logger *zap.Logger) UserService {
	return &userService{repo: repo, notifier: newNotifier(enqueuer, logger), logger: logger}
}

// ────────────────────── CreateUser ──────────────────────

func (s *userService) CreateUser(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error) {
	if _, err := s.repo.User.GetByStaffID(ctx, req.StaffID); err == nil {
		return nil, ErrStaffIDExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := s.repo.User.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := s.repo.Department.GetByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleStaff
	}
	if err := s.ensureRole(ctx, role); err != nil {
		return nil, err
	}

	tempPassword, err := generateTempPassword(tempPasswordLength)
	if err != nil {
		s.logger.Error("generate temp password failed", zap.Error(err))
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:               strings.TrimSpace(req.Name),
		StaffID:            strings.TrimSpace(req.StaffID),
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:       string(hash),
		Role:               role,
		DepartmentID:       req.DepartmentID,
		MustChangePassword: true,
		SoftDeleteModel:    model.SoftDeleteModel{BaseModel: model.BaseModel{CreatedBy: &callerID}},
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		return nil, err
	}

	// reload for the department relation
	created, err := s.repo.User.GetByID(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	s.notifier.Welcome(ctx, created, tempPassword)

	return &dto.CreateUserResponse{
		User:         toUserResponse(created),
		TempPassword: tempPassword,
	}, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string, caller Caller) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	switch caller.Role {
	case model.RoleAdmin:
	case model.RoleHOD:
		if user.DepartmentID != caller.DepartmentID {
			return nil, ErrNoPermission
		}
	default:
		if user.UserID != caller.UserID {
			return nil, ErrNoPermission
		}
	}

	return toUserResponse(user), nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest, caller Caller) ([]dto.UserResponse, int64, error) {
	filters := &repository.UserListFilters{
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		Keyword:      req.Keyword,
	}

	// HOD sees their own department only
	if caller.Role == model.RoleHOD {
		filters.DepartmentID = caller.DepartmentID
	}

	users, total, err := s.repo.User.ListWithFilters(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *toUserResponse(&users[i]))
	}

	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, id string, req *dto.UpdateUserRequest, caller Caller) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	// non-admins edit themselves only and never move department
	if caller.Role != model.RoleAdmin {
		if caller.UserID != id || req.DepartmentID != nil {
			return nil, ErrNoPermission
		}
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		existing, err := s.repo.User.GetByEmail(ctx, email)
		if err == nil && existing.UserID != id {
			return nil, ErrEmailExists
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Email = email
	}
	if req.DepartmentID != nil {
		if _, err := s.repo.Department.GetByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			return nil, err
		}
		user.DepartmentID = *req.DepartmentID
	}

	user.UpdatedBy = &caller.UserID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("update user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	updated, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserResponse(updated), nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, id string, callerID string) error {
	if id == callerID {
		return ErrUserSelfDelete
	}

	if _, err := s.repo.User.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.repo.User.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("delete user failed", zap.String("id", id), zap.Error(err))
		return err
	}

	return nil
}

// ────────────────────── AssignRole ──────────────────────

func (s *userService) AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error {
	if id == callerID {
		return ErrUserSelfRoleChange
	}

	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.ensureRole(ctx, req.Role); err != nil {
		return err
	}

	user.Role = req.Role
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("assign role failed", zap.String("id", id), zap.Error(err))
		return err
	}

	return nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *userService) ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	tempPassword, err := generateTempPassword(tempPasswordLength)
	if err != nil {
		s.logger.Error("generate temp password failed", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, err
	}

	user.PasswordHash = string(hash)
	user.MustChangePassword = true
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("reset password failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.notifier.Welcome(ctx, user, tempPassword)

	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ────────────────────── ListRoles ──────────────────────

func (s *userService) ListRoles(ctx context.Context) ([]dto.RoleResponse, error) {
	roles, err := s.repo.Role.List(ctx)
	if err != nil {
		s.logger.Error("list roles failed", zap.Error(err))
		return nil, err
	}
	result := make([]dto.RoleResponse, 0, len(roles))
	for _, r := range roles {
		result = append(result, dto.RoleResponse{Code: r.Code, Name: r.Name, Description: r.Description})
	}
	return result, nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 1000

var (
	ErrImportNoData      = errors.New("spreadsheet has no data rows (first row is the header)")
	ErrImportTooManyRows = fmt.Errorf("spreadsheet exceeds %d data rows", maxImportRows)
	ErrImportBadHeader   = errors.New("spreadsheet header is missing a required column")
)

// ParseImportFile reads the first sheet of an xlsx upload.
// Columns: name, staff_id, email, department (any order).
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	excelRows, err := readFirstSheet(reader)
	if err != nil {
		return nil, err
	}

	colIndex := parseHeaderIndex(excelRows[0], map[string][]string{
		"name":       {"name", "full name"},
		"staff_id":   {"staff_id", "staff id", "staff no"},
		"email":      {"email", "e-mail"},
		"department": {"department", "dept"},
	})
	for _, col := range []string{"name", "staff_id", "email", "department"} {
		if colIndex[col] < 0 {
			return nil, ErrImportBadHeader
		}
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportUserRow{
			Row:            i + 1,
			Name:           cell(row, colIndex["name"]),
			StaffID:        cell(row, colIndex["staff_id"]),
			Email:          strings.ToLower(cell(row, colIndex["email"])),
			DepartmentName: cell(row, colIndex["department"]),
		}

		if item.Name == "" && item.StaffID == "" && item.Email == "" && item.DepartmentName == "" {
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

// readFirstSheet returns the rows of sheet one, header included.
func readFirstSheet(reader io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}
	return excelRows, nil
}

// parseHeaderIndex maps column keys to header positions, -1 when absent.
func parseHeaderIndex(header []string, aliases map[string][]string) map[string]int {
	idx := make(map[string]int, len(aliases))
	for key := range aliases {
		idx[key] = -1
	}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		for key, names := range aliases {
			for _, name := range names {
				if lower == name && idx[key] < 0 {
					idx[key] = i
				}
			}
		}
	}
	return idx
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ────────────────────── ImportUsers ──────────────────────

func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportResponse, error) {
	resp := &dto.ImportResponse{Total: len(rows)}

	deptMap, err := s.buildDepartmentMap(ctx)
	if err != nil {
		s.logger.Error("load departments failed", zap.Error(err))
		return nil, err
	}

	// phase 1: validate without writing
	type validatedRow struct {
		row      ImportUserRow
		dept     *model.Department
		password string
		hash     []byte
	}
	var validRows []validatedRow
	seenStaff := make(map[string]bool, len(rows))
	seenEmail := make(map[string]bool, len(rows))

	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportRowError{Row: row, Reason: reason})
	}

	for _, row := range rows {
		if row.Name == "" || row.StaffID == "" || row.Email == "" || row.DepartmentName == "" {
			fail(row.Row, "required field is empty")
			continue
		}

		dept, ok := deptMap[strings.ToLower(row.DepartmentName)]
		if !ok {
			fail(row.Row, fmt.Sprintf("department not found: %s", row.DepartmentName))
			continue
		}

		if seenStaff[row.StaffID] {
			fail(row.Row, fmt.Sprintf("duplicate staff id in file: %s", row.StaffID))
			continue
		}
		if seenEmail[row.Email] {
			fail(row.Row, fmt.Sprintf("duplicate email in file: %s", row.Email))
			continue
		}

		if _, err := s.repo.User.GetByStaffID(ctx, row.StaffID); err == nil {
			fail(row.Row, fmt.Sprintf("staff id already exists: %s", row.StaffID))
			continue
		}
		if _, err := s.repo.User.GetByEmail(ctx, row.Email); err == nil {
			fail(row.Row, fmt.Sprintf("email already exists: %s", row.Email))
			continue
		}

		password, err := generateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			fail(row.Row, "password hashing failed")
			continue
		}

		seenStaff[row.StaffID] = true
		seenEmail[row.Email] = true
		validRows = append(validRows, validatedRow{row: row, dept: dept, password: password, hash: hash})
	}

	// phase 2: insert every valid row in one transaction
	if len(validRows) == 0 {
		return resp, nil
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("begin transaction failed", zap.Error(err))
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)
	created := make([]*model.User, 0, len(validRows))

	for _, vr := range validRows {
		user := &model.User{
			Name:               vr.row.Name,
			StaffID:            vr.row.StaffID,
			Email:              vr.row.Email,
			PasswordHash:       string(vr.hash),
			Role:               model.RoleStaff,
			DepartmentID:       vr.dept.DepartmentID,
			MustChangePassword: true,
			SoftDeleteModel:    model.SoftDeleteModel{BaseModel: model.BaseModel{CreatedBy: &callerID}},
		}

		if err := txRepo.User.Create(ctx, user); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("import write failed, rolled back", zap.Int("row", vr.row.Row), zap.Error(err))
			return nil, fmt.Errorf("row %d: write failed, import rolled back: %w", vr.row.Row, err)
		}
		created = append(created, user)
		resp.Success++
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("commit import failed", zap.Error(err))
			return nil, err
		}
	}

	// welcome emails only after commit
	for i, user := range created {
		s.notifier.Welcome(ctx, user, validRows[i].password)
	}

	return resp, nil
}

// ── helpers ──

func (s *userService) ensureRole(ctx context.Context, code string) error {
	if _, err := s.repo.Role.GetByCode(ctx, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return nil
}

// buildDepartmentMap active departments keyed by lower-cased name
func (s *userService) buildDepartmentMap(ctx context.Context) (map[string]*model.Department, error) {
	departments, err := s.repo.Department.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*model.Department, len(departments))
	for i := range departments {
		m[strings.ToLower(departments[i].Name)] = &departments[i]
	}
	return m, nil
}

// generateTempPassword random password with at least one letter and one digit
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 8 {
		length = 8
	}

	result := make([]byte, length)

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
	if err != nil {
		return "", err
	}
	result[0] = letters[n.Int64()]

	n, err = rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
	if err != nil {
		return "", err
	}
	result[1] = digits[n.Int64()]

	for i := 2; i < length; i++ {
		n, err = rand.Int(rand.Reader, big.NewInt(int64(len(all))))
		if err != nil {
			return "", err
		}
		result[i] = all[n.Int64()]
	}

	// Fisher-Yates
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}

	return string(result), nil
}

package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/pkg/mailer"
)

// ── helpers ──

func setupTestUserService() (UserService, *testRepos, *fakeEnqueuer) {
	repo, m := newTestRepository()
	enq := &fakeEnqueuer{}
	return NewUserService(repo, enq, zap.NewNop()), m, enq
}

var (
	adminCaller = Caller{UserID: "admin-1", Role: model.RoleAdmin, DepartmentID: testDeptNursing}
	hodCaller   = Caller{UserID: "hod-1", Role: model.RoleHOD, DepartmentID: testDeptNursing}
)

func buildXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("write row %d: %v", i+1, err)
		}
	}
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

// ── CreateUser ──

func TestUserService_CreateUser_Success(t *testing.T) {
	svc, _, enq := setupTestUserService()

	resp, err := svc.CreateUser(context.Background(), &dto.CreateUserRequest{
		Name:         "  Ada Obi ",
		StaffID:      "S2001",
		Email:        "Ada.Obi@Crisp.Test",
		DepartmentID: testDeptNursing,
	}, "admin-1")
	if err != nil {
		t.Fatalf("CreateUser should succeed, got %v", err)
	}
	if resp.User.Name != "Ada Obi" {
		t.Errorf("expected trimmed name, got %q", resp.User.Name)
	}
	if resp.User.Email != "ada.obi@crisp.test" {
		t.Errorf("expected lowercased email, got %q", resp.User.Email)
	}
	if resp.User.Role != model.RoleStaff {
		t.Errorf("expected default role staff, got %s", resp.User.Role)
	}
	if !resp.User.MustChangePassword {
		t.Error("new accounts must change their password")
	}
	if len(resp.TempPassword) != tempPasswordLength {
		t.Errorf("expected a %d character temp password, got %q", tempPasswordLength, resp.TempPassword)
	}
	if len(enq.emails) != 1 || enq.emails[0].Template != mailer.TemplateWelcome {
		t.Fatalf("expected one welcome email, got %v", enq.templates())
	}
	if enq.emails[0].Data["temp_password"] != resp.TempPassword {
		t.Error("welcome email must carry the temp password")
	}
}

func TestUserService_CreateUser_DuplicateStaffID(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("user-1", "S2001", model.RoleStaff, testDeptNursing, "password123")

	_, err := svc.CreateUser(context.Background(), &dto.CreateUserRequest{
		Name: "Other", StaffID: "S2001", Email: "other@crisp.test", DepartmentID: testDeptNursing,
	}, "admin-1")
	if !errors.Is(err, ErrStaffIDExists) {
		t.Errorf("expected ErrStaffIDExists, got %v", err)
	}
}

func TestUserService_CreateUser_DuplicateEmail(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("user-1", "S2001", model.RoleStaff, testDeptNursing, "password123")

	_, err := svc.CreateUser(context.Background(), &dto.CreateUserRequest{
		Name: "Other", StaffID: "S2002", Email: "S2001@crisp.test", DepartmentID: testDeptNursing,
	}, "admin-1")
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestUserService_CreateUser_UnknownDepartment(t *testing.T) {
	svc, _, _ := setupTestUserService()

	_, err := svc.CreateUser(context.Background(), &dto.CreateUserRequest{
		Name: "Ada", StaffID: "S2001", Email: "ada@crisp.test", DepartmentID: "dept-missing",
	}, "admin-1")
	if !errors.Is(err, ErrDepartmentNotFound) {
		t.Errorf("expected ErrDepartmentNotFound, got %v", err)
	}
}

// ── GetByID ──

func TestUserService_GetByID_Scopes(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	m.seedUser("pharm-1", "S3002", model.RoleStaff, testDeptPharmacy, "password123")
	ctx := context.Background()

	if _, err := svc.GetByID(ctx, "pharm-1", adminCaller); err != nil {
		t.Errorf("admin reads anyone, got %v", err)
	}
	if _, err := svc.GetByID(ctx, "nurse-1", hodCaller); err != nil {
		t.Errorf("HOD reads own department, got %v", err)
	}
	if _, err := svc.GetByID(ctx, "pharm-1", hodCaller); !errors.Is(err, ErrNoPermission) {
		t.Errorf("HOD must not read other departments, got %v", err)
	}

	staff := Caller{UserID: "nurse-1", Role: model.RoleStaff, DepartmentID: testDeptNursing}
	if _, err := svc.GetByID(ctx, "nurse-1", staff); err != nil {
		t.Errorf("staff reads themselves, got %v", err)
	}
	if _, err := svc.GetByID(ctx, "pharm-1", staff); !errors.Is(err, ErrNoPermission) {
		t.Errorf("staff must not read others, got %v", err)
	}
}

func TestUserService_GetByID_NotFound(t *testing.T) {
	svc, _, _ := setupTestUserService()

	_, err := svc.GetByID(context.Background(), "missing", adminCaller)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ── List ──

func TestUserService_List_HODForcedToOwnDepartment(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	m.seedUser("nurse-2", "S3002", model.RoleStaff, testDeptNursing, "password123")
	m.seedUser("pharm-1", "S3003", model.RoleStaff, testDeptPharmacy, "password123")

	users, total, err := svc.List(context.Background(), &dto.UserListRequest{DepartmentID: testDeptPharmacy}, hodCaller)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Fatalf("expected 2 nursing users, got total=%d len=%d", total, len(users))
	}
	for _, u := range users {
		if u.Department == nil || u.Department.ID != testDeptNursing {
			t.Errorf("HOD list leaked user %s from another department", u.ID)
		}
	}
}

func TestUserService_List_KeywordAndPaging(t *testing.T) {
	svc, m, _ := setupTestUserService()
	for _, id := range []string{"S4001", "S4002", "S4003"} {
		m.seedUser("user-"+id, id, model.RoleStaff, testDeptNursing, "password123")
	}

	users, total, err := svc.List(context.Background(), &dto.UserListRequest{
		PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2},
		Keyword:           "s400",
	}, adminCaller)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(users) != 1 || users[0].StaffID != "S4003" {
		t.Errorf("expected page two to hold S4003, got %+v", users)
	}
}

// ── Update ──

func TestUserService_Update_SelfCannotMoveDepartment(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	staff := Caller{UserID: "nurse-1", Role: model.RoleStaff, DepartmentID: testDeptNursing}
	dept := testDeptPharmacy

	_, err := svc.Update(context.Background(), "nurse-1", &dto.UpdateUserRequest{DepartmentID: &dept}, staff)
	if !errors.Is(err, ErrNoPermission) {
		t.Errorf("expected ErrNoPermission, got %v", err)
	}
}

func TestUserService_Update_AdminMovesDepartment(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	dept := testDeptPharmacy
	name := "Renamed"

	resp, err := svc.Update(context.Background(), "nurse-1", &dto.UpdateUserRequest{Name: &name, DepartmentID: &dept}, adminCaller)
	if err != nil {
		t.Fatalf("Update should succeed, got %v", err)
	}
	if resp.Name != "Renamed" || resp.Department == nil || resp.Department.ID != testDeptPharmacy {
		t.Errorf("unexpected update result %+v", resp)
	}
}

func TestUserService_Update_EmailTaken(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	m.seedUser("nurse-2", "S3002", model.RoleStaff, testDeptNursing, "password123")
	email := "s3002@crisp.test"

	_, err := svc.Update(context.Background(), "nurse-1", &dto.UpdateUserRequest{Email: &email}, adminCaller)
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

// ── Delete / AssignRole / ResetPassword ──

func TestUserService_Delete_Self(t *testing.T) {
	svc, _, _ := setupTestUserService()

	if err := svc.Delete(context.Background(), "admin-1", "admin-1"); !errors.Is(err, ErrUserSelfDelete) {
		t.Errorf("expected ErrUserSelfDelete, got %v", err)
	}
}

func TestUserService_Delete_Success(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")

	if err := svc.Delete(context.Background(), "nurse-1", "admin-1"); err != nil {
		t.Fatalf("Delete should succeed, got %v", err)
	}
	if _, ok := m.users.users["nurse-1"]; ok {
		t.Error("expected user to be removed")
	}
}

func TestUserService_AssignRole(t *testing.T) {
	svc, m, _ := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")
	ctx := context.Background()

	if err := svc.AssignRole(ctx, "admin-1", &dto.AssignRoleRequest{Role: model.RoleStaff}, "admin-1"); !errors.Is(err, ErrUserSelfRoleChange) {
		t.Errorf("expected ErrUserSelfRoleChange, got %v", err)
	}
	if err := svc.AssignRole(ctx, "nurse-1", &dto.AssignRoleRequest{Role: "superuser"}, "admin-1"); !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
	if err := svc.AssignRole(ctx, "nurse-1", &dto.AssignRoleRequest{Role: model.RoleHOD}, "admin-1"); err != nil {
		t.Fatalf("AssignRole should succeed, got %v", err)
	}
	if m.users.users["nurse-1"].Role != model.RoleHOD {
		t.Errorf("expected role hod, got %s", m.users.users["nurse-1"].Role)
	}
}

func TestUserService_ResetPassword(t *testing.T) {
	svc, m, enq := setupTestUserService()
	m.seedUser("nurse-1", "S3001", model.RoleStaff, testDeptNursing, "password123")

	resp, err := svc.ResetPassword(context.Background(), "nurse-1", "admin-1")
	if err != nil {
		t.Fatalf("ResetPassword should succeed, got %v", err)
	}
	if resp.TempPassword == "" {
		t.Error("expected a temp password")
	}
	if !m.users.users["nurse-1"].MustChangePassword {
		t.Error("expected must_change_password after an admin reset")
	}
	if len(enq.emails) != 1 {
		t.Errorf("expected the new password to be emailed, got %d emails", len(enq.emails))
	}
}

func TestUserService_ListRoles(t *testing.T) {
	svc, _, _ := setupTestUserService()

	roles, err := svc.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 3 {
		t.Errorf("expected 3 roles, got %d", len(roles))
	}
}

// ── import ──

func TestUserService_ParseImportFile(t *testing.T) {
	svc, _, _ := setupTestUserService()
	buf := buildXLSX(t, [][]interface{}{
		{"Email", "Full Name", "Staff ID", "Dept"},
		{"ADA@crisp.test", "Ada Obi", "S5001", "Nursing"},
		{"", "", "", ""},
		{"ben@crisp.test", "Ben Eze", "S5002", "pharmacy"},
	})

	rows, err := svc.ParseImportFile(buf)
	if err != nil {
		t.Fatalf("ParseImportFile failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected blank rows to be skipped, got %d rows", len(rows))
	}
	if rows[0].Email != "ada@crisp.test" || rows[0].Row != 2 {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].Row != 4 || rows[1].DepartmentName != "pharmacy" {
		t.Errorf("unexpected second row %+v", rows[1])
	}
}

func TestUserService_ParseImportFile_BadHeader(t *testing.T) {
	svc, _, _ := setupTestUserService()
	buf := buildXLSX(t, [][]interface{}{
		{"Name", "Email"},
		{"Ada", "ada@crisp.test"},
	})

	if _, err := svc.ParseImportFile(buf); !errors.Is(err, ErrImportBadHeader) {
		t.Errorf("expected ErrImportBadHeader, got %v", err)
	}
}

func TestUserService_ImportUsers_MixedRows(t *testing.T) {
	svc, m, enq := setupTestUserService()
	m.seedUser("existing", "S6000", model.RoleStaff, testDeptNursing, "password123")

	rows := []ImportUserRow{
		{Row: 2, Name: "Ada", StaffID: "S6001", Email: "ada@crisp.test", DepartmentName: "nursing"},
		{Row: 3, Name: "Ben", StaffID: "S6001", Email: "ben@crisp.test", DepartmentName: "Nursing"},
		{Row: 4, Name: "Cy", StaffID: "S6000", Email: "cy@crisp.test", DepartmentName: "Nursing"},
		{Row: 5, Name: "Di", StaffID: "S6004", Email: "di@crisp.test", DepartmentName: "Radiology"},
		{Row: 6, Name: "", StaffID: "S6005", Email: "ed@crisp.test", DepartmentName: "Nursing"},
		{Row: 7, Name: "Fola", StaffID: "S6006", Email: "fola@crisp.test", DepartmentName: "Pharmacy"},
	}

	resp, err := svc.ImportUsers(context.Background(), rows, "admin-1")
	if err != nil {
		t.Fatalf("ImportUsers failed: %v", err)
	}
	if resp.Total != 6 || resp.Success != 2 || resp.Failed != 4 {
		t.Errorf("expected total=6 success=2 failed=4, got %+v", resp)
	}
	if len(enq.emails) != 2 {
		t.Errorf("expected two welcome emails, got %d", len(enq.emails))
	}
	created, err := m.users.GetByStaffID(context.Background(), "S6006")
	if err != nil {
		t.Fatalf("expected S6006 to be created: %v", err)
	}
	if created.DepartmentID != testDeptPharmacy || !created.MustChangePassword {
		t.Errorf("unexpected imported user %+v", created)
	}
}

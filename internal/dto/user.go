package dto

// ── users ──

// CreateUserRequest admin creates a staff account
type CreateUserRequest struct {
	Name         string `json:"name"          binding:"required,notblank,min=2,max=100"`
	StaffID      string `json:"staff_id"      binding:"required,notblank,max=30"`
	Email        string `json:"email"         binding:"required,email"`
	DepartmentID string `json:"department_id" binding:"required,uuid"`
	Role         string `json:"role"          binding:"omitempty,oneof=admin hod staff"`
}

// CreateUserResponse created account plus its one-time password
type CreateUserResponse struct {
	User         *UserResponse `json:"user"`
	TempPassword string        `json:"temp_password"`
}

// UserListRequest list query
type UserListRequest struct {
	PaginationRequest
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Role         string `form:"role"          binding:"omitempty,oneof=admin hod staff"`
	Keyword      string `form:"keyword"       binding:"omitempty,max=50"`
}

// UpdateUserRequest partial update
type UpdateUserRequest struct {
	Name         *string `json:"name"          binding:"omitempty,notblank,min=2,max=100"`
	Email        *string `json:"email"         binding:"omitempty,email"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

// AssignRoleRequest role change
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin hod staff"`
}

// ResetPasswordResponse admin password reset
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// RoleResponse role entry
type RoleResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

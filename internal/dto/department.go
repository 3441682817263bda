package dto

// ── departments ──

// CreateDepartmentRequest create body
type CreateDepartmentRequest struct {
	Name        string `json:"name"        binding:"required,notblank,min=2,max=50"`
	Description string `json:"description" binding:"omitempty,max=200"`
}

// UpdateDepartmentRequest partial update
type UpdateDepartmentRequest struct {
	Name        *string `json:"name"        binding:"omitempty,notblank,min=2,max=50"`
	Description *string `json:"description" binding:"omitempty,max=200"`
	IsActive    *bool   `json:"is_active"`
}

// DepartmentListRequest list query
type DepartmentListRequest struct {
	IncludeInactive bool `form:"include_inactive"`
}

// DepartmentDetailResponse department with member count
type DepartmentDetailResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	MemberCount int64  `json:"member_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// DepartmentStaffResponse member row of GET /departments/:id/staff
type DepartmentStaffResponse struct {
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	StaffID           string `json:"staff_id"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	TotalScore        int    `json:"total_score"`
	CompletedSessions int64  `json:"completed_sessions"`
}

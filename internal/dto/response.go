package dto

// ── shared responses ──

// UserResponse public user view
type UserResponse struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Email              string              `json:"email"`
	StaffID            string              `json:"staff_id"`
	Role               string              `json:"role"`
	Department         *DepartmentResponse `json:"department,omitempty"`
	MustChangePassword bool                `json:"must_change_password"`
	TotalScore         int                 `json:"total_score"`
}

// UserDetailResponse current user (GET /auth/me)
type UserDetailResponse struct {
	UserResponse
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// DepartmentResponse department summary
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImportResponse result of an xlsx import
type ImportResponse struct {
	Total   int              `json:"total"`
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// ImportRowError per-row import failure
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ── pagination ──

// PaginationRequest common paging query
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage page number with default
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize page size with default
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset row offset
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

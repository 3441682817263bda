package dto

import "time"

// ── sessions ──

// CreateSessionRequest create body. Sessions start as drafts.
type CreateSessionRequest struct {
	Title              string     `json:"title"               binding:"required,notblank,max=200"`
	Description        string     `json:"description"         binding:"omitempty,max=2000"`
	DurationMinutes    int        `json:"duration_minutes"    binding:"required,min=1,max=600"`
	PassMark           *int       `json:"pass_mark"           binding:"omitempty,min=0,max=100"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
	CertificateEnabled *bool      `json:"certificate_enabled"`
}

// UpdateSessionRequest partial update guarded by version
type UpdateSessionRequest struct {
	Version            int        `json:"version"             binding:"required,min=1"`
	Title              *string    `json:"title"               binding:"omitempty,notblank,max=200"`
	Description        *string    `json:"description"         binding:"omitempty,max=2000"`
	DurationMinutes    *int       `json:"duration_minutes"    binding:"omitempty,min=1,max=600"`
	PassMark           *int       `json:"pass_mark"           binding:"omitempty,min=0,max=100"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
	CertificateEnabled *bool      `json:"certificate_enabled"`
}

// SessionListRequest list query; status is ignored for staff
type SessionListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=draft published closed"`
}

// SessionResponse session view
type SessionResponse struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	DurationMinutes    int              `json:"duration_minutes"`
	PassMark           int              `json:"pass_mark"`
	StartsAt           string           `json:"starts_at,omitempty"`
	EndsAt             string           `json:"ends_at,omitempty"`
	Status             string           `json:"status"`
	CertificateEnabled bool             `json:"certificate_enabled"`
	QuestionCount      int64            `json:"question_count"`
	CategoryCounts     map[string]int64 `json:"category_counts,omitempty"`
	Version            int              `json:"version"`
	CreatedAt          string           `json:"created_at"`
	UpdatedAt          string           `json:"updated_at"`
}

// SessionResultsRequest results query
type SessionResultsRequest struct {
	PaginationRequest
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
}

// SessionResultResponse one attempt row
type SessionResultResponse struct {
	ProgressID     string  `json:"progress_id"`
	UserID         string  `json:"user_id"`
	UserName       string  `json:"user_name"`
	StaffID        string  `json:"staff_id"`
	DepartmentID   string  `json:"department_id"`
	DepartmentName string  `json:"department_name,omitempty"`
	Status         string  `json:"status"`
	Score          int     `json:"score"`
	TotalPoints    int     `json:"total_points"`
	Percentage     float64 `json:"percentage"`
	Passed         bool    `json:"passed"`
	TimedOut       bool    `json:"timed_out"`
	StartedAt      string  `json:"started_at"`
	CompletedAt    string  `json:"completed_at,omitempty"`
}

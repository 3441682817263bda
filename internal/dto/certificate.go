package dto

// ── certificates ──

// CertificateListRequest admin list query
type CertificateListRequest struct {
	PaginationRequest
	SessionID string `form:"session_id" binding:"omitempty,uuid"`
	Status    string `form:"status"     binding:"omitempty,oneof=pending issued failed"`
}

// CertificateResponse certificate view
type CertificateResponse struct {
	ID                string  `json:"id"`
	CertificateNumber string  `json:"certificate_number"`
	UserID            string  `json:"user_id"`
	UserName          string  `json:"user_name,omitempty"`
	SessionID         string  `json:"session_id"`
	SessionTitle      string  `json:"session_title,omitempty"`
	Score             int     `json:"score"`
	Percentage        float64 `json:"percentage"`
	Status            string  `json:"status"`
	IssuedAt          string  `json:"issued_at,omitempty"`
	EmailedAt         string  `json:"emailed_at,omitempty"`
	FailureReason     string  `json:"failure_reason,omitempty"`
}

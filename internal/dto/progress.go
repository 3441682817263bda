package dto

// ── session progress ──

// SyncAnswersRequest answers for the current category, question id -> option index
type SyncAnswersRequest struct {
	Answers map[string]int `json:"answers" binding:"required,dive,keys,uuid,endkeys,min=0,max=5"`
}

// CompleteCategoryRequest close the current category
type CompleteCategoryRequest struct {
	Category string `json:"category" binding:"required,crisp_category"`
}

// ProgressResponse attempt state
type ProgressResponse struct {
	ID                  string         `json:"id"`
	SessionID           string         `json:"session_id"`
	SessionTitle        string         `json:"session_title,omitempty"`
	Status              string         `json:"status"`
	CurrentCategory     string         `json:"current_category"`
	CompletedCategories []string       `json:"completed_categories"`
	Answers             map[string]int `json:"answers"`
	Score               int            `json:"score"`
	TotalPoints         int            `json:"total_points"`
	Percentage          float64        `json:"percentage"`
	Passed              bool           `json:"passed"`
	TimedOut            bool           `json:"timed_out"`
	StartedAt           string         `json:"started_at"`
	ExpiresAt           string         `json:"expires_at"`
	RemainingSeconds    int64          `json:"remaining_seconds"`
	CompletedAt         string         `json:"completed_at,omitempty"`
	CertificateID       string         `json:"certificate_id,omitempty"`
}

// CategoryQuestionsResponse questions of the current category
type CategoryQuestionsResponse struct {
	Category  string                  `json:"category"`
	Questions []StaffQuestionResponse `json:"questions"`
}

package dto

// ── question banks ──

// CreateQuestionRequest create body
type CreateQuestionRequest struct {
	Category      string   `json:"category"       binding:"required,crisp_category"`
	Question      string   `json:"question"       binding:"required,notblank,max=2000"`
	Options       []string `json:"options"        binding:"required,min=2,max=6,dive,notblank,max=500"`
	CorrectOption *int     `json:"correct_option" binding:"required,min=0,max=5"`
	Points        int      `json:"points"         binding:"omitempty,min=1,max=100"`
	OrderNum      int      `json:"order_num"      binding:"omitempty,min=0"`
}

// UpdateQuestionRequest partial update
type UpdateQuestionRequest struct {
	Category      *string  `json:"category"       binding:"omitempty,crisp_category"`
	Question      *string  `json:"question"       binding:"omitempty,notblank,max=2000"`
	Options       []string `json:"options"        binding:"omitempty,min=2,max=6,dive,notblank,max=500"`
	CorrectOption *int     `json:"correct_option" binding:"omitempty,min=0,max=5"`
	Points        *int     `json:"points"         binding:"omitempty,min=1,max=100"`
	OrderNum      *int     `json:"order_num"      binding:"omitempty,min=0"`
}

// QuestionResponse admin view with the answer
type QuestionResponse struct {
	ID            string   `json:"id"`
	SessionID     string   `json:"session_id"`
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Points        int      `json:"points"`
	OrderNum      int      `json:"order_num"`
}

// StaffQuestionResponse question as shown during an attempt
type StaffQuestionResponse struct {
	QuestionBankID string   `json:"id"`
	Category       string   `json:"category"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Points         int      `json:"points"`
	OrderNum       int      `json:"order_num"`
}

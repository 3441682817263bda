package dto

import "time"

// ── trivia ──

// TriviaQuestionRequest inline trivia question
type TriviaQuestionRequest struct {
	Question      string   `json:"question"       binding:"required,notblank,max=1000"`
	Options       []string `json:"options"        binding:"required,min=2,max=6,dive,notblank,max=300"`
	CorrectOption *int     `json:"correct_option" binding:"required,min=0,max=5"`
	Points        int      `json:"points"         binding:"omitempty,min=1,max=100"`
}

// CreateTriviaRequest create body; the window defaults to the calendar month
type CreateTriviaRequest struct {
	Title     string                  `json:"title"     binding:"required,notblank,max=200"`
	Month     string                  `json:"month"     binding:"required,yearmonth"`
	Questions []TriviaQuestionRequest `json:"questions" binding:"required,min=1,max=50,dive"`
	StartsAt  *time.Time              `json:"starts_at"`
	EndsAt    *time.Time              `json:"ends_at"`
}

// UpdateTriviaRequest partial update
type UpdateTriviaRequest struct {
	Title     *string                 `json:"title"     binding:"omitempty,notblank,max=200"`
	Questions []TriviaQuestionRequest `json:"questions" binding:"omitempty,min=1,max=50,dive"`
	StartsAt  *time.Time              `json:"starts_at"`
	EndsAt    *time.Time              `json:"ends_at"`
	IsActive  *bool                   `json:"is_active"`
}

// SeedTriviaRequest generate a month's trivia
type SeedTriviaRequest struct {
	Month string `json:"month" binding:"required,yearmonth"`
}

// ParticipateRequest answers in question order
type ParticipateRequest struct {
	Answers []int `json:"answers" binding:"required,min=1,dive,min=0,max=5"`
}

// LeaderboardRequest leaderboard query
type LeaderboardRequest struct {
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	Limit        int    `form:"limit"         binding:"omitempty,min=1,max=100"`
}

// GetLimit limit with default
func (r *LeaderboardRequest) GetLimit() int {
	if r.Limit <= 0 {
		return 10
	}
	return r.Limit
}

// TriviaQuestionView question as served to participants
type TriviaQuestionView struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Points        int      `json:"points"`
	CorrectOption *int     `json:"correct_option,omitempty"`
}

// TriviaResponse trivia view
type TriviaResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Month         string               `json:"month"`
	Questions     []TriviaQuestionView `json:"questions"`
	StartsAt      string               `json:"starts_at"`
	EndsAt        string               `json:"ends_at"`
	IsActive      bool                 `json:"is_active"`
	Participated  bool                 `json:"participated"`
	QuestionCount int                  `json:"question_count"`
}

// ParticipationResponse one submission
type ParticipationResponse struct {
	ID           string `json:"id"`
	TriviaID     string `json:"trivia_id"`
	Answers      []int  `json:"answers"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
	Total        int    `json:"total"`
	SubmittedAt  string `json:"submitted_at"`
}

// LeaderboardEntry ranked row shared by trivia and overall boards
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	DepartmentID   string `json:"department_id,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
	Score          int    `json:"score"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// TriviaQuestion one question of a monthly trivia, stored inline as JSON.
type TriviaQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Points        int      `json:"points"`
}

// Trivia maps to trivia: one quiz per calendar month.
type Trivia struct {
	TriviaID  string                              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"trivia_id"`
	Title     string                              `gorm:"type:varchar(200);not null"                     json:"title"`
	Month     string                              `gorm:"type:char(7);not null"                          json:"month"` // YYYY-MM
	Questions datatypes.JSONSlice[TriviaQuestion] `gorm:"type:jsonb;not null"                            json:"questions"`
	StartsAt  time.Time                           `gorm:"not null"                                       json:"starts_at"`
	EndsAt    time.Time                           `gorm:"not null"                                       json:"ends_at"`
	IsActive  bool                                `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName table name
func (Trivia) TableName() string { return "trivia" }

// IsOpenAt reports whether participation is accepted at t.
func (t *Trivia) IsOpenAt(now time.Time) bool {
	return t.IsActive && !now.Before(t.StartsAt) && !now.After(t.EndsAt)
}

// TriviaParticipation maps to trivia_participations: one submission per user and trivia.
type TriviaParticipation struct {
	ParticipationID string                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participation_id"`
	UserID          string                   `gorm:"type:uuid;not null"                             json:"user_id"`
	TriviaID        string                   `gorm:"type:uuid;not null"                             json:"trivia_id"`
	Answers         datatypes.JSONSlice[int] `gorm:"type:jsonb;not null"                            json:"answers"`
	Score           int                      `gorm:"not null;default:0"                             json:"score"`
	CorrectCount    int                      `gorm:"not null;default:0"                             json:"correct_count"`
	SubmittedAt     time.Time                `gorm:"not null"                                       json:"submitted_at"`
	BaseModel

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName table name
func (TriviaParticipation) TableName() string { return "trivia_participations" }

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Progress statuses
const (
	ProgressStatusInProgress = "in_progress"
	ProgressStatusCompleted  = "completed"
)

// AnswerSheet question_bank_id -> chosen option index
type AnswerSheet map[string]int

// UserSessionProgress maps to user_session_progress: one attempt of a user at a session.
type UserSessionProgress struct {
	ProgressID          string                           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"progress_id"`
	UserID              string                           `gorm:"type:uuid;not null"                             json:"user_id"`
	SessionID           string                           `gorm:"type:uuid;not null"                             json:"session_id"`
	Status              string                           `gorm:"type:varchar(20);not null"                      json:"status"`
	CurrentCategory     string                           `gorm:"type:varchar(20);not null;default:''"           json:"current_category"`
	CompletedCategories datatypes.JSONSlice[string]      `gorm:"type:jsonb;not null"                            json:"completed_categories"`
	Answers             datatypes.JSONType[AnswerSheet] `gorm:"type:jsonb;not null"                            json:"answers"`
	Score               int                              `gorm:"not null;default:0"                             json:"score"`
	TotalPoints         int                              `gorm:"not null;default:0"                             json:"total_points"`
	Percentage          float64                          `gorm:"type:numeric(5,2);not null;default:0"           json:"percentage"`
	Passed              bool                             `gorm:"not null;default:false"                         json:"passed"`
	TimedOut            bool                             `gorm:"not null;default:false"                         json:"timed_out"`
	StartedAt           time.Time                        `gorm:"not null"                                       json:"started_at"`
	ExpiresAt           time.Time                        `gorm:"not null"                                       json:"expires_at"`
	CompletedAt         *time.Time                       `                                                      json:"completed_at,omitempty"`
	LastSyncedAt        *time.Time                       `                                                      json:"last_synced_at,omitempty"`
	BaseModel

	User    *User    `gorm:"foreignKey:UserID;references:UserID"       json:"user,omitempty"`
	Session *Session `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
}

// TableName table name
func (UserSessionProgress) TableName() string { return "user_session_progress" }

// AnswerSheet returns a copy of the stored answers.
func (p *UserSessionProgress) AnswerSheet() AnswerSheet {
	out := make(AnswerSheet)
	for k, v := range p.Answers.Data() {
		out[k] = v
	}
	return out
}

// SetAnswerSheet replaces the stored answers.
func (p *UserSessionProgress) SetAnswerSheet(sheet AnswerSheet) {
	p.Answers = datatypes.NewJSONType(sheet)
}

// IsOverdue reports whether an in-progress attempt ran past its time limit.
func (p *UserSessionProgress) IsOverdue(now time.Time) bool {
	return p.Status == ProgressStatusInProgress && now.After(p.ExpiresAt)
}

// HasCompletedCategory reports whether category was already closed.
func (p *UserSessionProgress) HasCompletedCategory(category string) bool {
	for _, c := range p.CompletedCategories {
		if c == category {
			return true
		}
	}
	return false
}

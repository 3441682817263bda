package model

import "time"

// Session statuses
const (
	SessionStatusDraft     = "draft"
	SessionStatusPublished = "published"
	SessionStatusClosed    = "closed"
)

// Session maps to sessions: a timed CRISP assessment.
type Session struct {
	SessionID          string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	Title              string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Description        string     `gorm:"type:text"                                      json:"description,omitempty"`
	DurationMinutes    int        `gorm:"not null"                                       json:"duration_minutes"`
	PassMark           int        `gorm:"not null;default:70"                            json:"pass_mark"`
	StartsAt           *time.Time `                                                      json:"starts_at,omitempty"`
	EndsAt             *time.Time `                                                      json:"ends_at,omitempty"`
	Status             string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"`
	CertificateEnabled bool       `gorm:"not null;default:true"                          json:"certificate_enabled"`
	VersionedModel
}

// TableName table name
func (Session) TableName() string { return "sessions" }

// IsOpenAt reports whether staff may start the session at t.
func (s *Session) IsOpenAt(t time.Time) bool {
	if s.Status != SessionStatusPublished {
		return false
	}
	if s.StartsAt != nil && t.Before(*s.StartsAt) {
		return false
	}
	if s.EndsAt != nil && t.After(*s.EndsAt) {
		return false
	}
	return true
}

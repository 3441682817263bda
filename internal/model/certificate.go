package model

import "time"

// Certificate statuses
const (
	CertificateStatusPending = "pending"
	CertificateStatusIssued  = "issued"
	CertificateStatusFailed  = "failed"
)

// Certificate maps to certificates: issued once per user and session.
type Certificate struct {
	CertificateID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"certificate_id"`
	UserID            string     `gorm:"type:uuid;not null"                             json:"user_id"`
	SessionID         string     `gorm:"type:uuid;not null"                             json:"session_id"`
	CertificateNumber string     `gorm:"type:varchar(40);not null"                      json:"certificate_number"`
	Score             int        `gorm:"not null"                                       json:"score"`
	Percentage        float64    `gorm:"type:numeric(5,2);not null"                     json:"percentage"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	FileKey           string     `gorm:"type:varchar(255);not null;default:''"          json:"-"`
	IssuedAt          *time.Time `                                                      json:"issued_at,omitempty"`
	EmailedAt         *time.Time `                                                      json:"emailed_at,omitempty"`
	FailureReason     string     `gorm:"type:text;not null;default:''"                  json:"failure_reason,omitempty"`
	BaseModel

	User    *User    `gorm:"foreignKey:UserID;references:UserID"       json:"user,omitempty"`
	Session *Session `gorm:"foreignKey:SessionID;references:SessionID" json:"session,omitempty"`
}

// TableName table name
func (Certificate) TableName() string { return "certificates" }

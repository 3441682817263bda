package model

import "gorm.io/datatypes"

// QuestionBank maps to question_banks: one multiple-choice question of a
// session, bucketed into a CRISP category.
type QuestionBank struct {
	QuestionBankID string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"question_bank_id"`
	SessionID      string                      `gorm:"type:uuid;not null;index"                       json:"session_id"`
	Category       string                      `gorm:"type:varchar(20);not null"                      json:"category"`
	Question       string                      `gorm:"type:text;not null"                             json:"question"`
	Options        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"                            json:"options"`
	CorrectOption  int                         `gorm:"not null"                                       json:"correct_option"`
	Points         int                         `gorm:"not null;default:1"                             json:"points"`
	OrderNum       int                         `gorm:"not null;default:0"                             json:"order_num"`
	SoftDeleteModel
}

// TableName table name
func (QuestionBank) TableName() string { return "question_banks" }

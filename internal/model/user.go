package model

import "time"

// User maps to users
type User struct {
	UserID             string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name               string     `gorm:"type:varchar(100);not null"                     json:"name"`
	StaffID            string     `gorm:"type:varchar(30);not null"                      json:"staff_id"`
	Email              string     `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash       string     `gorm:"type:varchar(255);not null"                     json:"-"`
	Role               string     `gorm:"type:varchar(20);not null;default:'staff'"      json:"role"`
	DepartmentID       string     `gorm:"type:uuid;not null"                             json:"department_id"`
	MustChangePassword bool       `gorm:"not null;default:false"                         json:"must_change_password"`
	TotalScore         int        `gorm:"not null;default:0"                             json:"total_score"`
	LastLoginAt        *time.Time `                                                      json:"last_login_at,omitempty"`
	SoftDeleteModel

	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName table name
func (User) TableName() string { return "users" }

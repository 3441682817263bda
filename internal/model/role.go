package model

// Role codes
const (
	RoleAdmin = "admin"
	RoleHOD   = "hod"
	RoleStaff = "staff"
)

// Role maps to roles. Rows are seeded by migration.
type Role struct {
	Code        string `gorm:"type:varchar(20);primaryKey" json:"code"`
	Name        string `gorm:"type:varchar(50);not null"   json:"name"`
	Description string `gorm:"type:text"                   json:"description,omitempty"`
	BaseModel
}

// TableName table name
func (Role) TableName() string { return "roles" }

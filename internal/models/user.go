package models

import "time"

// Role separates ordinary IT staff from administrators
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserAuth represents a user in the system
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type UserAuth struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Name      string     `gorm:"size:100" json:"name,omitempty"`
	Password  string     `gorm:"not null" json:"-"`
	Role      Role       `gorm:"size:20;default:'user'" json:"role"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}

// IsAdmin reports whether the user may run privileged operations
func (u UserAuth) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// All returns every model the schema is built from, in dependency order
func All() []interface{} {
	return []interface{}{
		&UserAuth{},
		&Branch{},
		&Employee{},
		&Asset{},
		&AssetHistory{},
		&PreGeneratedQR{},
		&ScanLog{},
		&SystemSetting{},
	}
}

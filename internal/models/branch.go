package models

import "time"

// Branch is a physical office that stocks assets and employs staff.
type Branch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Location  string    `gorm:"size:200" json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Branch
func (Branch) TableName() string {
	return "branches"
}

// EmployeeStatus marks whether an employee can still receive assets
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "Active"
	EmployeeInactive EmployeeStatus = "Inactive"
)

// Employee is a person who can hold allocated assets.
// EmpID is the business key printed on badges and used in history details.
type Employee struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	EmpID     string         `gorm:"column:emp_id;size:50;uniqueIndex;not null" json:"empId"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Status    EmployeeStatus `gorm:"size:20;default:'Active';index" json:"status"`
	BranchID  *uint          `gorm:"index" json:"branchId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	Branch *Branch `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Assets []Asset `gorm:"foreignKey:CurrentEmployeeID" json:"assets,omitempty"`
}

// TableName specifies the table name for Employee
func (Employee) TableName() string {
	return "employees"
}

// Label is the "Name (EMP-ID)" form used in history details
func (e Employee) Label() string {
	return e.Name + " (" + e.EmpID + ")"
}

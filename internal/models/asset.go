package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssetStatus is the lifecycle state of an asset
type AssetStatus string

const (
	StatusInStock   AssetStatus = "In Stock"
	StatusAllocated AssetStatus = "Allocated"
	StatusInTransit AssetStatus = "In Transit"
	StatusRepair    AssetStatus = "Repair"
	StatusRetired   AssetStatus = "Retired" // terminal
)

// AllStatuses lists statuses in display order
var AllStatuses = []AssetStatus{StatusInStock, StatusAllocated, StatusInTransit, StatusRepair, StatusRetired}

// Valid reports whether s is one of the known statuses
func (s AssetStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Asset is a tracked piece of hardware.
// Custody fields (Status, CurrentBranchID, CurrentEmployeeID) only change through
// the ledger, which bumps Version on every write.
type Asset struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	SerialNumber      string         `gorm:"size:100;uniqueIndex;not null" json:"serialNumber"`
	Brand             string         `gorm:"size:50" json:"brand"`
	Model             string         `gorm:"size:100" json:"model"`
	PurchaseDate      datatypes.Date `json:"purchaseDate"`
	Status            AssetStatus    `gorm:"size:20;default:'In Stock';index" json:"status"`
	CurrentBranchID   *uint          `gorm:"index" json:"currentBranchId,omitempty"`
	CurrentEmployeeID *uint          `gorm:"index" json:"currentEmployeeId,omitempty"`
	QRCodeHash        *string        `gorm:"column:qr_code_hash;size:64;uniqueIndex" json:"qrCodeHash,omitempty"`
	IsQRActive        bool           `gorm:"column:is_qr_active;default:true" json:"isQrActive"`
	Version           uint           `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	CurrentBranch   *Branch   `gorm:"foreignKey:CurrentBranchID" json:"currentBranch,omitempty"`
	CurrentEmployee *Employee `gorm:"foreignKey:CurrentEmployeeID" json:"currentEmployee,omitempty"`
}

// TableName specifies the table name for Asset
func (Asset) TableName() string {
	return "assets"
}

// Custody returns the asset's current (status, branch, employee) triple
func (a Asset) Custody() Custody {
	return Custody{
		Status:     a.Status,
		BranchID:   a.CurrentBranchID,
		EmployeeID: a.CurrentEmployeeID,
	}
}

// Custody is the state captured after each ledger action
type Custody struct {
	Status     AssetStatus `json:"status"`
	BranchID   *uint       `json:"branchId,omitempty"`
	EmployeeID *uint       `json:"employeeId,omitempty"`
}

// Equal compares two custody snapshots by value
func (c Custody) Equal(o Custody) bool {
	return c.Status == o.Status && sameID(c.BranchID, o.BranchID) && sameID(c.EmployeeID, o.EmployeeID)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

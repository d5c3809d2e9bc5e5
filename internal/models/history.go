package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Action names a ledger entry kind
type Action string

const (
	ActionPurchase          Action = "Purchase"
	ActionAllocation        Action = "Allocation"
	ActionReturn            Action = "Return"
	ActionTransferInitiated Action = "Transfer Initiated"
	ActionTransferReceived  Action = "Transfer Received"
	ActionSentToRepair      Action = "Sent to Repair"
	ActionRepairCompleted   Action = "Repair Completed"
	ActionRetired           Action = "Retired/Scrapped"
	ActionQRReset           Action = "QR Reset"
	ActionQRAssigned        Action = "QR Assigned"
	ActionQRUnassigned      Action = "QR Unassigned"
	ActionQRLinked          Action = "QR Linked"
)

// ErrHistoryImmutable is returned when something tries to rewrite a ledger entry
var ErrHistoryImmutable = errors.New("asset history entries are immutable")

// AssetHistory is one ledger entry. The PostAction* columns hold the asset's
// custody right after the entry was written; reverting the next entry restores them.
type AssetHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AssetID         uint      `gorm:"index;not null" json:"assetId"`
	Action          Action    `gorm:"size:50;not null;index" json:"action"`
	FromDetail      string    `gorm:"size:200" json:"fromDetail"`
	ToDetail        string    `gorm:"size:200" json:"toDetail"`
	CourierDetails  string    `gorm:"size:200" json:"courierDetails,omitempty"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`
	DocumentPath    *string   `gorm:"size:300" json:"documentPath,omitempty"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedByUserID *uint     `json:"createdByUserId,omitempty"`

	PostActionStatus     AssetStatus `gorm:"size:20" json:"postActionStatus"`
	PostActionBranchID   *uint       `json:"postActionBranchId,omitempty"`
	PostActionEmployeeID *uint       `json:"postActionEmployeeId,omitempty"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

// TableName specifies the table name for AssetHistory
func (AssetHistory) TableName() string {
	return "asset_histories"
}

// Snapshot returns the custody recorded on this entry
func (h AssetHistory) Snapshot() Custody {
	return Custody{
		Status:     h.PostActionStatus,
		BranchID:   h.PostActionBranchID,
		EmployeeID: h.PostActionEmployeeID,
	}
}

// BeforeUpdate rejects in-place edits; entries are only ever inserted or,
// on revert, deleted.
func (h *AssetHistory) BeforeUpdate(tx *gorm.DB) error {
	return ErrHistoryImmutable
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// TagStatus tracks whether a pre-printed sticker has been bound
type TagStatus string

const (
	TagAvailable TagStatus = "Available"
	TagConsumed  TagStatus = "Consumed"
)

// PreGeneratedQR is a sticker printed before the asset it will label exists
type PreGeneratedQR struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QRHash    string    `gorm:"column:qr_hash;size:64;uniqueIndex;not null" json:"qrHash"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy *uint     `json:"createdBy,omitempty"`
	Status    TagStatus `gorm:"size:20;default:'Available';index" json:"status"`
}

// TableName specifies the table name for PreGeneratedQR
func (PreGeneratedQR) TableName() string {
	return "pre_generated_qrs"
}

// ScanLog records one public scan attempt
type ScanLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	QRHash    string            `gorm:"column:qr_hash;size:64;index" json:"qrHash"`
	ScannedAt time.Time         `gorm:"index" json:"scannedAt"`
	IPAddress string            `gorm:"size:64" json:"ipAddress"`
	UserAgent string            `gorm:"size:200" json:"userAgent"`
	AssetID   *uint             `gorm:"index" json:"assetId,omitempty"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`
}

// TableName specifies the table name for ScanLog
func (ScanLog) TableName() string {
	return "scan_logs"
}

// SystemSetting is a key/value configuration row
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:50" json:"key"`
	Value     string    `gorm:"size:200" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for SystemSetting
func (SystemSetting) TableName() string {
	return "system_settings"
}

const SettingGlobalQRScan = "global_qr_scan"

// Package settings exposes the process-wide switches stored in system_settings.
package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanFlag is the global QR-scan switch.
//
// With a zero TTL every Enabled call reads the committed row, so a toggle is
// visible to the very next request. A positive TTL caches the value in this
// process; Set and Toggle refresh the local cache immediately, other
// processes pick the change up once their cache expires. A missing row means
// enabled.
type ScanFlag struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	value    bool
	loadedAt time.Time
	loaded   bool
}

// NewScanFlag creates the accessor
func NewScanFlag(db *gorm.DB, ttl time.Duration) *ScanFlag {
	return &ScanFlag{db: db, ttl: ttl, now: time.Now}
}

// Enabled reports whether public scans resolve
func (f *ScanFlag) Enabled(ctx context.Context) (bool, error) {
	if f.ttl > 0 {
		f.mu.RLock()
		if f.loaded && f.now().Sub(f.loadedAt) < f.ttl {
			v := f.value
			f.mu.RUnlock()
			return v, nil
		}
		f.mu.RUnlock()
	}

	v, err := read(f.db.WithContext(ctx))
	if err != nil {
		return false, err
	}
	f.remember(v)
	return v, nil
}

// Set stores the flag
func (f *ScanFlag) Set(ctx context.Context, enabled bool) error {
	if err := write(f.db.WithContext(ctx), enabled); err != nil {
		return err
	}
	f.remember(enabled)
	return nil
}

// Toggle flips the flag and returns the new value
func (f *ScanFlag) Toggle(ctx context.Context) (bool, error) {
	var next bool
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := read(tx)
		if err != nil {
			return err
		}
		next = !cur
		return write(tx, next)
	})
	if err != nil {
		return false, err
	}
	f.remember(next)
	return next, nil
}

func (f *ScanFlag) remember(v bool) {
	f.mu.Lock()
	f.value = v
	f.loadedAt = f.now()
	f.loaded = true
	f.mu.Unlock()
}

func read(db *gorm.DB) (bool, error) {
	var s models.SystemSetting
	err := db.Where("key = ?", models.SettingGlobalQRScan).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, apperr.Internal(err, "could not read scan setting")
	}
	return s.Value != "0", nil
}

func write(db *gorm.DB, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: models.SettingGlobalQRScan, Value: value}).Error
	if err != nil {
		return apperr.Internal(err, "could not save scan setting")
	}
	return nil
}

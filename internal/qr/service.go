// Package qr binds printed QR tags to assets and resolves public scans.
package qr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/settings"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 10
	maxUserAgent     = 200
)

// Service implements tag binding and scan resolution
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Service
	flag       *settings.ScanFlag
	batchLimit int
	newToken   func() string
	now        func() time.Time
}

// NewService creates a QR service. batchLimit caps GenerateBatch.
func NewService(db *gorm.DB, l *ledger.Service, flag *settings.ScanFlag, batchLimit int) *Service {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Service{
		db:         db,
		ledger:     l,
		flag:       flag,
		batchLimit: batchLimit,
		newToken:   NewToken,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Link binds an available pre-generated tag to an untagged asset
func (s *Service) Link(ctx context.Context, hash string, assetID uint, d ledger.Details) (*models.Asset, error) {
	if hash == "" {
		return nil, apperr.Invalid("tag hash is required")
	}
	var out *models.Asset
	err := s.ledger.Tx(ctx, func(w *ledger.Writer) error {
		a, err := w.Asset(assetID)
		if err != nil {
			return err
		}
		if a.QRCodeHash != nil {
			return apperr.Conflict("asset %s already has a QR tag", a.SerialNumber)
		}
		if a.Status == models.StatusRetired {
			return apperr.InvalidTransition("asset %s is retired", a.SerialNumber)
		}

		res := w.DB().Model(&models.PreGeneratedQR{}).
			Where("qr_hash = ? AND status = ?", hash, models.TagAvailable).
			Update("status", models.TagConsumed)
		if res.Error != nil {
			return apperr.Internal(res.Error, "could not claim tag")
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := w.DB().Model(&models.PreGeneratedQR{}).Where("qr_hash = ?", hash).Count(&n).Error; err != nil {
				return apperr.Internal(err, "could not look up tag")
			}
			if n == 0 {
				return apperr.NotFound("tag not found")
			}
			return apperr.Conflict("tag has already been used")
		}

		a.QRCodeHash = &hash
		a.IsQRActive = true
		if _, err := w.Append(a, ledger.Entry{
			Action:  models.ActionQRLinked,
			From:    "Unassigned Tag",
			To:      "Linked to " + a.SerialNumber,
			Details: d,
		}); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// ReassignResult reports both sides of a tag move
type ReassignResult struct {
	Source *models.Asset `json:"source"`
	Target *models.Asset `json:"target"`
	// Replaced is the hash the target held before, now orphaned
	Replaced *string `json:"replaced,omitempty"`
}

// Reassign moves a bound tag from one asset to the asset with targetSerial.
// Any tag the target already had is discarded.
func (s *Service) Reassign(ctx context.Context, sourceID uint, targetSerial string, d ledger.Details) (*ReassignResult, error) {
	var out ReassignResult
	err := s.ledger.Tx(ctx, func(w *ledger.Writer) error {
		src, err := w.Asset(sourceID)
		if err != nil {
			return err
		}
		if src.QRCodeHash == nil {
			return apperr.InvalidTransition("asset %s has no QR tag to move", src.SerialNumber)
		}
		dst, err := w.AssetBySerial(targetSerial)
		if err != nil {
			return err
		}
		if dst.ID == src.ID {
			return apperr.InvalidTransition("source and target are the same asset")
		}

		hash := *src.QRCodeHash
		active := src.IsQRActive

		// clear the source first so the unique index never sees the hash twice
		src.QRCodeHash = nil
		if _, err := w.Append(src, ledger.Entry{
			Action:  models.ActionQRUnassigned,
			From:    "QR Code",
			To:      "Moved to " + dst.SerialNumber,
			Details: d,
		}); err != nil {
			return err
		}

		entry := ledger.Entry{Action: models.ActionQRAssigned, From: "From " + src.SerialNumber, To: "QR Code", Details: d}
		if dst.QRCodeHash != nil {
			old := *dst.QRCodeHash
			out.Replaced = &old
			entry.Notes = joinNotes(d.Notes, fmt.Sprintf("Replaced tag %s", short(old)))
		}
		dst.QRCodeHash = &hash
		dst.IsQRActive = active
		if _, err := w.Append(dst, entry); err != nil {
			return err
		}
		out.Source, out.Target = src, dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset replaces an asset's tag with a fresh token, invalidating the printed
// sticker. An asset without a tag gets its first one.
func (s *Service) Reset(ctx context.Context, assetID uint, d ledger.Details) (*models.Asset, error) {
	return s.assignFresh(ctx, assetID, d, false)
}

// Generate gives an untagged asset its first tag. Tagged assets are returned
// unchanged.
func (s *Service) Generate(ctx context.Context, assetID uint, d ledger.Details) (*models.Asset, error) {
	return s.assignFresh(ctx, assetID, d, true)
}

func (s *Service) assignFresh(ctx context.Context, assetID uint, d ledger.Details, keepExisting bool) (*models.Asset, error) {
	var out *models.Asset
	err := s.ledger.Tx(ctx, func(w *ledger.Writer) error {
		a, err := w.Asset(assetID)
		if err != nil {
			return err
		}
		if keepExisting && a.QRCodeHash != nil {
			out = a
			return nil
		}
		tok, err := freshToken(w.DB(), s.newToken, nil)
		if err != nil {
			return err
		}
		from := "None"
		if a.QRCodeHash != nil {
			from = "Old: " + short(*a.QRCodeHash) + "..."
		}
		a.QRCodeHash = &tok
		a.IsQRActive = true
		if _, err := w.Append(a, ledger.Entry{Action: models.ActionQRReset, From: from, To: "New Hash", Details: d}); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// ToggleActive flips whether the asset's tag resolves publicly. It changes
// tag state only, so no history entry is written.
func (s *Service) ToggleActive(ctx context.Context, assetID uint) (*models.Asset, error) {
	var out *models.Asset
	err := s.ledger.Tx(ctx, func(w *ledger.Writer) error {
		a, err := w.Asset(assetID)
		if err != nil {
			return err
		}
		if a.QRCodeHash == nil {
			return apperr.InvalidTransition("asset %s has no QR tag", a.SerialNumber)
		}
		a.IsQRActive = !a.IsQRActive
		if err := w.Save(a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// GenerateBatch creates n available tags, defaulting to 10 and capped at the
// configured limit.
func (s *Service) GenerateBatch(ctx context.Context, n int, actor *uint) ([]models.PreGeneratedQR, error) {
	if n <= 0 {
		n = defaultBatchSize
	}
	if n > s.batchLimit {
		n = s.batchLimit
	}

	tags := make([]models.PreGeneratedQR, 0, n)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			tok, err := freshToken(tx, s.newToken, taken)
			if err != nil {
				return err
			}
			taken[tok] = true
			tags = append(tags, models.PreGeneratedQR{QRHash: tok, CreatedBy: actor, Status: models.TagAvailable})
		}
		if err := tx.Create(&tags).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Internal(err, "QR token collision, retry")
			}
			return apperr.Internal(err, "could not save tags")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.LoggerFromContext(ctx).WithField("count", len(tags)).Info("pre-generated QR tags created")
	return tags, nil
}

// AvailableTags lists unbound pre-generated tags, newest first
func (s *Service) AvailableTags(ctx context.Context) ([]models.PreGeneratedQR, error) {
	var tags []models.PreGeneratedQR
	err := s.db.WithContext(ctx).Where("status = ?", models.TagAvailable).
		Order("created_at DESC").Order("id DESC").Find(&tags).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not list tags")
	}
	return tags, nil
}

// TagsByID loads pre-generated tags, keeping the order of ids
func (s *Service) TagsByID(ctx context.Context, ids []uint) ([]models.PreGeneratedQR, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.PreGeneratedQR
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, apperr.Internal(err, "could not load tags")
	}
	byID := make(map[uint]models.PreGeneratedQR, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]models.PreGeneratedQR, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, apperr.NotFound("tag %d not found", id)
		}
		out = append(out, t)
	}
	return out, nil
}

// ManageFilter narrows the tag management view
type ManageFilter struct {
	BranchID *uint
	Status   models.AssetStatus
}

// Overview is the tag management view
type Overview struct {
	Assets        []models.Asset          `json:"assets"`
	AvailableTags []models.PreGeneratedQR `json:"availableTags"`
	Statuses      []models.AssetStatus    `json:"statuses"`
	ScanEnabled   bool                    `json:"scanEnabled"`
}

// Overview lists assets with their tag state plus the unbound tags
func (s *Service) Overview(ctx context.Context, f ManageFilter) (*Overview, error) {
	q := s.db.WithContext(ctx).Preload("CurrentBranch").Preload("CurrentEmployee").Order("serial_number")
	if f.BranchID != nil {
		q = q.Where("current_branch_id = ?", *f.BranchID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var ov Overview
	if err := q.Find(&ov.Assets).Error; err != nil {
		return nil, apperr.Internal(err, "could not list assets")
	}

	var statuses []string
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).Distinct().Order("status").Pluck("status", &statuses).Error; err != nil {
		return nil, apperr.Internal(err, "could not list statuses")
	}
	for _, st := range statuses {
		ov.Statuses = append(ov.Statuses, models.AssetStatus(st))
	}

	tags, err := s.AvailableTags(ctx)
	if err != nil {
		return nil, err
	}
	ov.AvailableTags = tags

	if ov.ScanEnabled, err = s.flag.Enabled(ctx); err != nil {
		return nil, err
	}
	return &ov, nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

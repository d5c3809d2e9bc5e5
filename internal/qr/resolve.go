package qr

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

// Outcome is the kind of answer a public scan gets
type Outcome string

const (
	OutcomeLockdown    Outcome = "lockdown"
	OutcomeDeactivated Outcome = "deactivated"
	OutcomeAsset       Outcome = "asset"
	OutcomeBind        Outcome = "bind"
	OutcomeUnassigned  Outcome = "unassigned"
	OutcomeInvalid     Outcome = "invalid"
)

const (
	msgLockdown    = "QR scanning is currently disabled by the administrator."
	msgDeactivated = "This QR tag has been deactivated. Contact IT Admin."
	msgUnassigned  = "Unassigned Tag. Contact IT Admin."
	msgInvalid     = "Invalid QR Code."
)

// ScanRequest carries one public scan
type ScanRequest struct {
	Hash          string
	IP            string
	UserAgent     string
	Authenticated bool
	Meta          map[string]interface{}
}

// PublicAsset is what an anonymous scanner may see
type PublicAsset struct {
	SerialNumber string     `json:"serialNumber"`
	Brand        string     `json:"brand"`
	Model        string     `json:"model"`
	Status       string     `json:"status"`
	Branch       string     `json:"branch,omitempty"`
	Holder       string     `json:"holder,omitempty"`
	EmpID        string     `json:"empId,omitempty"`
	AllocatedAt  *time.Time `json:"allocatedAt,omitempty"`
}

// Resolution answers a scan
type Resolution struct {
	Outcome    Outcome        `json:"outcome"`
	Message    string         `json:"message,omitempty"`
	Hash       string         `json:"hash"`
	Asset      *PublicAsset   `json:"asset,omitempty"`
	Candidates []models.Asset `json:"candidates,omitempty"`
}

// Resolve handles a public scan. When scanning is globally disabled it returns
// the lockdown answer without touching the scan log.
func (s *Service) Resolve(ctx context.Context, req ScanRequest) (*Resolution, error) {
	on, err := s.flag.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Hash: req.Hash}
	if !on {
		res.Outcome, res.Message = OutcomeLockdown, msgLockdown
		return res, nil
	}

	db := s.db.WithContext(ctx)

	var a models.Asset
	err = db.Preload("CurrentBranch").Preload("CurrentEmployee").
		Where("qr_code_hash = ?", req.Hash).First(&a).Error
	switch {
	case err == nil:
		s.logScan(ctx, req, &a.ID)
		if !a.IsQRActive {
			res.Outcome, res.Message = OutcomeDeactivated, msgDeactivated
			return res, nil
		}
		pub, err := s.publicView(ctx, &a)
		if err != nil {
			return nil, err
		}
		res.Outcome, res.Asset = OutcomeAsset, pub
		return res, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err, "could not resolve tag")
	}

	var tag models.PreGeneratedQR
	err = db.Where("qr_hash = ? AND status = ?", req.Hash, models.TagAvailable).First(&tag).Error
	switch {
	case err == nil:
		s.logScan(ctx, req, nil)
		if !req.Authenticated {
			res.Outcome, res.Message = OutcomeUnassigned, msgUnassigned
			return res, nil
		}
		cands, err := s.BindCandidates(ctx)
		if err != nil {
			return nil, err
		}
		res.Outcome, res.Candidates = OutcomeBind, cands
		return res, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err, "could not resolve tag")
	}

	res.Outcome, res.Message = OutcomeInvalid, msgInvalid
	return res, nil
}

// BindCandidates lists assets that can receive a tag: unbound and not retired
func (s *Service) BindCandidates(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	err := s.db.WithContext(ctx).
		Where("qr_code_hash IS NULL AND status <> ?", models.StatusRetired).
		Order("serial_number").Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not list assets")
	}
	return out, nil
}

func (s *Service) publicView(ctx context.Context, a *models.Asset) (*PublicAsset, error) {
	pub := &PublicAsset{
		SerialNumber: a.SerialNumber,
		Brand:        a.Brand,
		Model:        a.Model,
		Status:       string(a.Status),
	}
	if a.CurrentBranch != nil {
		pub.Branch = a.CurrentBranch.Name
	}
	if a.CurrentEmployee != nil {
		pub.Holder = a.CurrentEmployee.Name
		pub.EmpID = a.CurrentEmployee.EmpID
	}

	var h models.AssetHistory
	err := s.db.WithContext(ctx).
		Where("asset_id = ? AND action = ?", a.ID, models.ActionAllocation).
		Order("timestamp DESC").Order("id DESC").First(&h).Error
	switch {
	case err == nil:
		at := h.Timestamp
		pub.AllocatedAt = &at
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err, "could not load allocation date")
	}
	return pub, nil
}

// logScan records the attempt. Failures never affect the scan response.
func (s *Service) logScan(ctx context.Context, req ScanRequest, assetID *uint) {
	entry := models.ScanLog{
		QRHash:    req.Hash,
		ScannedAt: s.now(),
		IPAddress: req.IP,
		UserAgent: truncateUTF8(req.UserAgent, maxUserAgent),
		AssetID:   assetID,
		Meta:      req.Meta,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		utils.LoggerFromContext(ctx).WithError(err).WithField("hash", short(req.Hash)).Warn("could not write scan log")
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

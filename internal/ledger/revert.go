package ledger

import (
	"context"
	"errors"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

var (
	// ErrNotLatest rejects reverting anything but an asset's newest entry
	ErrNotLatest = &apperr.Error{Kind: apperr.KindInvalidTransition, Msg: "only the most recent transaction of an asset can be reverted"}

	// ErrDeletionNotConfirmed rejects reverting a Purchase without AllowAssetDeletion
	ErrDeletionNotConfirmed = &apperr.Error{Kind: apperr.KindInvalidTransition, Msg: "reverting the purchase entry deletes the asset and needs explicit confirmation"}
)

// RevertOptions controls destructive outcomes of Revert
type RevertOptions struct {
	// AllowAssetDeletion must be set to revert an asset's only entry,
	// which deletes the asset.
	AllowAssetDeletion bool
}

// RevertResult describes what Revert did
type RevertResult struct {
	AssetID  uint                `json:"assetId"`
	Reverted models.AssetHistory `json:"reverted"`
	// AssetDeleted is true when the reverted entry was the asset's first;
	// the asset and its history no longer exist.
	AssetDeleted bool `json:"assetDeleted"`
	// Restored is the custody now in effect, nil when the asset was deleted
	Restored *models.Custody `json:"restored,omitempty"`
}

// Revert undoes the newest history entry of an asset. The asset's custody is
// restored from the previous entry's snapshot and the entry is deleted. If
// the entry is the asset's first, the asset itself is deleted, which requires
// opts.AllowAssetDeletion. A proof document on the entry is removed after
// commit; failure to remove it is logged only.
//
// Tag changes (QR actions) keep their snapshot like any other entry, so
// reverting one restores custody but leaves the tag hash as it is.
func (s *Service) Revert(ctx context.Context, historyID uint, opts RevertOptions) (*RevertResult, error) {
	res := &RevertResult{}
	err := s.Tx(ctx, func(w *Writer) error {
		var target models.AssetHistory
		if err := w.tx.First(&target, historyID).Error; err != nil {
			return apperr.FromDB(err, "history entry")
		}
		newest, err := latest(w.tx, target.AssetID)
		if err != nil {
			return err
		}
		if newest.ID != target.ID {
			return ErrNotLatest
		}

		a, err := w.Asset(target.AssetID)
		if err != nil {
			return err
		}

		var prev models.AssetHistory
		err = newestFirst(w.tx).Where("asset_id = ? AND id <> ?", target.AssetID, target.ID).First(&prev).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !opts.AllowAssetDeletion {
				return ErrDeletionNotConfirmed
			}
			if err := w.deleteAsset(a); err != nil {
				return err
			}
			res.AssetDeleted = true
		case err != nil:
			return apperr.Internal(err, "could not load previous entry")
		default:
			snap := prev.Snapshot()
			a.Status = snap.Status
			a.CurrentBranchID = copyID(snap.BranchID)
			a.CurrentEmployeeID = copyID(snap.EmployeeID)
			if err := w.Save(a); err != nil {
				return err
			}
			if err := w.tx.Delete(&models.AssetHistory{}, target.ID).Error; err != nil {
				return apperr.Internal(err, "could not delete history entry")
			}
			res.Restored = &snap
		}

		res.AssetID = target.AssetID
		res.Reverted = target
		w.events = append(w.events, Event{Type: EventReverted, AssetID: target.AssetID, Entry: &target, AssetDeleted: res.AssetDeleted})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Reverted.DocumentPath != nil && s.docs != nil {
		if err := s.docs.Delete(ctx, *res.Reverted.DocumentPath); err != nil {
			utils.LoggerFromContext(ctx).WithError(err).
				WithField("document", *res.Reverted.DocumentPath).
				Warn("could not delete proof document of reverted entry")
		}
	}
	return res, nil
}

// deleteAsset removes the asset and all of its history. Scan logs keep the
// hash but lose the asset link.
func (w *Writer) deleteAsset(a *models.Asset) error {
	if err := w.tx.Where("asset_id = ?", a.ID).Delete(&models.AssetHistory{}).Error; err != nil {
		return apperr.Internal(err, "could not delete asset history")
	}
	if err := w.tx.Model(&models.ScanLog{}).Where("asset_id = ?", a.ID).Update("asset_id", nil).Error; err != nil {
		return apperr.Internal(err, "could not detach scan logs")
	}
	res := w.tx.Where("version = ?", a.Version).Delete(&models.Asset{}, a.ID)
	if res.Error != nil {
		return apperr.Internal(res.Error, "could not delete asset")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("asset %s was changed by another request, reload and retry", a.SerialNumber)
	}
	return nil
}

package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"gorm.io/gorm"
)

// Mode selects the export layout
type Mode string

const (
	ModeSummary  Mode = "summary"
	ModeDetailed Mode = "detailed"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

var (
	summaryHeader  = []string{"ID", "Serial Number", "Brand", "Model", "Status", "Branch", "Holder", "Emp ID", "Purchase Date", "Allocated On", "QR Active"}
	detailedHeader = []string{"Date", "Serial Number", "Brand", "Model", "Action", "From", "To", "Courier", "Notes", "Status After", "Branch After", "Holder After", "By"}
)

// ParseMode validates an export mode, defaulting to summary
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSummary:
		return ModeSummary, nil
	case ModeDetailed:
		return ModeDetailed, nil
	}
	return "", apperr.Invalid("unknown export mode %q", s)
}

// ExportFilename is the download name for an export taken at now
func ExportFilename(mode Mode, now time.Time) string {
	return fmt.Sprintf("asset_%s_%s.csv", mode, now.Format(dateLayout))
}

// ExportCSV writes assets matching f to w. Summary mode writes one row per
// asset; detailed mode writes one row per ledger entry, newest first.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, mode Mode, f Filter) error {
	cw := csv.NewWriter(w)
	var err error
	switch mode {
	case ModeSummary:
		err = s.writeSummary(ctx, cw, f)
	case ModeDetailed:
		err = s.writeDetailed(ctx, cw, f)
	default:
		return apperr.Invalid("unknown export mode %q", mode)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperr.Internal(err, "could not write export")
	}
	return nil
}

func (s *Service) writeSummary(ctx context.Context, cw *csv.Writer, f Filter) error {
	rows, err := s.Assets(ctx, f)
	if err != nil {
		return err
	}
	if err := cw.Write(summaryHeader); err != nil {
		return apperr.Internal(err, "could not write export")
	}
	for _, r := range rows {
		allocated := ""
		if r.AllocatedAt != nil {
			allocated = r.AllocatedAt.Format(dateLayout)
		}
		rec := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.SerialNumber,
			r.Brand,
			r.Model,
			string(r.Status),
			r.BranchName,
			r.HolderName,
			r.HolderEmpID,
			formatDate(time.Time(r.PurchaseDate)),
			allocated,
			yesNo(r.QRCodeHash != nil && r.IsQRActive),
		}
		if err := cw.Write(rec); err != nil {
			return apperr.Internal(err, "could not write export")
		}
	}
	return nil
}

func (s *Service) writeDetailed(ctx context.Context, cw *csv.Writer, f Filter) error {
	matching := filtered(s.db.WithContext(ctx).Model(&models.Asset{}), f).Select("assets.id")
	rows, err := s.historyRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("asset_id IN (?)", matching)
	})
	if err != nil {
		return err
	}
	if err := cw.Write(detailedHeader); err != nil {
		return apperr.Internal(err, "could not write export")
	}
	for _, r := range rows {
		var brand, model string
		if r.Asset != nil {
			brand, model = r.Asset.Brand, r.Asset.Model
		}
		rec := []string{
			r.Timestamp.Format(dateTimeLayout),
			r.SerialNumber,
			brand,
			model,
			string(r.Action),
			r.FromDetail,
			r.ToDetail,
			r.CourierDetails,
			r.Notes,
			string(r.PostActionStatus),
			r.BranchName,
			r.HolderName,
			r.ActorName,
		}
		if err := cw.Write(rec); err != nil {
			return apperr.Internal(err, "could not write export")
		}
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

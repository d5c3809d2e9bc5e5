package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"gorm.io/datatypes"
)

// PurchaseInput registers a new asset
type PurchaseInput struct {
	SerialNumber string
	Brand        string
	Model        string
	PurchaseDate time.Time
	BranchID     uint
	Details
}

func stockLabel(b *models.Branch) string {
	if b == nil {
		return "Unknown"
	}
	return fmt.Sprintf("Stock (%s)", b.Name)
}

// currentBranch loads the asset's branch, nil when unset
func (w *Writer) currentBranch(a *models.Asset) (*models.Branch, error) {
	if a.CurrentBranchID == nil {
		return nil, nil
	}
	return w.branch(*a.CurrentBranchID)
}

// holder loads the asset's current employee, nil when unheld
func (w *Writer) holder(a *models.Asset) (*models.Employee, error) {
	if a.CurrentEmployeeID == nil {
		return nil, nil
	}
	return w.employee(*a.CurrentEmployeeID)
}

func check(a *models.Asset, t Transition) error {
	if !Allowed(a.Status, t) {
		return apperr.InvalidTransition("cannot %s asset %s while it is %s", t, a.SerialNumber, a.Status)
	}
	return nil
}

// apply loads the asset, checks the transition and runs fn inside one transaction
func (s *Service) apply(ctx context.Context, assetID uint, t Transition, fn func(w *Writer, a *models.Asset) error) (*models.Asset, error) {
	var out *models.Asset
	err := s.Tx(ctx, func(w *Writer) error {
		a, err := w.Asset(assetID)
		if err != nil {
			return err
		}
		if t == Retire && a.CurrentEmployeeID != nil {
			return apperr.InvalidTransition("asset %s is still held by an employee, return it before retiring", a.SerialNumber)
		}
		if err := check(a, t); err != nil {
			return err
		}
		if err := fn(w, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// Purchase creates an asset in stock at a branch
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*models.Asset, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	if serial == "" {
		return nil, apperr.Invalid("serial number is required")
	}
	if in.PurchaseDate.IsZero() {
		in.PurchaseDate = s.now()
	}

	var out *models.Asset
	err := s.Tx(ctx, func(w *Writer) error {
		var n int64
		if err := w.tx.Model(&models.Asset{}).Where("serial_number = ?", serial).Count(&n).Error; err != nil {
			return apperr.Internal(err, "could not check serial number")
		}
		if n > 0 {
			return apperr.Conflict("serial number %s already exists", serial)
		}
		b, err := w.branch(in.BranchID)
		if err != nil {
			return err
		}
		a := &models.Asset{
			SerialNumber:    serial,
			Brand:           strings.TrimSpace(in.Brand),
			Model:           strings.TrimSpace(in.Model),
			PurchaseDate:    datatypes.Date(in.PurchaseDate),
			Status:          models.StatusInStock,
			CurrentBranchID: &b.ID,
			IsQRActive:      true,
		}
		if _, err := w.Append(a, Entry{Action: models.ActionPurchase, From: "Vendor", To: stockLabel(b), Details: in.Details}); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// Allocate hands the asset to an active employee
func (s *Service) Allocate(ctx context.Context, assetID, employeeID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, Allocate, func(w *Writer, a *models.Asset) error {
		emp, err := w.employee(employeeID)
		if err != nil {
			return err
		}
		if emp.Status != models.EmployeeActive {
			return apperr.InvalidTransition("employee %s is inactive", emp.EmpID)
		}
		if a.CurrentEmployeeID != nil && *a.CurrentEmployeeID == emp.ID {
			return apperr.InvalidTransition("asset %s is already allocated to %s", a.SerialNumber, emp.Name)
		}

		from := "Unknown"
		if prev, err := w.holder(a); err != nil {
			return err
		} else if prev != nil {
			from = prev.Label()
		} else if b, err := w.currentBranch(a); err != nil {
			return err
		} else if b != nil {
			from = stockLabel(b)
		}

		a.Status = models.StatusAllocated
		a.CurrentEmployeeID = &emp.ID
		_, err = w.Append(a, Entry{Action: models.ActionAllocation, From: from, To: emp.Label(), Details: d})
		return err
	})
}

// Return takes the asset back from its holder into stock at a branch
func (s *Service) Return(ctx context.Context, assetID, branchID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, Return, func(w *Writer, a *models.Asset) error {
		b, err := w.branch(branchID)
		if err != nil {
			return err
		}
		from := "Unknown"
		if prev, err := w.holder(a); err != nil {
			return err
		} else if prev != nil {
			from = prev.Name
		}

		a.Status = models.StatusInStock
		a.CurrentEmployeeID = nil
		a.CurrentBranchID = &b.ID
		_, err = w.Append(a, Entry{Action: models.ActionReturn, From: from, To: stockLabel(b), Details: d})
		return err
	})
}

// InitiateTransfer ships the asset to another branch. The branch is set to the
// destination immediately; status InTransit marks that it has not arrived.
func (s *Service) InitiateTransfer(ctx context.Context, assetID, branchID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, InitiateTransfer, func(w *Writer, a *models.Asset) error {
		target, err := w.branch(branchID)
		if err != nil {
			return err
		}
		if a.CurrentEmployeeID == nil && a.CurrentBranchID != nil && *a.CurrentBranchID == target.ID {
			return apperr.InvalidTransition("asset %s is already in stock at %s", a.SerialNumber, target.Name)
		}
		src, err := w.currentBranch(a)
		if err != nil {
			return err
		}
		from := "Branch Unknown"
		if src != nil {
			from = "Branch " + src.Name
		}

		a.Status = models.StatusInTransit
		a.CurrentEmployeeID = nil
		a.CurrentBranchID = &target.ID
		_, err = w.Append(a, Entry{Action: models.ActionTransferInitiated, From: from, To: "Branch " + target.Name, Details: d})
		return err
	})
}

// ReceiveTransfer confirms arrival at the destination branch
func (s *Service) ReceiveTransfer(ctx context.Context, assetID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, ReceiveTransfer, func(w *Writer, a *models.Asset) error {
		b, err := w.currentBranch(a)
		if err != nil {
			return err
		}
		a.Status = models.StatusInStock
		_, err = w.Append(a, Entry{Action: models.ActionTransferReceived, From: "Courier", To: stockLabel(b), Details: d})
		return err
	})
}

// SendToRepair moves the asset to the repair center. The holder is kept so
// CompleteRepair can hand it back.
func (s *Service) SendToRepair(ctx context.Context, assetID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, SendToRepair, func(w *Writer, a *models.Asset) error {
		var from string
		if emp, err := w.holder(a); err != nil {
			return err
		} else if emp != nil {
			from = emp.Name + " (Allocated)"
		} else {
			b, err := w.currentBranch(a)
			if err != nil {
				return err
			}
			from = stockLabel(b)
		}

		a.Status = models.StatusRepair
		_, err := w.Append(a, Entry{Action: models.ActionSentToRepair, From: from, To: "Repair Center", Details: d})
		return err
	})
}

// CompleteRepair returns the asset to its holder, or to stock when unheld
func (s *Service) CompleteRepair(ctx context.Context, assetID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, CompleteRepair, func(w *Writer, a *models.Asset) error {
		var to string
		if emp, err := w.holder(a); err != nil {
			return err
		} else if emp != nil {
			a.Status = models.StatusAllocated
			to = emp.Name + " (Owner)"
		} else {
			b, err := w.currentBranch(a)
			if err != nil {
				return err
			}
			a.Status = models.StatusInStock
			to = stockLabel(b)
		}
		_, err := w.Append(a, Entry{Action: models.ActionRepairCompleted, From: "Repair Center", To: to, Details: d})
		return err
	})
}

// Retire scraps an unheld asset. Retired is terminal.
func (s *Service) Retire(ctx context.Context, assetID uint, d Details) (*models.Asset, error) {
	return s.apply(ctx, assetID, Retire, func(w *Writer, a *models.Asset) error {
		from := string(a.Status)
		a.Status = models.StatusRetired
		a.CurrentEmployeeID = nil
		_, err := w.Append(a, Entry{Action: models.ActionRetired, From: from, To: "Retired", Details: d})
		return err
	})
}

// Apply dispatches a transition by kind. target is the employee id for
// Allocate and the branch id for Return and InitiateTransfer; it is ignored
// otherwise.
func (s *Service) Apply(ctx context.Context, t Transition, assetID, target uint, d Details) (*models.Asset, error) {
	switch t {
	case Allocate:
		return s.Allocate(ctx, assetID, target, d)
	case Return:
		return s.Return(ctx, assetID, target, d)
	case InitiateTransfer:
		return s.InitiateTransfer(ctx, assetID, target, d)
	case ReceiveTransfer:
		return s.ReceiveTransfer(ctx, assetID, d)
	case SendToRepair:
		return s.SendToRepair(ctx, assetID, d)
	case CompleteRepair:
		return s.CompleteRepair(ctx, assetID, d)
	case Retire:
		return s.Retire(ctx, assetID, d)
	}
	return nil, apperr.Invalid("unknown transition %d", int(t))
}

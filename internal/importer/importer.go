// Package importer replays historical asset events from CSV through the
// ledger, so imported history obeys the same transition rules as live use.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Columns of the import file. Header names are matched case-insensitively.
const (
	colDate    = "date"
	colAction  = "action"
	colSerial  = "serial"
	colBrand   = "brand"
	colModel   = "model"
	colBranch  = "location_branch"
	colEmpID   = "emp_id"
	colEmpName = "emp_name"
	colCourier = "courier"
	colNotes   = "notes"
)

var required = []string{colDate, colAction, colSerial}

// RowError describes a row that could not be applied
type RowError struct {
	Line   int    `json:"line"`
	Serial string `json:"serial"`
	Err    string `json:"error"`
}

// Result summarises an import run
type Result struct {
	Applied int        `json:"applied"`
	Failed  []RowError `json:"failed,omitempty"`
}

// Importer replays CSV rows through a ledger service
type Importer struct {
	db     *gorm.DB
	ledger *ledger.Service
	actor  *uint
}

// New creates an importer. Entries are attributed to actor when not nil.
func New(db *gorm.DB, l *ledger.Service, actor *uint) *Importer {
	return &Importer{db: db, ledger: l, actor: actor}
}

type row map[string]string

func (r row) get(col string) string {
	return strings.TrimSpace(r[col])
}

// Import applies every row of r in file order. A bad row is recorded in the
// result and skipped; only unreadable input aborts the run.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	log := utils.LoggerFromContext(ctx)
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, apperr.Invalid("could not read CSV header: %v", err)
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		seen[cols[i]] = true
	}
	for _, c := range required {
		if !seen[c] {
			return nil, apperr.Invalid("CSV is missing the %q column", c)
		}
	}

	res := &Result{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, apperr.Invalid("line %d: %v", line, err)
		}
		rw := make(row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				rw[c] = rec[i]
			}
		}

		entry := log.WithFields(logrus.Fields{"line": line, "serial": rw.get(colSerial), "action": rw.get(colAction)})
		if err := im.apply(ctx, rw); err != nil {
			entry.WithError(err).Warn("import row skipped")
			res.Failed = append(res.Failed, RowError{Line: line, Serial: rw.get(colSerial), Err: apperr.Message(err)})
			continue
		}
		entry.Debug("import row applied")
		res.Applied++
	}
	log.WithFields(logrus.Fields{"applied": res.Applied, "failed": len(res.Failed)}).Info("history import finished")
	return res, nil
}

func (im *Importer) apply(ctx context.Context, r row) error {
	at, err := time.Parse(dateLayout, r.get(colDate))
	if err != nil {
		return apperr.Invalid("bad date %q, want YYYY-MM-DD", r.get(colDate))
	}
	serial := r.get(colSerial)
	if serial == "" {
		return apperr.Invalid("serial is required")
	}
	d := ledger.Details{ActorID: im.actor, At: at, Courier: r.get(colCourier), Notes: r.get(colNotes)}

	action := strings.ToUpper(r.get(colAction))
	if action == "PURCHASE" {
		b, err := im.branch(ctx, r.get(colBranch))
		if err != nil {
			return err
		}
		_, err = im.ledger.Purchase(ctx, ledger.PurchaseInput{
			SerialNumber: serial,
			Brand:        r.get(colBrand),
			Model:        r.get(colModel),
			PurchaseDate: at,
			BranchID:     b.ID,
			Details:      d,
		})
		return err
	}

	a, err := im.ledger.GetBySerial(ctx, serial)
	if err != nil {
		return err
	}

	switch action {
	case "ALLOCATE":
		var branchID *uint
		if name := r.get(colBranch); name != "" {
			b, err := im.branch(ctx, name)
			if err != nil {
				return err
			}
			branchID = &b.ID
		}
		emp, err := im.employee(ctx, r.get(colEmpID), r.get(colEmpName), branchID)
		if err != nil {
			return err
		}
		_, err = im.ledger.Allocate(ctx, a.ID, emp.ID, d)
		return err
	case "RETURN":
		b, err := im.branch(ctx, r.get(colBranch))
		if err != nil {
			return err
		}
		_, err = im.ledger.Return(ctx, a.ID, b.ID, d)
		return err
	case "TRANSFER":
		// historical transfers are complete: ship and receive on the same day
		b, err := im.branch(ctx, r.get(colBranch))
		if err != nil {
			return err
		}
		if _, err := im.ledger.InitiateTransfer(ctx, a.ID, b.ID, d); err != nil {
			return err
		}
		recv := d
		recv.Courier = ""
		_, err = im.ledger.ReceiveTransfer(ctx, a.ID, recv)
		return err
	case "REPAIR":
		_, err = im.ledger.SendToRepair(ctx, a.ID, d)
		return err
	case "REPAIRED":
		_, err = im.ledger.CompleteRepair(ctx, a.ID, d)
		return err
	case "RETIRE":
		_, err = im.ledger.Retire(ctx, a.ID, d)
		return err
	}
	return apperr.Invalid("unknown action %q", r.get(colAction))
}

// branch finds a branch by name, creating it when missing
func (im *Importer) branch(ctx context.Context, name string) (*models.Branch, error) {
	if name == "" {
		return nil, apperr.Invalid("%s is required for this action", colBranch)
	}
	b := models.Branch{}
	err := im.db.WithContext(ctx).Where(models.Branch{Name: name}).
		Attrs(models.Branch{Location: name}).FirstOrCreate(&b).Error
	if err != nil {
		return nil, apperr.Internal(err, fmt.Sprintf("could not load branch %s", name))
	}
	return &b, nil
}

// employee finds an employee by id, creating it when missing
func (im *Importer) employee(ctx context.Context, empID, name string, branchID *uint) (*models.Employee, error) {
	if empID == "" {
		return nil, apperr.Invalid("%s is required for this action", colEmpID)
	}
	if name == "" {
		name = empID
	}
	e := models.Employee{}
	err := im.db.WithContext(ctx).Where(models.Employee{EmpID: empID}).
		Attrs(models.Employee{Name: name, Status: models.EmployeeActive, BranchID: branchID}).
		FirstOrCreate(&e).Error
	if err != nil {
		return nil, apperr.Internal(err, fmt.Sprintf("could not load employee %s", empID))
	}
	return &e, nil
}

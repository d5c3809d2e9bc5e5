// Package ledger owns asset custody: every change to an asset's status, branch,
// holder or tag goes through a Writer, which bumps the asset version and appends
// exactly one history entry in the same transaction.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

// EventType names a ledger notification
type EventType string

const (
	EventAppended EventType = "history.appended"
	EventReverted EventType = "history.reverted"
)

// Event is published after a ledger transaction commits
type Event struct {
	Type         EventType            `json:"type"`
	AssetID      uint                 `json:"assetId"`
	Entry        *models.AssetHistory `json:"entry,omitempty"`
	AssetDeleted bool                 `json:"assetDeleted,omitempty"`
}

// Notifier receives committed ledger events
type Notifier interface {
	Notify(ev Event)
}

// DocumentRemover deletes stored proof documents
type DocumentRemover interface {
	Delete(ctx context.Context, ref string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// Service applies ledger operations
type Service struct {
	db       *gorm.DB
	docs     DocumentRemover
	notifier Notifier
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithDocuments lets Revert clean up proof documents
func WithDocuments(d DocumentRemover) Option {
	return func(s *Service) { s.docs = d }
}

// WithNotifier publishes committed events
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the entry timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger service
func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		notifier: nopNotifier{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Details are the caller-supplied parts of a history entry
type Details struct {
	ActorID     *uint
	Notes       string
	Courier     string
	DocumentRef *string
	// At backdates the entry; zero means now. Used by the history importer.
	At time.Time
}

// Entry describes one history row to append
type Entry struct {
	Action models.Action
	From   string
	To     string
	Details
}

// Writer mutates assets inside one ledger transaction
type Writer struct {
	tx     *gorm.DB
	s      *Service
	events []Event
}

// Tx runs fn in a database transaction. Events recorded by the writer are
// published only if the transaction commits.
func (s *Service) Tx(ctx context.Context, fn func(w *Writer) error) error {
	w := &Writer{s: s}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w.tx = tx
		w.events = nil
		return fn(w)
	})
	if err != nil {
		return err
	}

	log := utils.LoggerFromContext(ctx)
	for _, ev := range w.events {
		fields := logrus.Fields{"asset_id": ev.AssetID, "event": ev.Type}
		if ev.Entry != nil {
			fields["action"] = ev.Entry.Action
			fields["status"] = ev.Entry.PostActionStatus
			if ev.Entry.CreatedByUserID != nil {
				fields["actor"] = *ev.Entry.CreatedByUserID
			}
		}
		log.WithFields(fields).Info("ledger updated")
		s.notifier.Notify(ev)
	}
	return nil
}

// DB exposes the transaction for reads and writes to non-asset tables
func (w *Writer) DB() *gorm.DB {
	return w.tx
}

// Asset loads an asset by id
func (w *Writer) Asset(id uint) (*models.Asset, error) {
	var a models.Asset
	if err := w.tx.First(&a, id).Error; err != nil {
		return nil, apperr.FromDB(err, "asset")
	}
	return &a, nil
}

// AssetBySerial loads an asset by serial number
func (w *Writer) AssetBySerial(serial string) (*models.Asset, error) {
	var a models.Asset
	if err := w.tx.Where("serial_number = ?", serial).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("asset with serial %s not found", serial)
		}
		return nil, apperr.FromDB(err, "asset")
	}
	return &a, nil
}

func (w *Writer) branch(id uint) (*models.Branch, error) {
	var b models.Branch
	if err := w.tx.First(&b, id).Error; err != nil {
		return nil, apperr.FromDB(err, "branch")
	}
	return &b, nil
}

func (w *Writer) employee(id uint) (*models.Employee, error) {
	var e models.Employee
	if err := w.tx.First(&e, id).Error; err != nil {
		return nil, apperr.FromDB(err, "employee")
	}
	return &e, nil
}

// Save writes a's mutable columns if its version is still current. It does
// not append history; callers that change custody must use Append.
func (w *Writer) Save(a *models.Asset) error {
	res := w.tx.Model(&models.Asset{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]interface{}{
			"status":              string(a.Status),
			"current_branch_id":   a.CurrentBranchID,
			"current_employee_id": a.CurrentEmployeeID,
			"qr_code_hash":        a.QRCodeHash,
			"is_qr_active":        a.IsQRActive,
			"version":             a.Version + 1,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("QR tag is already bound to another asset")
		}
		return apperr.Internal(res.Error, "could not update asset")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("asset %s was changed by another request, reload and retry", a.SerialNumber)
	}
	a.Version++
	return nil
}

// Append persists a (creating it when it has no id yet) and records one
// history entry whose snapshot is a's resulting custody.
//
// An entry may not predate the asset's newest one. An explicit e.At that
// does is rejected; an unset one is clamped to the newest entry's time.
func (w *Writer) Append(a *models.Asset, e Entry) (*models.AssetHistory, error) {
	at := e.At.UTC()
	if e.At.IsZero() {
		at = w.s.now().UTC()
	}
	if a.ID != 0 {
		prev, err := latest(w.tx, a.ID)
		switch {
		case err == nil && at.Before(prev.Timestamp):
			if !e.At.IsZero() {
				return nil, apperr.InvalidTransition("entry dated %s is older than the latest entry of asset %s (%s)",
					at.Format(time.RFC3339), a.SerialNumber, prev.Timestamp.UTC().Format(time.RFC3339))
			}
			at = prev.Timestamp.UTC()
		case err != nil && apperr.KindOf(err) != apperr.KindNotFound:
			return nil, err
		}
	}

	if a.ID == 0 {
		a.Version = 1
		if err := w.tx.Create(a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperr.Conflict("serial number %s already exists", a.SerialNumber)
			}
			return nil, apperr.Internal(err, "could not create asset")
		}
	} else if err := w.Save(a); err != nil {
		return nil, err
	}

	h := &models.AssetHistory{
		AssetID:              a.ID,
		Action:               e.Action,
		FromDetail:           e.From,
		ToDetail:             e.To,
		CourierDetails:       e.Courier,
		Notes:                e.Notes,
		DocumentPath:         e.DocumentRef,
		Timestamp:            at,
		CreatedByUserID:      e.ActorID,
		PostActionStatus:     a.Status,
		PostActionBranchID:   copyID(a.CurrentBranchID),
		PostActionEmployeeID: copyID(a.CurrentEmployeeID),
	}
	if err := w.tx.Create(h).Error; err != nil {
		return nil, apperr.Internal(err, "could not record history")
	}
	w.events = append(w.events, Event{Type: EventAppended, AssetID: a.ID, Entry: h})
	return h, nil
}

func copyID(p *uint) *uint {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Get loads an asset with its branch and holder
func (s *Service) Get(ctx context.Context, id uint) (*models.Asset, error) {
	var a models.Asset
	err := s.db.WithContext(ctx).Preload("CurrentBranch").Preload("CurrentEmployee").First(&a, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "asset")
	}
	return &a, nil
}

// GetBySerial loads an asset by serial number
func (s *Service) GetBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	var a models.Asset
	err := s.db.WithContext(ctx).Preload("CurrentBranch").Preload("CurrentEmployee").
		Where("serial_number = ?", serial).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("asset with serial %s not found", serial)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "asset")
	}
	return &a, nil
}

// newestFirst orders history so ties on timestamp resolve to the later insert
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp DESC").Order("id DESC")
}

// History returns an asset's entries, newest first
func (s *Service) History(ctx context.Context, assetID uint) ([]models.AssetHistory, error) {
	var out []models.AssetHistory
	if err := newestFirst(s.db.WithContext(ctx)).Where("asset_id = ?", assetID).Find(&out).Error; err != nil {
		return nil, apperr.Internal(err, "could not load history")
	}
	return out, nil
}

func latest(db *gorm.DB, assetID uint) (*models.AssetHistory, error) {
	var h models.AssetHistory
	if err := newestFirst(db).Where("asset_id = ?", assetID).First(&h).Error; err != nil {
		return nil, apperr.FromDB(err, "history entry")
	}
	return &h, nil
}

// Package reports builds read-only views over assets and their ledger:
// filtered asset lists, dashboard counts, paginated history and scan logs.
package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"gorm.io/gorm"
)

const (
	// TransactionsPageSize is the page size of the transactions view
	TransactionsPageSize = 20
	// ScanLogPageSize is the page size of the scan history view
	ScanLogPageSize = 50
	recentLimit     = 10
)

// sortColumns maps public sort keys to SQL expressions
var sortColumns = map[string]string{
	"id":     "assets.id",
	"serial": "assets.serial_number",
	"model":  "assets.model",
	"status": "assets.status",
	"branch": "COALESCE(branches.name, '')",
	"holder": "COALESCE(employees.name, '')",
}

// Filter narrows and orders asset listings
type Filter struct {
	Status   models.AssetStatus
	BranchID *uint
	Search   string
	SortBy   string
	Order    string
}

// AssetRow is an asset with resolved names for display and export
type AssetRow struct {
	models.Asset
	BranchName  string     `json:"branchName"`
	HolderName  string     `json:"holderName"`
	HolderEmpID string     `json:"holderEmpId"`
	AllocatedAt *time.Time `json:"allocatedAt,omitempty"`
}

// HistoryRow is a ledger entry with resolved names
type HistoryRow struct {
	models.AssetHistory
	SerialNumber string `json:"serialNumber"`
	BranchName   string `json:"branchName,omitempty"`
	HolderName   string `json:"holderName,omitempty"`
	ActorName    string `json:"actorName,omitempty"`
}

// ScanLogRow is a scan attempt with the serial of the asset it hit
type ScanLogRow struct {
	models.ScanLog
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Page is one page of a listing
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
}

// Service answers reporting queries
type Service struct {
	db         *gorm.DB
	headOffice string
}

// NewService creates a reporting service. headOffice names the branch the
// dashboard counts separately; empty disables the split.
func NewService(db *gorm.DB, headOffice string) *Service {
	return &Service{db: db, headOffice: headOffice}
}

// filtered applies f to an assets query joined with branches and employees
func filtered(q *gorm.DB, f Filter) *gorm.DB {
	q = q.Joins("LEFT JOIN branches ON branches.id = assets.current_branch_id").
		Joins("LEFT JOIN employees ON employees.id = assets.current_employee_id")
	if f.Status != "" {
		q = q.Where("assets.status = ?", f.Status)
	}
	if f.BranchID != nil {
		q = q.Where("assets.current_branch_id = ?", *f.BranchID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(assets.serial_number) LIKE ? OR LOWER(assets.model) LIKE ? OR LOWER(COALESCE(employees.name, '')) LIKE ? OR LOWER(COALESCE(branches.name, '')) LIKE ?",
			like, like, like, like)
	}
	return q
}

func orderClause(f Filter) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns["id"]
	}
	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// Assets lists assets matching f with branch, holder and latest allocation date
func (s *Service) Assets(ctx context.Context, f Filter) ([]AssetRow, error) {
	var assets []models.Asset
	q := filtered(s.db.WithContext(ctx).Model(&models.Asset{}), f).
		Preload("CurrentBranch").Preload("CurrentEmployee").
		Order(orderClause(f)).Order("assets.id DESC")
	if err := q.Find(&assets).Error; err != nil {
		return nil, apperr.Internal(err, "could not list assets")
	}

	ids := make([]uint, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	allocated, err := s.allocationDates(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]AssetRow, len(assets))
	for i, a := range assets {
		rows[i] = AssetRow{Asset: a}
		if a.CurrentBranch != nil {
			rows[i].BranchName = a.CurrentBranch.Name
		}
		if a.CurrentEmployee != nil {
			rows[i].HolderName = a.CurrentEmployee.Name
			rows[i].HolderEmpID = a.CurrentEmployee.EmpID
		}
		if t, ok := allocated[a.ID]; ok {
			rows[i].AllocatedAt = &t
		}
	}
	return rows, nil
}

// allocationDates returns the newest Allocation timestamp per asset
func (s *Service) allocationDates(ctx context.Context, ids []uint) (map[uint]time.Time, error) {
	out := make(map[uint]time.Time)
	if len(ids) == 0 {
		return out, nil
	}
	var entries []models.AssetHistory
	err := s.db.WithContext(ctx).Select("asset_id", "timestamp").
		Where("action = ? AND asset_id IN ?", models.ActionAllocation, ids).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not load allocation dates")
	}
	for _, h := range entries {
		if cur, ok := out[h.AssetID]; !ok || h.Timestamp.After(cur) {
			out[h.AssetID] = h.Timestamp
		}
	}
	return out, nil
}

// Counts tallies assets by status
type Counts struct {
	Total    int64                        `json:"total"`
	ByStatus map[models.AssetStatus]int64 `json:"byStatus"`
}

// Dashboard is the landing page summary
type Dashboard struct {
	All            Counts       `json:"all"`
	HeadOfficeName string       `json:"headOfficeName,omitempty"`
	HeadOffice     *Counts      `json:"headOffice,omitempty"`
	Branches       *Counts      `json:"branches,omitempty"`
	Recent         []HistoryRow `json:"recent"`
}

// Dashboard counts assets per status and lists the newest ledger entries.
// When a head office is configured and exists, counts are also split between
// it and every other branch.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	var err error
	if d.All, err = s.count(ctx, nil); err != nil {
		return nil, err
	}

	if s.headOffice != "" {
		var hq models.Branch
		err := s.db.WithContext(ctx).Where("name = ?", s.headOffice).First(&hq).Error
		switch {
		case err == nil:
			d.HeadOfficeName = hq.Name
			ho, err := s.count(ctx, func(q *gorm.DB) *gorm.DB {
				return q.Where("current_branch_id = ?", hq.ID)
			})
			if err != nil {
				return nil, err
			}
			rest, err := s.count(ctx, func(q *gorm.DB) *gorm.DB {
				return q.Where("current_branch_id IS NULL OR current_branch_id <> ?", hq.ID)
			})
			if err != nil {
				return nil, err
			}
			d.HeadOffice, d.Branches = &ho, &rest
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.Internal(err, "could not load head office")
		}
	}

	if d.Recent, err = s.historyRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Limit(recentLimit)
	}); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) count(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (Counts, error) {
	c := Counts{ByStatus: make(map[models.AssetStatus]int64, len(models.AllStatuses))}
	for _, st := range models.AllStatuses {
		c.ByStatus[st] = 0
	}
	var rows []struct {
		Status string
		N      int64
	}
	q := s.db.WithContext(ctx).Model(&models.Asset{}).Select("status, COUNT(*) AS n").Group("status")
	if scope != nil {
		q = scope(q)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return c, apperr.Internal(err, "could not count assets")
	}
	for _, r := range rows {
		c.ByStatus[models.AssetStatus(r.Status)] = r.N
		c.Total += r.N
	}
	return c, nil
}

// Transactions pages through every ledger entry, newest first
func (s *Service) Transactions(ctx context.Context, page int) (*Page[HistoryRow], error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.AssetHistory{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal(err, "could not count history")
	}
	p := newPage[HistoryRow](page, TransactionsPageSize, total)
	rows, err := s.historyRows(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize)
	})
	if err != nil {
		return nil, err
	}
	p.Items = rows
	return p, nil
}

// ScanLogs pages through scan attempts, newest first
func (s *Service) ScanLogs(ctx context.Context, page int) (*Page[ScanLogRow], error) {
	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.ScanLog{}).Count(&total).Error; err != nil {
		return nil, apperr.Internal(err, "could not count scan logs")
	}
	p := newPage[ScanLogRow](page, ScanLogPageSize, total)

	var logs []models.ScanLog
	err := db.Order("scanned_at DESC").Order("id DESC").
		Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize).Find(&logs).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not list scan logs")
	}

	var ids []uint
	for _, l := range logs {
		if l.AssetID != nil {
			ids = append(ids, *l.AssetID)
		}
	}
	serials := make(map[uint]string)
	if len(ids) > 0 {
		var assets []models.Asset
		if err := db.Select("id", "serial_number").Where("id IN ?", ids).Find(&assets).Error; err != nil {
			return nil, apperr.Internal(err, "could not load scanned assets")
		}
		for _, a := range assets {
			serials[a.ID] = a.SerialNumber
		}
	}

	p.Items = make([]ScanLogRow, len(logs))
	for i, l := range logs {
		p.Items[i] = ScanLogRow{ScanLog: l}
		if l.AssetID != nil {
			p.Items[i].SerialNumber = serials[*l.AssetID]
		}
	}
	return p, nil
}

func newPage[T any](page, size int, total int64) *Page[T] {
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return &Page[T]{Page: page, PageSize: size, Total: total, Pages: pages, Items: []T{}}
}

// historyRows loads ledger entries newest first with names resolved
func (s *Service) historyRows(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]HistoryRow, error) {
	db := s.db.WithContext(ctx)
	var entries []models.AssetHistory
	q := db.Preload("Asset").Order("timestamp DESC").Order("id DESC")
	if scope != nil {
		q = scope(q)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, apperr.Internal(err, "could not load history")
	}
	n, err := loadNames(db)
	if err != nil {
		return nil, err
	}
	rows := make([]HistoryRow, len(entries))
	for i, h := range entries {
		rows[i] = n.row(h)
	}
	return rows, nil
}

// names resolves ids in history snapshots
type names struct {
	branches  map[uint]string
	employees map[uint]string
	users     map[uint]string
}

func loadNames(db *gorm.DB) (*names, error) {
	n := &names{
		branches:  make(map[uint]string),
		employees: make(map[uint]string),
		users:     make(map[uint]string),
	}
	var branches []models.Branch
	if err := db.Select("id", "name").Find(&branches).Error; err != nil {
		return nil, apperr.Internal(err, "could not load branches")
	}
	for _, b := range branches {
		n.branches[b.ID] = b.Name
	}
	var employees []models.Employee
	if err := db.Select("id", "name").Find(&employees).Error; err != nil {
		return nil, apperr.Internal(err, "could not load employees")
	}
	for _, e := range employees {
		n.employees[e.ID] = e.Name
	}
	var users []models.UserAuth
	if err := db.Select("id", "name").Find(&users).Error; err != nil {
		return nil, apperr.Internal(err, "could not load users")
	}
	for _, u := range users {
		n.users[u.ID] = u.Name
	}
	return n, nil
}

func (n *names) row(h models.AssetHistory) HistoryRow {
	r := HistoryRow{AssetHistory: h}
	if h.Asset != nil {
		r.SerialNumber = h.Asset.SerialNumber
	}
	if h.PostActionBranchID != nil {
		r.BranchName = n.branches[*h.PostActionBranchID]
	}
	if h.PostActionEmployeeID != nil {
		r.HolderName = n.employees[*h.PostActionEmployeeID]
	}
	if h.CreatedByUserID != nil {
		r.ActorName = n.users[*h.CreatedByUserID]
	}
	return r
}

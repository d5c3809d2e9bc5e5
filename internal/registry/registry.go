// Package registry manages branches and employees, the places and people
// assets move between.
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
	"gorm.io/gorm"
)

// StatusAll disables the employee status filter
const StatusAll = "All"

// Service manages branches and employees
type Service struct {
	db *gorm.DB
}

// NewService creates a registry service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateBranch adds a branch with a unique name
func (s *Service) CreateBranch(ctx context.Context, name, location string) (*models.Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("branch name is required")
	}
	b := &models.Branch{Name: name, Location: strings.TrimSpace(location)}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("branch %s already exists", name)
		}
		return nil, apperr.Internal(err, "could not create branch")
	}
	utils.LoggerFromContext(ctx).WithField("branch", b.Name).Info("branch created")
	return b, nil
}

// Branches lists branches by name
func (s *Service) Branches(ctx context.Context) ([]models.Branch, error) {
	var out []models.Branch
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, apperr.Internal(err, "could not list branches")
	}
	return out, nil
}

// Branch loads one branch
func (s *Service) Branch(ctx context.Context, id uint) (*models.Branch, error) {
	var b models.Branch
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, apperr.FromDB(err, "branch")
	}
	return &b, nil
}

// EmployeeInput registers an employee
type EmployeeInput struct {
	EmpID    string `json:"empId"`
	Name     string `json:"name"`
	BranchID *uint  `json:"branchId"`
}

// CreateEmployee adds an active employee. The branch is optional but must
// exist when given.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*models.Employee, error) {
	empID, name := strings.TrimSpace(in.EmpID), strings.TrimSpace(in.Name)
	if empID == "" || name == "" {
		return nil, apperr.Invalid("employee id and name are required")
	}
	db := s.db.WithContext(ctx)
	if in.BranchID != nil {
		if _, err := s.Branch(ctx, *in.BranchID); err != nil {
			return nil, err
		}
	}
	e := &models.Employee{EmpID: empID, Name: name, Status: models.EmployeeActive, BranchID: in.BranchID}
	if err := db.Create(e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("employee id %s already exists", empID)
		}
		return nil, apperr.Internal(err, "could not create employee")
	}
	utils.LoggerFromContext(ctx).WithField("emp_id", e.EmpID).Info("employee created")
	return e, nil
}

// EmployeeFilter narrows the employee list. An empty Status means active only.
type EmployeeFilter struct {
	Status string
	Search string
}

// Employees lists employees with their branch and held assets
func (s *Service) Employees(ctx context.Context, f EmployeeFilter) ([]models.Employee, error) {
	q := s.db.WithContext(ctx).Model(&models.Employee{}).
		Joins("LEFT JOIN branches ON branches.id = employees.branch_id").
		Preload("Branch").Preload("Assets").
		Order("employees.name").Order("employees.id")

	switch f.Status {
	case "":
		q = q.Where("employees.status = ?", models.EmployeeActive)
	case StatusAll:
	default:
		q = q.Where("employees.status = ?", f.Status)
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where(`LOWER(employees.name) LIKE ? OR LOWER(employees.emp_id) LIKE ? OR LOWER(COALESCE(branches.name, '')) LIKE ?
			OR EXISTS (SELECT 1 FROM assets WHERE assets.current_employee_id = employees.id
				AND (LOWER(assets.serial_number) LIKE ? OR LOWER(assets.model) LIKE ?))`,
			like, like, like, like, like)
	}

	var out []models.Employee
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal(err, "could not list employees")
	}
	return out, nil
}

// EmployeesByBranch lists the active employees of a branch
func (s *Service) EmployeesByBranch(ctx context.Context, branchID uint) ([]models.Employee, error) {
	var out []models.Employee
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchID, models.EmployeeActive).
		Order("name").Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not list employees")
	}
	return out, nil
}

// EmployeeDetail is an employee with current assets and related history
type EmployeeDetail struct {
	Employee models.Employee       `json:"employee"`
	Assets   []models.Asset        `json:"assets"`
	History  []models.AssetHistory `json:"history"`
}

// Employee loads an employee with the assets they hold and every history
// entry that left an asset with them or names them.
func (s *Service) Employee(ctx context.Context, id uint) (*EmployeeDetail, error) {
	db := s.db.WithContext(ctx)
	var d EmployeeDetail
	if err := db.Preload("Branch").First(&d.Employee, id).Error; err != nil {
		return nil, apperr.FromDB(err, "employee")
	}
	if err := db.Preload("CurrentBranch").Where("current_employee_id = ?", id).
		Order("serial_number").Find(&d.Assets).Error; err != nil {
		return nil, apperr.Internal(err, "could not load assets")
	}
	label := "%" + d.Employee.Label() + "%"
	name := d.Employee.Name + "%"
	err := db.Preload("Asset").
		Where("post_action_employee_id = ? OR from_detail LIKE ? OR to_detail LIKE ? OR from_detail LIKE ?",
			id, label, label, name).
		Order("timestamp DESC").Order("id DESC").Find(&d.History).Error
	if err != nil {
		return nil, apperr.Internal(err, "could not load history")
	}
	return &d, nil
}

// Resign marks an employee inactive. It fails while they still hold assets.
func (s *Service) Resign(ctx context.Context, id uint) (*models.Employee, error) {
	var out *models.Employee
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Employee
		if err := tx.First(&e, id).Error; err != nil {
			return apperr.FromDB(err, "employee")
		}
		var held int64
		if err := tx.Model(&models.Asset{}).Where("current_employee_id = ?", id).Count(&held).Error; err != nil {
			return apperr.Internal(err, "could not count assets")
		}
		if held > 0 {
			return apperr.InvalidTransition("%s still holds %d asset(s), return them first", e.Label(), held)
		}
		if err := tx.Model(&e).Update("status", models.EmployeeInactive).Error; err != nil {
			return apperr.Internal(err, "could not update employee")
		}
		e.Status = models.EmployeeInactive
		out = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.LoggerFromContext(ctx).WithField("emp_id", out.EmpID).Info("employee resigned")
	return out, nil
}

// Activate marks an employee active again
func (s *Service) Activate(ctx context.Context, id uint) (*models.Employee, error) {
	db := s.db.WithContext(ctx)
	var e models.Employee
	if err := db.First(&e, id).Error; err != nil {
		return nil, apperr.FromDB(err, "employee")
	}
	if err := db.Model(&e).Update("status", models.EmployeeActive).Error; err != nil {
		return nil, apperr.Internal(err, "could not update employee")
	}
	e.Status = models.EmployeeActive
	return &e, nil
}

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/testutil"
)

func names(es []models.Employee) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name
	}
	return out
}

func TestBranches(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.CreateBranch(ctx, "Nairobi", "Westlands")
	require.NoError(t, err)
	_, err = svc.CreateBranch(ctx, " Kampala ", "")
	require.NoError(t, err)

	_, err = svc.CreateBranch(ctx, "Nairobi", "elsewhere")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	_, err = svc.CreateBranch(ctx, "  ", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	list, err := svc.Branches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Kampala", list[0].Name)
}

func TestCreateEmployee(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	b := testutil.Branch(t, db, "HQ")

	e, err := svc.CreateEmployee(ctx, EmployeeInput{EmpID: "E1", Name: "Alice", BranchID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeActive, e.Status)

	_, err = svc.CreateEmployee(ctx, EmployeeInput{EmpID: "E1", Name: "Other"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	missing := uint(99)
	_, err = svc.CreateEmployee(ctx, EmployeeInput{EmpID: "E2", Name: "Bob", BranchID: &missing})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.CreateEmployee(ctx, EmployeeInput{EmpID: "E3", Name: "Carol"})
	require.NoError(t, err, "branch is optional")
}

func TestEmployeesFilterAndSearch(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	l := ledger.NewService(db)
	ctx := context.Background()

	hq := testutil.Branch(t, db, "HQ")
	ksm := testutil.Branch(t, db, "Kisumu")
	alice := testutil.Employee(t, db, "E1", "Alice", hq)
	testutil.Employee(t, db, "E2", "Bob", ksm)
	carol := testutil.Employee(t, db, "E3", "Carol", nil)
	_, err := svc.Resign(ctx, carol.ID)
	require.NoError(t, err)

	a, err := l.Purchase(ctx, ledger.PurchaseInput{SerialNumber: "SN-777", Model: "ThinkPad", BranchID: hq.ID})
	require.NoError(t, err)
	_, err = l.Allocate(ctx, a.ID, alice.ID, ledger.Details{})
	require.NoError(t, err)

	list, err := svc.Employees(ctx, EmployeeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names(list))
	require.Len(t, list[0].Assets, 1)
	assert.Equal(t, "HQ", list[0].Branch.Name)

	list, err = svc.Employees(ctx, EmployeeFilter{Status: StatusAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(list))

	list, err = svc.Employees(ctx, EmployeeFilter{Status: string(models.EmployeeInactive)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, names(list))

	for q, want := range map[string][]string{
		"kisumu":   {"Bob"},
		"e1":       {"Alice"},
		"sn-777":   {"Alice"},
		"thinkpad": {"Alice"},
		"ALI":      {"Alice"},
		"zzz":      {},
	} {
		list, err = svc.Employees(ctx, EmployeeFilter{Search: q})
		require.NoError(t, err, q)
		assert.Equal(t, want, names(list), q)
	}

	byBranch, err := svc.EmployeesByBranch(ctx, ksm.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(byBranch))
}

func TestResignAndActivate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	l := ledger.NewService(db)
	ctx := context.Background()
	hq := testutil.Branch(t, db, "HQ")
	alice := testutil.Employee(t, db, "E1", "Alice", hq)

	a, err := l.Purchase(ctx, ledger.PurchaseInput{SerialNumber: "S1", BranchID: hq.ID})
	require.NoError(t, err)
	_, err = l.Allocate(ctx, a.ID, alice.ID, ledger.Details{})
	require.NoError(t, err)

	_, err = svc.Resign(ctx, alice.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	var stored models.Employee
	require.NoError(t, db.First(&stored, alice.ID).Error)
	assert.Equal(t, models.EmployeeActive, stored.Status)

	_, err = l.Return(ctx, a.ID, hq.ID, ledger.Details{})
	require.NoError(t, err)
	e, err := svc.Resign(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeInactive, e.Status)

	_, err = l.Allocate(ctx, a.ID, alice.ID, ledger.Details{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "inactive employees cannot receive assets")

	e, err = svc.Activate(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmployeeActive, e.Status)

	_, err = svc.Resign(ctx, 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestEmployeeDetail(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	l := ledger.NewService(db)
	ctx := context.Background()
	hq := testutil.Branch(t, db, "HQ")
	alice := testutil.Employee(t, db, "E1", "Alice", hq)
	bob := testutil.Employee(t, db, "E2", "Bob", hq)

	s1, err := l.Purchase(ctx, ledger.PurchaseInput{SerialNumber: "S1", BranchID: hq.ID})
	require.NoError(t, err)
	s2, err := l.Purchase(ctx, ledger.PurchaseInput{SerialNumber: "S2", BranchID: hq.ID})
	require.NoError(t, err)
	_, err = l.Allocate(ctx, s1.ID, alice.ID, ledger.Details{})
	require.NoError(t, err)
	_, err = l.Allocate(ctx, s2.ID, alice.ID, ledger.Details{})
	require.NoError(t, err)
	_, err = l.Allocate(ctx, s2.ID, bob.ID, ledger.Details{})
	require.NoError(t, err)

	d, err := svc.Employee(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", d.Employee.Name)
	require.Len(t, d.Assets, 1)
	assert.Equal(t, "S1", d.Assets[0].SerialNumber)
	require.Len(t, d.History, 3, "two allocations to Alice plus the handover to Bob")
	assert.Equal(t, "S2", d.History[0].Asset.SerialNumber)

	_, err = svc.Employee(ctx, 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/database"
	"github.com/xelth-com/assetledger/internal/models"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory SQLite database. The pool is pinned to one
// connection so every query sees the same in-memory schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(true))
	require.NoError(t, err, "open test db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db), "migrate test db")
	return db
}

// Branch inserts a branch named name
func Branch(t *testing.T, db *gorm.DB, name string) *models.Branch {
	t.Helper()
	b := &models.Branch{Name: name, Location: name}
	require.NoError(t, db.Create(b).Error)
	return b
}

// Employee inserts an active employee, optionally attached to a branch
func Employee(t *testing.T, db *gorm.DB, empID, name string, branch *models.Branch) *models.Employee {
	t.Helper()
	e := &models.Employee{EmpID: empID, Name: name, Status: models.EmployeeActive}
	if branch != nil {
		e.BranchID = &branch.ID
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// User inserts a user with the given role. The password is not usable for login.
func User(t *testing.T, db *gorm.DB, email string, role models.Role) *models.UserAuth {
	t.Helper()
	u := &models.UserAuth{Email: email, Name: email, Password: "x", Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/testutil"
	"github.com/xelth-com/assetledger/internal/utils"
)

const secret = "test-secret"

func TestCreateAndAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, secret)
	ctx := context.Background()

	u, err := svc.Create(ctx, UserInput{Email: " Ops@Example.com ", Name: "Ops", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "correct horse", u.Password)

	token, got, err := svc.Authenticate(ctx, "OPS@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLogin)

	claims, err := utils.ValidateToken(token, secret)
	require.NoError(t, err)
	id, ok := utils.ClaimUserID(claims)
	require.True(t, ok)
	assert.Equal(t, u.ID, id)

	_, _, err = svc.Authenticate(ctx, "ops@example.com", "wrong password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, _, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestCreateValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, secret)
	ctx := context.Background()

	_, err := svc.Create(ctx, UserInput{Email: "nope", Password: "longenough"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Create(ctx, UserInput{Email: "a@b.c", Password: "short"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Create(ctx, UserInput{Email: "a@b.c", Password: "longenough", Role: "root"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = svc.Create(ctx, UserInput{Email: "a@b.c", Password: "longenough"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UserInput{Email: "A@b.c", Password: "longenough"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestDeleteAndResetPassword(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, secret)
	ctx := context.Background()
	admin := testutil.User(t, db, "admin@example.com", models.RoleAdmin)
	staff, err := svc.Create(ctx, UserInput{Email: "staff@example.com", Password: "first-password"})
	require.NoError(t, err)

	err = svc.Delete(ctx, admin.ID, admin.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	require.NoError(t, svc.ResetPassword(ctx, staff.ID, "second-password"))
	_, _, err = svc.Authenticate(ctx, "staff@example.com", "first-password")
	assert.Error(t, err)
	_, _, err = svc.Authenticate(ctx, "staff@example.com", "second-password")
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.ResetPassword(ctx, 404, "whatever-long"), apperr.ErrNotFound))

	require.NoError(t, svc.Delete(ctx, admin.ID, staff.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, admin.ID, staff.ID), apperr.ErrNotFound))

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, admin.ID, users[0].ID)
}

func TestEnsureAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, secret)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root@example.com", "Root", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "root@example.com", "Root", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)

	_, u, err := svc.Authenticate(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}

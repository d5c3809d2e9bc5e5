package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindSentinels(t *testing.T) {
	err := NotFound("asset %d not found", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "asset 7 not found", err.Error())

	wrapped := fmt.Errorf("allocate: %w", InvalidTransition("asset is retired"))
	assert.True(t, errors.Is(wrapped, ErrInvalidTransition))
	assert.Equal(t, KindInvalidTransition, KindOf(wrapped))
	assert.Equal(t, "asset is retired", Message(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x"):                  http.StatusNotFound,
		Conflict("x"):                  http.StatusConflict,
		InvalidTransition("x"):         http.StatusUnprocessableEntity,
		Unauthorized("x"):              http.StatusForbidden,
		Invalid("x"):                   http.StatusBadRequest,
		errors.New("boom"):             http.StatusInternalServerError,
		Internal(errors.New("db"), ""): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"), "could not save asset")
	assert.Equal(t, "could not save asset", Message(err))
	assert.Equal(t, "Internal server error", Message(errors.New("raw")))
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB(nil, "asset"))
	assert.True(t, errors.Is(FromDB(gorm.ErrRecordNotFound, "asset"), ErrNotFound))
	assert.True(t, errors.Is(FromDB(gorm.ErrDuplicatedKey, "serial"), ErrConflict))
	assert.Equal(t, KindInternal, KindOf(FromDB(errors.New("disk full"), "asset")))

	orig := Conflict("taken")
	assert.Same(t, orig, FromDB(orig, "asset"))
}

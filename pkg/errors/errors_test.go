package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"wrapped forbidden", Wrap(Forbidden("no"), "ctx"), http.StatusForbidden},
		{"fmt wrapped", fmt.Errorf("outer: %w", NotFound("gone")), http.StatusNotFound},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, http.StatusBadRequest},
		{"unavailable", Unavailable("down"), http.StatusServiceUnavailable},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
		{"uncoded", New("no code"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB(nil, "crime"))

	err := FromDB(gorm.ErrRecordNotFound, "crime")
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	assert.Equal(t, "crime not found", err.Error())
	assert.True(t, Is(err, gorm.ErrRecordNotFound))

	err = FromDB(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "asset")
	assert.Equal(t, "asset already exists", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	other := stderrors.New("disk full")
	assert.Same(t, other, FromDB(other, "crime"))
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(Internal(stderrors.New("dsn=secret"))))
	assert.Equal(t, "internal server error", PublicMessage(stderrors.New("dsn=secret")))
	assert.Equal(t, "search is disabled", PublicMessage(Unavailable("search is disabled")))
	assert.Equal(t, "crime not found", PublicMessage(NotFound("crime not found")))
}

func TestWrapKeepsCodeAndCause(t *testing.T) {
	root := stderrors.New("root")
	err := Wrap(WithCode(http.StatusConflict, "conflict").WithContext("id", "7"), "save")
	assert.Equal(t, http.StatusConflict, GetCode(err))
	assert.Equal(t, "save", err.Error())
	assert.Nil(t, Wrap(nil, "x"))

	wrapped := Wrap(root, "outer")
	assert.Same(t, root, Cause(wrapped))
	assert.Equal(t, 0, GetCode(wrapped))
	assert.NotEmpty(t, GetStack(wrapped))

	formatted := Wrapf(NotFound("gone"), "read attachment %d failed", 3)
	assert.Equal(t, "read attachment 3 failed", formatted.Error())
	assert.Equal(t, http.StatusNotFound, GetCode(formatted))
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("user %s not found", "u1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("follow: %w", AlreadyActive("already following"))
	assert.True(t, errors.Is(wrapped, ErrAlreadyActive))
	assert.Equal(t, KindAlreadyActive, KindOf(wrapped))
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable(cause, "load following")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.Equal(t, "load following", PublicMessage(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x"):                     http.StatusNotFound,
		SelfReference("x"):                http.StatusBadRequest,
		Validation("x"):                   http.StatusBadRequest,
		AlreadyActive("x"):                http.StatusConflict,
		AlreadyInactive("x"):              http.StatusConflict,
		Unavailable(errors.New("x"), "x"): http.StatusServiceUnavailable,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
	assert.Equal(t, ErrInternal.Message, PublicMessage(errors.New("db password wrong")))
}

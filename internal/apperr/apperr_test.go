package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessageKeepsIdentity(t *testing.T) {
	err := ErrNotFound.WithMessage("file %q not found", "main.go")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, `file "main.go" not found`, MessageOf(err))
	assert.Equal(t, "NOT_FOUND", CodeOf(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	// The sentinel itself is untouched.
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := ErrUpstreamUnavailable.Wrap(cause)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrappedThroughFmt(t *testing.T) {
	err := fmt.Errorf("analysis failed: %w", ErrProviderRateLimited)

	assert.Equal(t, "RATE_LIMITED", CodeOf(err))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(err))
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := errors.New("something broke")

	assert.Equal(t, "INTERNAL", CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, "internal error", MessageOf(err))
}

func TestIsMatchesByCode(t *testing.T) {
	a := &Error{Code: "NOT_FOUND", Message: "a", Status: http.StatusNotFound}
	assert.ErrorIs(t, a, ErrNotFound)
	assert.NotErrorIs(t, a, ErrValidation)
}

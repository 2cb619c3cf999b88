package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"mangashelf-backend/internal/apperrors"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", apperrors.NotFound("order %d not found", 9))

	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(wrapped))
	assert.True(t, apperrors.Is(wrapped, apperrors.KindNotFound))
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(errors.New("boom")))
	assert.False(t, apperrors.Is(nil, apperrors.KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(apperrors.NotFound("x")))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(apperrors.Validation("x")))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(apperrors.BusinessRule("x")))
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(apperrors.IO(errors.New("disk"), "x")))
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(errors.New("x")))
}

func TestMessage(t *testing.T) {
	cause := errors.New("connection reset")

	assert.Equal(t, "order is already paid", apperrors.Message(apperrors.BusinessRule("order is already paid")))
	assert.Equal(t, "failed to write page: connection reset", apperrors.Message(apperrors.IO(cause, "failed to write page")))
	assert.Equal(t, "failed to load order", apperrors.Message(apperrors.Internal(cause, "failed to load order")))
	assert.Equal(t, "internal server error", apperrors.Message(cause))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := apperrors.IO(cause, "failed to stage page")

	assert.ErrorIs(t, err, cause)
}

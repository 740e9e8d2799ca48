package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "student not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "student not found", err.Error())
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrappedCloneStillMatches(t *testing.T) {
	err := fmt.Errorf("enroll: %w", Clone(ErrConflict, "already enrolled"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, http.StatusConflict, FromError(err).Status)
}

func TestStorageWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause, "courses")

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to persist courses: disk full", err.Error())
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Nil(t, FromError(nil))
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundWraps(t *testing.T) {
	err := NotFound("draft", "form_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "form_1")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []string{"supervisorName", "staffName"}, Signatures: []string{"staff"}}
	assert.Equal(t, "missing required fields: supervisorName, staffName; missing signatures: staff", err.Error())
	assert.False(t, err.Empty())
	assert.True(t, (&ValidationError{}).Empty())
}

func TestWrappedFailuresUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	var sf *StorageFailure
	err := fmt.Errorf("save: %w", &StorageFailure{Op: "set", Key: "jane_formList", Err: cause})
	assert.True(t, errors.As(err, &sf))
	assert.ErrorIs(t, err, cause)

	var rf *RenderFailure
	err = &RenderFailure{SectionID: "ipos-section", Err: cause}
	assert.True(t, errors.As(err, &rf))
	assert.Equal(t, "ipos-section", rf.SectionID)
}

package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation(t *testing.T) {
	err := Validation("batch_size", "must be in [%d, %d]", 1, 1024)
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestAs_NonCoordinatorError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

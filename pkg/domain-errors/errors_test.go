package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNotFound, "no such property")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("service: %w", New(CodeUnauthorized, "not the owner"))
		assert.True(t, HasCode(err, CodeUnauthorized))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("preserves cause chain", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load property")
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestCodeOf(t *testing.T) {
	t.Run("defaults to internal for uncoded errors", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("returns carried code", func(t *testing.T) {
		assert.Equal(t, CodeInvalidInput, CodeOf(New(CodeInvalidInput, "description too long")))
	})
}

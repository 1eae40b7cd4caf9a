package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "fitFold")
		panic("boom")
	}

	err := fn()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "fitFold", panicErr.Operation)
	assert.Equal(t, "boom", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original")
	fn := func() (err error) {
		defer Recover(&err, "Save")
		err = original
		panic("late panic")
	}

	err := fn()
	require.Error(t, err)
	assert.True(t, Is(err, original))
	assert.Contains(t, err.Error(), "late panic")
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("ok", func() error { return nil }))
	})

	t.Run("function error", func(t *testing.T) {
		want := fmt.Errorf("failed")
		assert.Equal(t, want, SafeExecute("err", func() error { return want }))
	})

	t.Run("panic", func(t *testing.T) {
		err := SafeExecute("index", func() error {
			var s []int
			_ = s[3]
			return nil
		})
		var panicErr *PanicError
		assert.True(t, As(err, &panicErr))
	})
}

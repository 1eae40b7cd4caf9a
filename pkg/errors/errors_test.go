package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "GridSearchCV.Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "mlbench: GridSearchCV.Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "mlbench: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"))

			var modelErr *ModelError
			require.True(t, As(err, &modelErr))
			assert.Equal(t, tt.op, modelErr.Op)
		})
	}
}

func TestModelErrorUnwrap(t *testing.T) {
	err := NewModelError("Save", "write failed", ErrNotFound)
	assert.True(t, Is(err, ErrNotFound))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 3, 2, 1)
	assert.Equal(t, "mlbench: Predict: dimension mismatch on axis 1 (features). Expected 3, got 2", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "Predict")
	assert.Contains(t, err.Error(), "RandomForestClassifier")
	assert.Contains(t, err.Error(), "Predict()")

	var nfErr *NotFittedError
	assert.True(t, As(err, &nfErr))
}

func TestNewPathError(t *testing.T) {
	err := NewPathError("NewHDDDataset", "/nope", "no dataset found at path")
	assert.Equal(t, "mlbench: NewHDDDataset: no dataset found at path: /nope", err.Error())

	var pathErr *PathError
	require.True(t, As(err, &pathErr))
	assert.Equal(t, "/nope", pathErr.Path)
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewResultsPathWarning("/tmp/x", "path already exists and is not empty"))
	require.Len(t, got, 1)
	assert.Equal(t, "path already exists and is not empty: /tmp/x", got[0].Error())
}

func TestWarnPrefersZerolog(t *testing.T) {
	var handled, zl int
	SetWarningHandler(func(error) { handled++ })
	SetZerologWarnFunc(func(error) { zl++ })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "constant y_true", 0))
	assert.Equal(t, 0, handled)
	assert.Equal(t, 1, zl)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading dataset")
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Equal(t, "loading dataset: empty data", wrapped.Error())

	wrappedf := Wrapf(ErrNotImplemented, "BaseResults.%s", "Save")
	assert.True(t, Is(wrappedf, ErrNotImplemented))
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("ok", []float64{1, 2, 3}))

	err := CheckNumericalStability("SavePredictions", []float64{1, math.NaN()})
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 1, numErr.Iteration)
}

func TestLogSumExp(t *testing.T) {
	got := LogSumExp([]float64{1000, 1000})
	assert.InDelta(t, 1000+math.Log(2), got, 1e-9)
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
}

type denseRows [][]float64

func (d denseRows) Dims() (int, int) { return len(d), len(d[0]) }
func (d denseRows) At(i, j int) float64 { return d[i][j] }

func TestCheckMatrix(t *testing.T) {
	assert.NoError(t, CheckMatrix("proba", denseRows{{0.2, 0.8}, {1, 0}}))

	err := CheckMatrix("proba", denseRows{{0.2, 0.8}, {math.NaN(), 1}})
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, "proba", numErr.Operation)

	assert.Error(t, CheckMatrix("proba", denseRows{{math.Inf(1), 0}}))
}

package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(xs ...float64) *mat.VecDense { return mat.NewVecDense(len(xs), xs) }

func TestRegressionMetrics(t *testing.T) {
	yTrue := vec(3, -0.5, 2, 7)
	yPred := vec(2.5, 0.0, 2, 8)

	mse, err := MSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	r2, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.948608, r2, 1e-6)
}

func TestRegressionMetricErrors(t *testing.T) {
	_, err := MSE(vec(1, 2), vec(1))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func TestR2ConstantTarget(t *testing.T) {
	r2, err := R2Score(vec(1, 1, 1), vec(1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	errors.SetWarningHandler(func(error) {})
	r2, err = R2Score(vec(1, 1, 1), vec(1, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
}

func TestAccuracyAndLogLoss(t *testing.T) {
	acc, err := AccuracyScore(vec(0, 1, 2, 1), vec(0, 1, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	proba := mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.2, 0.8,
	})
	loss, err := LogLoss(vec(0, 1), proba, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, -(math.Log(0.9)+math.Log(0.8))/2, loss, 1e-12)

	_, err = LogLoss(vec(0, 3), proba, []float64{0, 1})
	assert.Error(t, err)
}

func TestPairwiseMetric(t *testing.T) {
	score, err := MeanSquaredError.Compute([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 6})
	require.NoError(t, err)
	// losses 0,0,0,4: mean 1, sample std 2, stderr 2/sqrt(4)
	assert.InDelta(t, 1.0, score.Mean, 1e-12)
	assert.InDelta(t, 1.0, score.StdErr, 1e-12)

	score, err = Accuracy.Compute([]float64{1, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score.Mean, 1e-12)
	assert.True(t, Accuracy.GreaterIsBetter())
	assert.False(t, MeanAbsoluteError.GreaterIsBetter())

	_, err = Accuracy.Compute(nil, nil)
	assert.Error(t, err)
}

func TestScalarMetric(t *testing.T) {
	score, err := R2.Compute([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, Score{Mean: 1}, score)
}

func TestBaseMetricIsAbstract(t *testing.T) {
	m := NewBaseMetric("custom", map[string]interface{}{"beta": 2})
	assert.Equal(t, "custom", m.Name())
	assert.Equal(t, 2, m.Kwargs()["beta"])
	_, err := m.Compute([]float64{1}, []float64{1})
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
}

func TestGet(t *testing.T) {
	m, err := Get("mean_absolute_error")
	require.NoError(t, err)
	assert.Equal(t, "mean_absolute_error", m.Name())

	_, err = Get("f1")
	assert.Error(t, err)
	assert.Contains(t, Names(), "r2")
}

func TestMeanStdErr(t *testing.T) {
	s := MeanStdErr([]float64{0.5})
	assert.Equal(t, 0.5, s.Mean)
	assert.Equal(t, 0.0, s.StdErr)
	assert.True(t, math.IsNaN(MeanStdErr(nil).Mean))
}

package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Score is the mean and standard error of a metric over a prediction set.
type Score struct {
	Mean   float64
	StdErr float64
}

func (s Score) String() string {
	return fmt.Sprintf("%.4f (± %.4f)", s.Mean, s.StdErr)
}

// Metric is a scoring function used to evaluate saved predictions.
type Metric interface {
	// Name identifies the metric, e.g. "mean_squared_error".
	Name() string

	// Compute returns the mean and standard error of the metric.
	Compute(yTrue, yPred []float64) (Score, error)

	// GreaterIsBetter reports the direction of the metric.
	GreaterIsBetter() bool
}

// BaseMetric carries the name and keyword arguments shared by all metrics.
type BaseMetric struct {
	name   string
	kwargs map[string]interface{}
}

// NewBaseMetric creates a BaseMetric.
func NewBaseMetric(name string, kwargs map[string]interface{}) BaseMetric {
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	return BaseMetric{name: name, kwargs: kwargs}
}

// Name implements Metric.
func (m BaseMetric) Name() string { return m.name }

// Kwargs returns the keyword arguments the metric was created with.
func (m BaseMetric) Kwargs() map[string]interface{} { return m.kwargs }

// Compute is abstract on BaseMetric.
func (m BaseMetric) Compute(yTrue, yPred []float64) (Score, error) {
	return Score{}, errors.Wrapf(errors.ErrNotImplemented, "%s.Compute", m.name)
}

// GreaterIsBetter defaults to false; losses are the common case.
func (m BaseMetric) GreaterIsBetter() bool { return false }

// PairwiseMetric computes a per-sample loss and reports its mean and the
// standard error of the mean.
type PairwiseMetric struct {
	BaseMetric
	loss    func(yTrue, yPred float64) float64
	greater bool
}

// NewPairwiseMetric creates a metric from a per-sample loss function.
func NewPairwiseMetric(name string, loss func(yTrue, yPred float64) float64, greaterIsBetter bool) *PairwiseMetric {
	return &PairwiseMetric{BaseMetric: NewBaseMetric(name, nil), loss: loss, greater: greaterIsBetter}
}

// Compute implements Metric.
func (m *PairwiseMetric) Compute(yTrue, yPred []float64) (Score, error) {
	if err := checkSlices(m.Name(), yTrue, yPred); err != nil {
		return Score{}, err
	}

	losses := make([]float64, len(yTrue))
	for i := range yTrue {
		losses[i] = m.loss(yTrue[i], yPred[i])
	}
	return meanStdErr(losses), nil
}

// GreaterIsBetter implements Metric.
func (m *PairwiseMetric) GreaterIsBetter() bool { return m.greater }

// ScalarMetric wraps a whole-vector score such as R²; StdErr is zero.
type ScalarMetric struct {
	BaseMetric
	score   func(yTrue, yPred *mat.VecDense) (float64, error)
	greater bool
}

// NewScalarMetric creates a metric from a whole-vector scoring function.
func NewScalarMetric(name string, score func(yTrue, yPred *mat.VecDense) (float64, error), greaterIsBetter bool) *ScalarMetric {
	return &ScalarMetric{BaseMetric: NewBaseMetric(name, nil), score: score, greater: greaterIsBetter}
}

// Compute implements Metric.
func (m *ScalarMetric) Compute(yTrue, yPred []float64) (Score, error) {
	if err := checkSlices(m.Name(), yTrue, yPred); err != nil {
		return Score{}, err
	}
	v, err := m.score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
	if err != nil {
		return Score{}, err
	}
	return Score{Mean: v}, nil
}

// GreaterIsBetter implements Metric.
func (m *ScalarMetric) GreaterIsBetter() bool { return m.greater }

func checkSlices(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// meanStdErr returns the mean of xs and the standard error of that mean.
func meanStdErr(xs []float64) Score {
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 || math.IsNaN(std) {
		return Score{Mean: mean}
	}
	return Score{Mean: mean, StdErr: std / math.Sqrt(float64(len(xs)))}
}

// MeanStdErr summarizes a set of scores, e.g. one per CV fold.
func MeanStdErr(xs []float64) Score {
	if len(xs) == 0 {
		return Score{Mean: math.NaN(), StdErr: math.NaN()}
	}
	return meanStdErr(xs)
}

// Built-in metrics.
var (
	MeanSquaredError = NewPairwiseMetric("mean_squared_error", func(t, p float64) float64 {
		d := t - p
		return d * d
	}, false)

	MeanAbsoluteError = NewPairwiseMetric("mean_absolute_error", func(t, p float64) float64 {
		return math.Abs(t - p)
	}, false)

	Accuracy = NewPairwiseMetric("accuracy", func(t, p float64) float64 {
		if t == p {
			return 1
		}
		return 0
	}, true)

	ZeroOneLoss = NewPairwiseMetric("zero_one_loss", func(t, p float64) float64 {
		if t == p {
			return 0
		}
		return 1
	}, false)

	R2 = NewScalarMetric("r2", R2Score, true)
)

var registry = map[string]Metric{
	MeanSquaredError.Name():  MeanSquaredError,
	MeanAbsoluteError.Name(): MeanAbsoluteError,
	Accuracy.Name():          Accuracy,
	ZeroOneLoss.Name():       ZeroOneLoss,
	R2.Name():                R2,
}

// Get looks up a built-in metric by name.
func Get(name string) (Metric, error) {
	m, ok := registry[name]
	if !ok {
		return nil, errors.NewValidationError("metric", "unknown metric", name)
	}
	return m, nil
}

// Names returns the names of the built-in metrics in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

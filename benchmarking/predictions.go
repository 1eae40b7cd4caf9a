package benchmarking

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// Split identifies which side of an outer CV fold predictions were made on.
type Split string

const (
	Train Split = "train"
	Test  Split = "test"
)

// Validate returns an error unless s is Train or Test.
func (s Split) Validate() error {
	if s != Train && s != Test {
		return errors.NewValidationError("split", "must be \"train\" or \"test\"", string(s))
	}
	return nil
}

// ParseSplit converts a string to a Split.
func ParseSplit(s string) (Split, error) {
	split := Split(s)
	return split, split.Validate()
}

// Predictions is the persisted record of one strategy's predictions on one
// dataset for one fold and split.
type Predictions struct {
	StrategyName string
	DatasetName  string
	Index        []int
	YTrue        []float64
	YPred        []float64
	// YProba is nil for regressors.
	YProba *mat.Dense
	CVFold int
	Split  Split
}

// NewPredictions validates and assembles a Predictions record. A nil index
// defaults to 0..n-1.
func NewPredictions(strategy, dataset string, index []int, yTrue, yPred []float64, yProba *mat.Dense, cvFold int, split Split) (*Predictions, error) {
	const op = "NewPredictions"
	if strategy == "" {
		return nil, errors.NewValidationError("strategy_name", "must be a non-empty string", strategy)
	}
	if dataset == "" {
		return nil, errors.NewValidationError("dataset_name", "must be a non-empty string", dataset)
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}
	if cvFold < 0 {
		return nil, errors.NewValidationError("cv_fold", "must be non-negative", cvFold)
	}
	if len(yTrue) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	if index == nil {
		index = make([]int, len(yTrue))
		for i := range index {
			index[i] = i
		}
	} else if len(index) != len(yTrue) {
		return nil, errors.NewDimensionError(op, len(yTrue), len(index), 0)
	}
	for _, v := range yTrue {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError(op, "y_true contains NaN or Inf")
		}
	}
	for _, v := range yPred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError(op, "y_pred contains NaN or Inf")
		}
	}
	if yProba != nil {
		if r, _ := yProba.Dims(); r != len(yTrue) {
			return nil, errors.NewDimensionError(op, len(yTrue), r, 0)
		}
		if err := errors.CheckMatrix(op, yProba); err != nil {
			return nil, err
		}
	}

	return &Predictions{
		StrategyName: strategy,
		DatasetName:  dataset,
		Index:        index,
		YTrue:        yTrue,
		YPred:        yPred,
		YProba:       yProba,
		CVFold:       cvFold,
		Split:        split,
	}, nil
}

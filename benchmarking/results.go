package benchmarking

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

// Results stores the predictions and fitted strategies produced by an
// orchestration, together with a registry of the strategy and dataset
// names seen so far.
type Results interface {
	SavePredictions(strategy, dataset string, yTrue, yPred []float64, yProba *mat.Dense, index []int, cvFold int, split Split) error
	// LoadPredictions returns the predictions of every registered
	// (strategy, dataset) pair that exist for the fold and split.
	LoadPredictions(cvFold int, split Split) ([]*Predictions, error)
	CheckPredictionsExist(strategy, dataset string, cvFold int, split Split) (bool, error)

	SaveFittedStrategy(strategy Strategy, dataset string, cvFold int) error
	LoadFittedStrategy(strategy, dataset string, cvFold int) (*model_selection.GridSearchCV, error)
	CheckFittedStrategyExists(strategy, dataset string, cvFold int) (bool, error)

	// Save persists the registry.
	Save() error

	AppendKey(strategy, dataset string)
	StrategyNames() []string
	DatasetNames() []string
	CV() model_selection.Splitter
	SetCV(cv model_selection.Splitter)
	Iter() iter.Seq2[string, string]
	String() string
}

// BaseResults holds the registry shared by every Results implementation.
// Its storage methods are abstract.
type BaseResults struct {
	strategyNames []string
	datasetNames  []string
	cv            model_selection.Splitter
}

// NewBaseResults creates an empty registry.
func NewBaseResults() *BaseResults {
	return &BaseResults{}
}

// AppendKey registers a strategy and a dataset name, each at most once, in
// first-seen order.
func (r *BaseResults) AppendKey(strategy, dataset string) {
	if !slices.Contains(r.strategyNames, strategy) {
		r.strategyNames = append(r.strategyNames, strategy)
	}
	if !slices.Contains(r.datasetNames, dataset) {
		r.datasetNames = append(r.datasetNames, dataset)
	}
}

// StrategyNames returns a copy of the registered strategy names.
func (r *BaseResults) StrategyNames() []string { return slices.Clone(r.strategyNames) }

// DatasetNames returns a copy of the registered dataset names.
func (r *BaseResults) DatasetNames() []string { return slices.Clone(r.datasetNames) }

// CV returns the outer splitter, or nil before orchestration.
func (r *BaseResults) CV() model_selection.Splitter { return r.cv }

// SetCV records the outer splitter.
func (r *BaseResults) SetCV(cv model_selection.Splitter) { r.cv = cv }

// Iter yields every (strategy, dataset) pair of the registry with
// strategies in the outer loop.
func (r *BaseResults) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, s := range r.strategyNames {
			for _, d := range r.datasetNames {
				if !yield(s, d) {
					return
				}
			}
		}
	}
}

func (r *BaseResults) String() string { return r.describe("BaseResults") }

func (r *BaseResults) describe(typeName string) string {
	folds := 0
	if r.cv != nil {
		folds = r.cv.GetNSplits()
	}
	return fmt.Sprintf("%s(strategies=%s, datasets=%s, cv_folds=%d)",
		typeName, formatNames(r.strategyNames), formatNames(r.datasetNames), folds)
}

func formatNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Save does nothing; there is no storage to write to.
func (r *BaseResults) Save() error { return nil }

func (r *BaseResults) SavePredictions(_, _ string, _, _ []float64, _ *mat.Dense, _ []int, _ int, _ Split) error {
	return errors.Wrap(errors.ErrNotImplemented, "BaseResults.SavePredictions")
}

func (r *BaseResults) LoadPredictions(_ int, _ Split) ([]*Predictions, error) {
	return nil, errors.Wrap(errors.ErrNotImplemented, "BaseResults.LoadPredictions")
}

func (r *BaseResults) CheckPredictionsExist(_, _ string, _ int, _ Split) (bool, error) {
	return false, errors.Wrap(errors.ErrNotImplemented, "BaseResults.CheckPredictionsExist")
}

func (r *BaseResults) SaveFittedStrategy(_ Strategy, _ string, _ int) error {
	return errors.Wrap(errors.ErrNotImplemented, "BaseResults.SaveFittedStrategy")
}

func (r *BaseResults) LoadFittedStrategy(_, _ string, _ int) (*model_selection.GridSearchCV, error) {
	return nil, errors.Wrap(errors.ErrNotImplemented, "BaseResults.LoadFittedStrategy")
}

func (r *BaseResults) CheckFittedStrategyExists(_, _ string, _ int) (bool, error) {
	return false, errors.Wrap(errors.ErrNotImplemented, "BaseResults.CheckFittedStrategyExists")
}

// registry is the persisted form of the BaseResults fields.
type registry struct {
	StrategyNames []string
	DatasetNames  []string
	CV            model_selection.Splitter
}

func (r *BaseResults) snapshot() registry {
	return registry{
		StrategyNames: slices.Clone(r.strategyNames),
		DatasetNames:  slices.Clone(r.datasetNames),
		CV:            r.cv,
	}
}

func (r *BaseResults) restore(reg registry) {
	r.strategyNames = reg.StrategyNames
	r.datasetNames = reg.DatasetNames
	r.cv = reg.CV
}

// merge sets both name lists to the sorted union with the persisted
// registry. The current splitter wins; the persisted one is kept when none
// is set.
func (r *BaseResults) merge(persisted registry) {
	r.strategyNames = sortedUnion(r.strategyNames, persisted.StrategyNames)
	r.datasetNames = sortedUnion(r.datasetNames, persisted.DatasetNames)
	if r.cv == nil {
		r.cv = persisted.CV
	}
}

func sortedUnion(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

func validateKey(strategy, dataset string, cvFold int) error {
	for _, name := range []string{strategy, dataset} {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return errors.NewValidationError("name", "must be non-empty and contain no path separators", name)
		}
	}
	if cvFold < 0 {
		return errors.NewValidationError("cv_fold", "must be non-negative", cvFold)
	}
	return nil
}

package tree

import (
	"math"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// MaxFeatures controls how many features are examined when looking for the
// best split.
type MaxFeatures struct {
	Mode     string // "all", "sqrt", "log2", "auto", "count" or "fraction"
	Count    int
	Fraction float64
}

// AllFeatures examines every feature at every split.
var AllFeatures = MaxFeatures{Mode: "all"}

// ParseMaxFeatures converts a hyperparameter value into MaxFeatures.
// nil and "none" mean all features, an int is an absolute count and a float
// in (0, 1] is a fraction of the features.
func ParseMaxFeatures(value interface{}) (MaxFeatures, error) {
	switch v := value.(type) {
	case nil:
		return AllFeatures, nil
	case MaxFeatures:
		return v, nil
	case string:
		switch v {
		case "", "all", "none", "None":
			return AllFeatures, nil
		case "sqrt", "log2", "auto":
			return MaxFeatures{Mode: v}, nil
		}
	case int:
		if v > 0 {
			return MaxFeatures{Mode: "count", Count: v}, nil
		}
	case float64:
		if v > 0 && v <= 1 {
			return MaxFeatures{Mode: "fraction", Fraction: v}, nil
		}
	}
	return MaxFeatures{}, errors.NewValidationError("max_features", "must be nil, 'sqrt', 'log2', 'auto', a positive int or a float in (0, 1]", value)
}

// Param returns the value accepted by ParseMaxFeatures.
func (m MaxFeatures) Param() interface{} {
	switch m.Mode {
	case "count":
		return m.Count
	case "fraction":
		return m.Fraction
	case "sqrt", "log2", "auto":
		return m.Mode
	default:
		return nil
	}
}

// Resolve returns the number of features to examine, between 1 and nFeatures.
// "auto" means sqrt for classifiers and all features for regressors.
func (m MaxFeatures) Resolve(nFeatures int, classifier bool) int {
	k := nFeatures
	switch m.Mode {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "auto":
		if classifier {
			k = int(math.Sqrt(float64(nFeatures)))
		}
	case "count":
		k = m.Count
	case "fraction":
		k = int(m.Fraction * float64(nFeatures))
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k
}

// Params holds the hyperparameters shared by both tree estimators.
type Params struct {
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     MaxFeatures
	RandomState     int64
}

// Option configures a decision tree.
type Option func(*Params)

// WithCriterion sets the impurity criterion ("gini" / "entropy" for
// classifiers, "squared_error" for regressors).
func WithCriterion(criterion string) Option {
	return func(p *Params) { p.Criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *Params) { p.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features examined at each split.
func WithMaxFeatures(m MaxFeatures) Option {
	return func(p *Params) { p.MaxFeatures = m }
}

// WithRandomState sets the seed used for feature subsampling.
func WithRandomState(seed int64) Option {
	return func(p *Params) { p.RandomState = seed }
}

func defaultParams(criterion string) Params {
	return Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     AllFeatures,
	}
}

func (p *Params) get() map[string]interface{} {
	var maxDepth interface{}
	if p.MaxDepth > 0 {
		maxDepth = p.MaxDepth
	}
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         maxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures.Param(),
		"random_state":      int(p.RandomState),
	}
}

func (p *Params) set(modelName string, params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			p.Criterion, err = model.ParamString(key, value)
		case "max_depth":
			p.MaxDepth, err = model.ParamOptionalInt(key, value)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			p.MaxFeatures, err = ParseMaxFeatures(value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			p.RandomState = int64(seed)
		default:
			err = model.UnknownParam(modelName, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Params) validate(op string, criteria ...string) error {
	valid := false
	for _, c := range criteria {
		if p.Criterion == c {
			valid = true
		}
	}
	if !valid {
		return errors.NewValidationError("criterion", op+": unsupported criterion", p.Criterion)
	}
	if p.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", op+": must be >= 0", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", op+": must be >= 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", op+": must be >= 1", p.MinSamplesLeaf)
	}
	return nil
}

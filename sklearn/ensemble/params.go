// Package ensemble implements random forests, bagging and gradient boosting
// on top of the CART trees in sklearn/tree.
package ensemble

import (
	"sort"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
)

// Params holds the hyperparameters of every ensemble in this package. Each
// estimator only exposes the subset it uses through GetParams/SetParams.
type Params struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     tree.MaxFeatures
	Bootstrap       bool
	MaxSamples      float64 // fraction of samples drawn per member
	LearningRate    float64
	Subsample       float64
	NJobs           int // <= 0 uses all cores
	RandomState     int64
}

// Option configures an ensemble.
type Option func(*Params)

// WithNEstimators sets the number of members (trees or boosting stages).
func WithNEstimators(n int) Option {
	return func(p *Params) { p.NEstimators = n }
}

// WithCriterion sets the split criterion of the member trees.
func WithCriterion(criterion string) Option {
	return func(p *Params) { p.Criterion = criterion }
}

// WithMaxDepth limits the depth of the member trees. 0 means unlimited.
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
func WithMaxFeatures(m tree.MaxFeatures) Option {
	return func(p *Params) { p.MaxFeatures = m }
}

// WithBootstrap toggles sampling with replacement.
func WithBootstrap(bootstrap bool) Option {
	return func(p *Params) { p.Bootstrap = bootstrap }
}

// WithMaxSamples sets the fraction of samples drawn for each member.
func WithMaxSamples(fraction float64) Option {
	return func(p *Params) { p.MaxSamples = fraction }
}

// WithLearningRate sets the shrinkage applied to each boosting stage.
func WithLearningRate(lr float64) Option {
	return func(p *Params) { p.LearningRate = lr }
}

// WithSubsample sets the fraction of samples used to fit each boosting stage.
func WithSubsample(fraction float64) Option {
	return func(p *Params) { p.Subsample = fraction }
}

// WithNJobs sets the number of goroutines used to fit members.
func WithNJobs(n int) Option {
	return func(p *Params) { p.NJobs = n }
}

// WithRandomState sets the seed.
func WithRandomState(seed int64) Option {
	return func(p *Params) { p.RandomState = seed }
}

func (p *Params) value(key string) interface{} {
	switch key {
	case "n_estimators":
		return p.NEstimators
	case "criterion":
		return p.Criterion
	case "max_depth":
		if p.MaxDepth > 0 {
			return p.MaxDepth
		}
		return nil
	case "min_samples_split":
		return p.MinSamplesSplit
	case "min_samples_leaf":
		return p.MinSamplesLeaf
	case "max_features":
		return p.MaxFeatures.Param()
	case "bootstrap":
		return p.Bootstrap
	case "max_samples":
		return p.MaxSamples
	case "learning_rate":
		return p.LearningRate
	case "subsample":
		return p.Subsample
	case "n_jobs":
		return p.NJobs
	case "random_state":
		return int(p.RandomState)
	}
	return nil
}

func (p *Params) setValue(key string, value interface{}) error {
	var err error
	switch key {
	case "n_estimators":
		p.NEstimators, err = model.ParamInt(key, value)
	case "criterion":
		p.Criterion, err = model.ParamString(key, value)
	case "max_depth":
		p.MaxDepth, err = model.ParamOptionalInt(key, value)
	case "min_samples_split":
		p.MinSamplesSplit, err = model.ParamInt(key, value)
	case "min_samples_leaf":
		p.MinSamplesLeaf, err = model.ParamInt(key, value)
	case "max_features":
		p.MaxFeatures, err = tree.ParseMaxFeatures(value)
	case "bootstrap":
		p.Bootstrap, err = model.ParamBool(key, value)
	case "max_samples":
		p.MaxSamples, err = model.ParamFloat(key, value)
	case "learning_rate":
		p.LearningRate, err = model.ParamFloat(key, value)
	case "subsample":
		p.Subsample, err = model.ParamFloat(key, value)
	case "n_jobs":
		p.NJobs, err = model.ParamInt(key, value)
	case "random_state":
		var seed int
		seed, err = model.ParamInt(key, value)
		p.RandomState = int64(seed)
	}
	return err
}

// paramSet binds Params to the keys one estimator exposes.
type paramSet struct {
	modelName string
	keys      []string
}

func (s paramSet) get(p *Params) map[string]interface{} {
	out := make(map[string]interface{}, len(s.keys))
	for _, key := range s.keys {
		out[key] = p.value(key)
	}
	return out
}

func (s paramSet) set(p *Params, params map[string]interface{}) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !s.has(key) {
			return model.UnknownParam(s.modelName, key)
		}
		if err := p.setValue(key, params[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s paramSet) has(key string) bool {
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (p *Params) validate(op string) error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", op+": must be >= 1", p.NEstimators)
	}
	if p.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", op+": must be >= 0", p.MaxDepth)
	}
	if p.MaxSamples <= 0 || p.MaxSamples > 1 {
		return errors.NewValidationError("max_samples", op+": must be in (0, 1]", p.MaxSamples)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		return errors.NewValidationError("subsample", op+": must be in (0, 1]", p.Subsample)
	}
	if p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", op+": must be > 0", p.LearningRate)
	}
	return nil
}

func (p *Params) treeOptions(seed int64) []tree.Option {
	return []tree.Option{
		tree.WithCriterion(p.Criterion),
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithMaxFeatures(p.MaxFeatures),
		tree.WithRandomState(seed),
	}
}

func newParams(criterion string, maxFeatures tree.MaxFeatures, opts []Option) Params {
	p := Params{
		NEstimators:     100,
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     maxFeatures,
		Bootstrap:       true,
		MaxSamples:      1.0,
		LearningRate:    0.1,
		Subsample:       1.0,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

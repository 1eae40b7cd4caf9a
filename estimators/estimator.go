// Package estimators wraps the ensemble models behind a uniform contract:
// each estimator carries descriptive Properties, builds a hyperparameter grid
// search around its model and saves the fitted search to disk.
package estimators

import (
	"strings"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/shared/files"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

// Task is a kind of supervised learning problem.
type Task string

const (
	Classification Task = "classification"
	Regression     Task = "regression"
)

// Family groups estimators by method.
type Family string

const (
	EnsembleMethods Family = "ensemble_methods"
)

// Properties is the metadata attached to an estimator at construction.
type Properties struct {
	EstimatorFamily []Family
	Tasks           []Task
	Name            string
}

// Supports reports whether the estimator handles task.
func (p Properties) Supports(task Task) bool {
	for _, t := range p.Tasks {
		if t == task {
			return true
		}
	}
	return false
}

func (p Properties) String() string {
	families := make([]string, len(p.EstimatorFamily))
	for i, f := range p.EstimatorFamily {
		families[i] = string(f)
	}
	tasks := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		tasks[i] = string(t)
	}
	return p.Name + " [" + strings.Join(families, ",") + "] (" + strings.Join(tasks, ",") + ")"
}

// Estimator is the contract every benchmarked estimator implements.
type Estimator interface {
	// Properties returns the estimator's metadata.
	Properties() Properties

	// Build returns a grid search around a fresh model. A nil grid keeps the
	// current one, a non-nil grid replaces it.
	Build(hyperparameters model_selection.ParamGrid) (*model_selection.GridSearchCV, error)

	// Hyperparameters returns the grid the next Build will use.
	Hyperparameters() model_selection.ParamGrid

	// SetTrainedModel records the fitted search to be saved.
	SetTrainedModel(m *model_selection.GridSearchCV)

	// TrainedModel returns the fitted search, or nil.
	TrainedModel() *model_selection.GridSearchCV

	// Save persists the trained model under the estimator's display name
	// and returns the file path.
	Save(datasetName string) (string, error)

	// Load restores a model saved for datasetName.
	Load(datasetName string) error
}

// Option configures a BaseEstimator.
type Option func(*BaseEstimator)

// WithVerbose makes the grid search log every candidate.
func WithVerbose(verbose bool) Option {
	return func(b *BaseEstimator) { b.verbose = verbose }
}

// WithNJobs sets how many candidate fits run concurrently; <= 0 uses all cores.
func WithNJobs(n int) Option {
	return func(b *BaseEstimator) { b.nJobs = n }
}

// WithRefit controls whether the best candidate is refitted on all data.
func WithRefit(refit bool) Option {
	return func(b *BaseEstimator) { b.refit = refit }
}

// WithInnerCV sets the number of folds of the grid search.
func WithInnerCV(folds int) Option {
	return func(b *BaseEstimator) { b.innerCV = folds }
}

// WithDiskOperations sets where trained models are saved.
func WithDiskOperations(d *files.DiskOperations) Option {
	return func(b *BaseEstimator) { b.disk = d }
}

// WithHyperparameters replaces the default grid.
func WithHyperparameters(grid model_selection.ParamGrid) Option {
	return func(b *BaseEstimator) { b.hyperparameters = grid.Clone() }
}

// WithRandomState seeds the model and the inner cross-validation.
func WithRandomState(seed int) Option {
	return func(b *BaseEstimator) { b.randomState = &seed }
}

// BaseEstimator implements Estimator for a model constructor and a default grid.
type BaseEstimator struct {
	properties      Properties
	newModel        func() model.SKLearnCompatible
	hyperparameters model_selection.ParamGrid

	verbose     bool
	nJobs       int
	refit       bool
	innerCV     int
	randomState *int
	disk        *files.DiskOperations

	trainedModel *model_selection.GridSearchCV
}

// NewBaseEstimator creates a BaseEstimator. Defaults: all cores, refit,
// 5 inner folds and models saved under files.DefaultRoot.
func NewBaseEstimator(props Properties, newModel func() model.SKLearnCompatible, grid model_selection.ParamGrid, opts ...Option) *BaseEstimator {
	b := &BaseEstimator{
		properties:      props,
		newModel:        newModel,
		hyperparameters: grid,
		nJobs:           -1,
		refit:           true,
		innerCV:         5,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.disk == nil {
		b.disk = files.NewDiskOperations("")
	}
	return b
}

// Properties implements Estimator.
func (b *BaseEstimator) Properties() Properties { return b.properties }

// Hyperparameters implements Estimator. The returned grid is a copy.
func (b *BaseEstimator) Hyperparameters() model_selection.ParamGrid {
	return b.hyperparameters.Clone()
}

// Build implements Estimator.
func (b *BaseEstimator) Build(hyperparameters model_selection.ParamGrid) (*model_selection.GridSearchCV, error) {
	if hyperparameters != nil {
		b.hyperparameters = hyperparameters.Clone()
	}
	if err := b.hyperparameters.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s.Build", b.properties.Name)
	}

	est := b.newModel()
	seed := 0
	if b.randomState != nil {
		seed = *b.randomState
		if _, ok := est.GetParams()["random_state"]; ok {
			if err := est.SetParams(map[string]interface{}{"random_state": seed}); err != nil {
				return nil, err
			}
		}
	}

	var cv model_selection.Splitter
	if model.IsClassifier(est) {
		cv = model_selection.NewStratifiedKFold(b.innerCV, b.randomState != nil, seed)
	} else {
		cv = model_selection.NewKFold(b.innerCV, b.randomState != nil, seed)
	}

	return model_selection.NewGridSearchCV(est, b.hyperparameters.Clone(),
		model_selection.WithCV(cv),
		model_selection.WithNJobs(b.nJobs),
		model_selection.WithRefit(b.refit),
		model_selection.WithVerbose(b.verbose),
	), nil
}

// SetTrainedModel implements Estimator.
func (b *BaseEstimator) SetTrainedModel(m *model_selection.GridSearchCV) { b.trainedModel = m }

// TrainedModel implements Estimator.
func (b *BaseEstimator) TrainedModel() *model_selection.GridSearchCV { return b.trainedModel }

// Save implements Estimator.
func (b *BaseEstimator) Save(datasetName string) (string, error) {
	if b.trainedModel == nil {
		return "", errors.NewValueError(b.properties.Name+".Save", "no trained model; call SetTrainedModel first")
	}
	return b.disk.SaveModel(b.trainedModel, b.properties.Name, datasetName)
}

// Load implements Estimator.
func (b *BaseEstimator) Load(datasetName string) error {
	var search model_selection.GridSearchCV
	if err := b.disk.LoadModel(&search, b.properties.Name, datasetName); err != nil {
		return err
	}
	b.trainedModel = &search
	return nil
}

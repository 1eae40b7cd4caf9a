package estimators

import (
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/shared/files"
	"github.com/YuminosukeSato/mlbench/sklearn/ensemble"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDefaultGrids(t *testing.T) {
	tests := []struct {
		est  Estimator
		grid model_selection.ParamGrid
		task Task
	}{
		{NewRandomForestClassifier(), model_selection.ParamGrid{
			"n_estimators": {10, 20, 30},
			"max_features": {"auto", "sqrt", "log2", nil},
			"max_depth":    {5, 15, nil},
		}, Classification},
		{NewRandomForestRegressor(), model_selection.ParamGrid{
			"n_estimators": {10, 20, 30},
			"max_features": {"auto", "sqrt", "log2", nil},
			"max_depth":    {5, 15, nil},
		}, Regression},
		{NewBaggingClassifier(), model_selection.ParamGrid{"n_estimators": {10, 100, 1000, 2000}}, Classification},
		{NewBaggingRegressor(), model_selection.ParamGrid{"n_estimators": {10, 100, 1000, 2000}}, Regression},
		{NewGradientBoostingClassifier(), model_selection.ParamGrid{
			"n_estimators": {10, 100, 1000, 2000},
			"max_depth":    {10, 100},
		}, Classification},
		{NewGradientBoostingRegressor(), model_selection.ParamGrid{
			"n_estimators": {10, 100, 500},
			"max_depth":    {10, 100},
		}, Regression},
	}

	for _, tt := range tests {
		props := tt.est.Properties()
		t.Run(props.Name, func(t *testing.T) {
			assert.Equal(t, tt.grid, tt.est.Hyperparameters())
			assert.Equal(t, []Family{EnsembleMethods}, props.EstimatorFamily)
			assert.Equal(t, []Task{tt.task}, props.Tasks)
			assert.True(t, props.Supports(tt.task))

			search, err := tt.est.Build(nil)
			require.NoError(t, err)
			assert.Equal(t, tt.grid, search.ParamGrid)
			assert.True(t, search.Refit)
			assert.Equal(t, 5, search.CV.GetNSplits())
			assert.Equal(t, tt.task == Classification, search.IsClassifier())
		})
	}
}

func TestBaggingRegressorUsesRegressionTrees(t *testing.T) {
	search, err := NewBaggingRegressor().Build(nil)
	require.NoError(t, err)
	bagging, ok := search.Estimator.(*ensemble.BaggingRegressor)
	require.True(t, ok)
	_, ok = bagging.BaseEstimator.(*tree.DecisionTreeRegressor)
	assert.True(t, ok)
}

func TestBuildReplacesGrid(t *testing.T) {
	est := NewRandomForestClassifier()
	custom := model_selection.ParamGrid{"n_estimators": {5}}

	search, err := est.Build(custom)
	require.NoError(t, err)
	assert.Equal(t, custom, search.ParamGrid)

	// the replacement sticks for later builds
	search, err = est.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, custom, search.ParamGrid)

	_, err = est.Build(model_selection.ParamGrid{"n_estimators": {}})
	assert.Error(t, err)
}

func TestHyperparametersReturnsCopy(t *testing.T) {
	est := NewRandomForestRegressor(WithHyperparameters(model_selection.ParamGrid{"n_estimators": {5, 10}}))

	grid := est.Hyperparameters()
	grid["n_estimators"][0] = 99
	grid["max_depth"] = []interface{}{1}

	assert.Equal(t, model_selection.ParamGrid{"n_estimators": {5, 10}}, est.Hyperparameters())
	search, err := est.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, model_selection.ParamGrid{"n_estimators": {5, 10}}, search.ParamGrid)
}

func TestOptions(t *testing.T) {
	est := NewGradientBoostingRegressor(
		WithNJobs(2),
		WithRefit(false),
		WithVerbose(true),
		WithInnerCV(3),
		WithRandomState(11),
		WithHyperparameters(model_selection.ParamGrid{"n_estimators": {5}}),
	)
	search, err := est.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, search.NJobs)
	assert.False(t, search.Refit)
	assert.True(t, search.Verbose)
	assert.Equal(t, 3, search.CV.GetNSplits())
	assert.Equal(t, 11, search.Estimator.GetParams()["random_state"])
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	disk := files.NewDiskOperations(root)

	est := NewRandomForestClassifier(
		WithDiskOperations(disk),
		WithHyperparameters(model_selection.ParamGrid{"n_estimators": {3}, "max_depth": {2}}),
		WithInnerCV(2),
		WithRandomState(0),
	)

	_, err := est.Save("toy")
	var valErr *errors.ValueError
	require.True(t, errors.As(err, &valErr))

	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 10, 11, 12, 13})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	search, err := est.Build(nil)
	require.NoError(t, err)
	require.NoError(t, search.Fit(X, y))
	est.SetTrainedModel(search)
	assert.Same(t, search, est.TrainedModel())

	path, err := est.Save("toy")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "trained_models", "toy", "RandomForestClassifier.gob"), path)

	restored := NewRandomForestClassifier(WithDiskOperations(disk))
	require.NoError(t, restored.Load("toy"))
	want, err := search.Predict(X)
	require.NoError(t, err)
	got, err := restored.TrainedModel().Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	err = NewBaggingClassifier(WithDiskOperations(disk)).Load("toy")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistry(t *testing.T) {
	var r *Registry
	require.NotPanics(t, func() { r = Default() })
	assert.Equal(t, []string{
		"BaggingClassifier",
		"BaggingRegressor",
		"GradientBoostingClassifier",
		"GradientBoostingRegressor",
		"RandomForestClassifier",
		"RandomForestRegressor",
	}, r.Names())

	assert.Equal(t, []string{"BaggingRegressor", "GradientBoostingRegressor", "RandomForestRegressor"}, r.ForTask(Regression))

	est, err := r.New("BaggingClassifier", WithNJobs(1))
	require.NoError(t, err)
	assert.Equal(t, "BaggingClassifier", est.Properties().Name)

	_, err = r.New("SVC")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = r.Register("BaggingClassifier", func(opts ...Option) Estimator { return NewBaggingClassifier(opts...) })
	assert.Error(t, err)
}

func TestPropertiesString(t *testing.T) {
	p := NewRandomForestRegressor().Properties()
	assert.Equal(t, "RandomForestRegressor [ensemble_methods] (regression)", p.String())
}

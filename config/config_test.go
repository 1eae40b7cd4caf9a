package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlbench/benchmarking"
	"github.com/YuminosukeSato/mlbench/estimators"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

const sample = `
results_path: out
backend: kv
log_level: debug
n_jobs: 2
cv:
  n_splits: 3
  shuffle: true
  seed: 9
  stratified: true
run:
  save_predictions_on_train: true
datasets:
  - name: iris
    path: iris.csv
    target: species
strategies:
  - estimator: RandomForestClassifier
    random_state: 1
    inner_cv: 3
    hyperparameters:
      n_estimators: [10, 20]
      max_depth: [5, null]
      max_features: [sqrt]
  - name: gb
    estimator: GradientBoostingClassifier
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "out", c.ResultsPath)
	assert.Equal(t, BackendKV, c.Backend)
	assert.Equal(t, 2, c.NJobs)
	assert.Equal(t, CVConfig{NSplits: 3, Shuffle: true, Seed: 9, Stratified: true}, c.CV)
	assert.True(t, c.Run.SavePredictionsOnTrain)
	require.Len(t, c.Datasets, 1)
	assert.Equal(t, "species", c.Datasets[0].Target)

	require.Len(t, c.Strategies, 2)
	rf := c.Strategies[0]
	assert.Equal(t, "RandomForestClassifier", rf.Name)
	require.NotNil(t, rf.RandomState)
	assert.Equal(t, 1, *rf.RandomState)
	assert.Equal(t, []interface{}{10, 20}, rf.Hyperparameters["n_estimators"])
	assert.Equal(t, []interface{}{5, nil}, rf.Hyperparameters["max_depth"])
	assert.Equal(t, []interface{}{"sqrt"}, rf.Hyperparameters["max_features"])
	assert.Equal(t, "gb", c.Strategies[1].Name)
	assert.Nil(t, c.Strategies[1].Hyperparameters)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(`
results_path: r
datasets: [{name: d, path: d.csv}]
strategies: [{estimator: BaggingRegressor}]
`))
	require.NoError(t, err)
	assert.Equal(t, BackendHDD, c.Backend)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5, c.CV.NSplits)
	assert.Equal(t, 0, c.NJobs)

	d := Default()
	assert.Equal(t, -1, d.NJobs)
	assert.Equal(t, 5, d.CV.NSplits)
}

func TestParseInvalid(t *testing.T) {
	base := "results_path: r\ndatasets: [{name: d, path: d.csv}]\n"
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown estimator", base + "strategies: [{estimator: SVC}]\n"},
		{"no strategies", base},
		{"no datasets", "results_path: r\nstrategies: [{estimator: BaggingRegressor}]\n"},
		{"bad backend", base + "backend: s3\nstrategies: [{estimator: BaggingRegressor}]\n"},
		{"bad log level", base + "log_level: loud\nstrategies: [{estimator: BaggingRegressor}]\n"},
		{"one fold", base + "cv: {n_splits: 1}\nstrategies: [{estimator: BaggingRegressor}]\n"},
		{"path in name", "results_path: r\ndatasets: [{name: a/b, path: d.csv}]\nstrategies: [{estimator: BaggingRegressor}]\n"},
		{"duplicate strategy", base + "strategies: [{estimator: BaggingRegressor}, {estimator: BaggingRegressor}]\n"},
		{"empty grid values", base + "strategies: [{estimator: BaggingRegressor, hyperparameters: {n_estimators: []}}]\n"},
		{"not yaml", "results_path: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte(base + "strategies: [{estimator: SVC}]\n"))
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.ParamName, "Estimator")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", c.ResultsPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var pathErr *errors.PathError
	assert.True(t, errors.As(err, &pathErr))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "iris.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,species\n1,0\n2,1\n"), 0o644))

	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	c.Datasets[0].Path = csvPath
	c.ResultsPath = filepath.Join(dir, "results")
	c.ModelsPath = filepath.Join(dir, "models")

	cv := c.Splitter()
	_, stratified := cv.(*model_selection.StratifiedKFold)
	assert.True(t, stratified)
	assert.Equal(t, 3, cv.GetNSplits())

	datasets, err := c.BuildDatasets()
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	data, err := datasets[0].Load()
	require.NoError(t, err)
	assert.Equal(t, "species", data.TargetName)

	strategies, err := c.BuildStrategies(estimators.Default())
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, "gb", strategies[1].Name)
	assert.Equal(t, "GradientBoostingClassifier", strategies[1].Estimator.Properties().Name)

	search, err := strategies[0].Estimator.Build(strategies[0].Hyperparameters)
	require.NoError(t, err)
	assert.Equal(t, 3, search.CV.GetNSplits())
	assert.Equal(t, 2, search.NJobs)
	assert.Equal(t, 1, search.Estimator.GetParams()["random_state"])

	results, closeFn, err := c.OpenResults()
	require.NoError(t, err)
	_, isKV := results.(*benchmarking.KVResults)
	assert.True(t, isKV)
	require.NoError(t, closeFn())

	c.Backend = BackendHDD
	results, closeFn, err = c.OpenResults()
	require.NoError(t, err)
	_, isHDD := results.(*benchmarking.HDDResults)
	assert.True(t, isHDD)
	require.NoError(t, closeFn())

	assert.Len(t, c.RunOptions(), 3)

	c.Datasets[0].Path = filepath.Join(dir, "nope.csv")
	_, err = c.BuildDatasets()
	assert.Error(t, err)
}

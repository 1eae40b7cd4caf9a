package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeBenchmark(t *testing.T, backend string) (configPath, resultsPath string) {
	t.Helper()
	dir := t.TempDir()

	var csv strings.Builder
	csv.WriteString("x1,x2,label\n")
	for i := 0; i < 24; i++ {
		offset, label := 0, 0
		if i%2 == 1 {
			offset, label = 30, 1
		}
		fmt.Fprintf(&csv, "%d,%d,%d\n", offset+i%4, offset-i%3, label)
	}
	dataPath := filepath.Join(dir, "blobs.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(csv.String()), 0o644))

	resultsPath = filepath.Join(dir, "results")
	cfg := fmt.Sprintf(`
results_path: %s
backend: %s
models_path: %s
log_level: error
n_jobs: 1
cv: {n_splits: 2, shuffle: true, seed: 3, stratified: true}
datasets:
  - name: blobs
    path: %s
strategies:
  - estimator: RandomForestClassifier
    inner_cv: 2
    random_state: 1
    hyperparameters: {n_estimators: [3], max_depth: [2]}
  - estimator: BaggingClassifier
    inner_cv: 2
    random_state: 1
    hyperparameters: {n_estimators: [3]}
`, resultsPath, backend, filepath.Join(dir, "models"), dataPath)
	configPath = filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, resultsPath
}

func TestRunResultsEvaluate(t *testing.T) {
	for _, backend := range []string{"hdd", "kv"} {
		t.Run(backend, func(t *testing.T) {
			configPath, resultsPath := writeBenchmark(t, backend)

			out, err := execute(t, "run", "--config", configPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "4 fitted")
			assert.Contains(t, out, `"RandomForestClassifier"`)
			assert.Contains(t, out, `"BaggingClassifier"`)

			out, err = execute(t, "results", "--path", resultsPath, "--backend", backend)
			require.NoError(t, err, out)
			assert.Contains(t, out, "cv_folds=2")
			assert.Contains(t, out, "2/2")

			plotPath := filepath.Join(t.TempDir(), "accuracy.png")
			out, err = execute(t, "evaluate", "--path", resultsPath, "--backend", backend,
				"--metric", "accuracy", "--plot", plotPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "ACCURACY")
			assert.Contains(t, out, "RandomForestClassifier")
			assert.Contains(t, out, "1.0000")
			assert.FileExists(t, plotPath)

			// a second run finds everything in place
			out, err = execute(t, "run", "--config", configPath)
			require.NoError(t, err, out)
			assert.Contains(t, out, "0 fitted")
			assert.Contains(t, out, "4 skipped")
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, resultsPath := writeBenchmark(t, "hdd")

	_, err := execute(t, "evaluate", "--path", resultsPath, "--metric", "f1")
	assert.Error(t, err)

	_, err = execute(t, "evaluate", "--path", resultsPath, "--split", "validation")
	assert.Error(t, err)

	// nothing has been run yet
	_, err = execute(t, "results", "--path", resultsPath)
	assert.Error(t, err)

	_, err = execute(t, "results", "--path", resultsPath, "--backend", "s3")
	assert.Error(t, err)
}

func TestEstimatorsCommand(t *testing.T) {
	out, err := execute(t, "estimators")
	require.NoError(t, err)
	for _, name := range []string{"RandomForestClassifier", "BaggingRegressor", "GradientBoostingClassifier"} {
		assert.Contains(t, out, name)
	}

	out, err = execute(t, "estimators", "--task", "regression")
	require.NoError(t, err)
	assert.Contains(t, out, "GradientBoostingRegressor")
	assert.NotContains(t, out, "GradientBoostingClassifier")

	_, err = execute(t, "estimators", "--task", "clustering")
	assert.Error(t, err)
}

func TestRunMissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

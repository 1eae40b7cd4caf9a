package benchmarking

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

const (
	resultsFile         = "results.gob"
	predictionsDir      = "predictions"
	fittedStrategiesDir = "fitted_strategies"
	hddExt              = ".gob"
)

// HDDResults keeps results as gob files under a directory:
//
//	<path>/results.gob
//	<path>/predictions/<strategy>/<dataset>/cv_fold<k>_<split>.gob
//	<path>/fitted_strategies/<strategy>/<dataset>/cv_fold<k>.gob
type HDDResults struct {
	BaseResults
	path   string
	logger log.Logger
}

// NewHDDResults creates results stored under path. An existing directory is
// reused with a warning; a missing one is created.
func NewHDDResults(path string) (*HDDResults, error) {
	if err := validateResultsPath(path, resultsFile); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create results directory %s", path)
	}
	return &HDDResults{
		path:   path,
		logger: log.GetLoggerWithName("benchmarking.hdd").With(log.PathKey, path),
	}, nil
}

// LoadHDDResults opens results previously saved under path and restores the
// registry.
func LoadHDDResults(path string) (*HDDResults, error) {
	r := &HDDResults{
		path:   path,
		logger: log.GetLoggerWithName("benchmarking.hdd").With(log.PathKey, path),
	}
	var reg registry
	if err := model.LoadModel(&reg, r.registryPath()); err != nil {
		return nil, errors.Wrapf(err, "load results registry from %s", path)
	}
	r.restore(reg)
	return r, nil
}

// validateResultsPath checks that path can hold results. marker is the entry
// an earlier run leaves behind.
func validateResultsPath(path, marker string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "stat results path %s", path)
	}
	if !info.IsDir() {
		return errors.NewPathError("NewHDDResults", path, "path already exists and is not a directory")
	}

	if _, err := os.Stat(filepath.Join(path, marker)); err == nil {
		errors.Warn(errors.NewResultsPathWarning(path,
			"existing results file found in given path, results file will be updated"))
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, "read results path %s", path)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			errors.Warn(errors.NewResultsPathWarning(path, "path already exists and is not empty"))
			break
		}
	}
	return nil
}

// Path returns the results directory.
func (r *HDDResults) Path() string { return r.path }

func (r *HDDResults) String() string { return r.describe("HDDResults") }

func (r *HDDResults) registryPath() string {
	return filepath.Join(r.path, resultsFile)
}

// Save writes the registry. When a registry file already exists the name
// lists become the sorted union of both.
func (r *HDDResults) Save() error {
	var persisted registry
	err := model.LoadModel(&persisted, r.registryPath())
	switch {
	case err == nil:
		r.merge(persisted)
	case !errors.Is(err, errors.ErrNotFound):
		return errors.Wrap(err, "HDDResults.Save")
	}
	if err := model.SaveModel(r.snapshot(), r.registryPath()); err != nil {
		return errors.Wrap(err, "HDDResults.Save")
	}
	r.logger.Debug("results registry saved",
		"strategies", len(r.strategyNames),
		"datasets", len(r.datasetNames),
	)
	return nil
}

// generateKey returns the path of a predictions file relative to the results
// directory.
func generateKey(strategy, dataset string, cvFold int, split Split) string {
	return filepath.Join(predictionsDir, strategy, dataset,
		"cv_fold"+strconv.Itoa(cvFold)+"_"+string(split)+hddExt)
}

func fittedKey(strategy, dataset string, cvFold int) string {
	return filepath.Join(fittedStrategiesDir, strategy, dataset,
		"cv_fold"+strconv.Itoa(cvFold)+hddExt)
}

// SavePredictions writes one predictions record and registers its names.
func (r *HDDResults) SavePredictions(strategy, dataset string, yTrue, yPred []float64, yProba *mat.Dense, index []int, cvFold int, split Split) error {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return err
	}
	p, err := NewPredictions(strategy, dataset, index, yTrue, yPred, yProba, cvFold, split)
	if err != nil {
		return err
	}
	path := filepath.Join(r.path, generateKey(strategy, dataset, cvFold, split))
	if err := model.SaveModel(p, path); err != nil {
		return errors.Wrapf(err, "save predictions of %s on %s", strategy, dataset)
	}
	r.AppendKey(strategy, dataset)
	r.logger.Debug("predictions saved",
		log.StrategyKey, strategy,
		log.DatasetKey, dataset,
		log.CVFoldKey, cvFold,
		log.SplitKey, string(split),
	)
	return nil
}

// LoadPredictions implements Results. Missing records are skipped.
func (r *HDDResults) LoadPredictions(cvFold int, split Split) ([]*Predictions, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	var out []*Predictions
	for strategy, dataset := range r.Iter() {
		var p Predictions
		err := model.LoadModel(&p, filepath.Join(r.path, generateKey(strategy, dataset, cvFold, split)))
		if errors.Is(err, errors.ErrNotFound) {
			r.logger.Debug("no predictions found",
				log.StrategyKey, strategy,
				log.DatasetKey, dataset,
				log.CVFoldKey, cvFold,
				log.SplitKey, string(split),
			)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load predictions of %s on %s", strategy, dataset)
		}
		out = append(out, &p)
	}
	return out, nil
}

// CheckPredictionsExist implements Results.
func (r *HDDResults) CheckPredictionsExist(strategy, dataset string, cvFold int, split Split) (bool, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return false, err
	}
	if err := split.Validate(); err != nil {
		return false, err
	}
	return fileExists(filepath.Join(r.path, generateKey(strategy, dataset, cvFold, split)))
}

// SaveFittedStrategy writes the strategy's trained grid search.
func (r *HDDResults) SaveFittedStrategy(strategy Strategy, dataset string, cvFold int) error {
	if err := validateKey(strategy.Name, dataset, cvFold); err != nil {
		return err
	}
	search, err := strategy.trainedModel()
	if err != nil {
		return err
	}
	path := filepath.Join(r.path, fittedKey(strategy.Name, dataset, cvFold))
	if err := model.SaveModel(search, path); err != nil {
		return errors.Wrapf(err, "save fitted strategy %s on %s", strategy.Name, dataset)
	}
	r.AppendKey(strategy.Name, dataset)
	return nil
}

// LoadFittedStrategy implements Results. A missing file yields an error
// wrapping errors.ErrNotFound.
func (r *HDDResults) LoadFittedStrategy(strategy, dataset string, cvFold int) (*model_selection.GridSearchCV, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return nil, err
	}
	var search model_selection.GridSearchCV
	if err := model.LoadModel(&search, filepath.Join(r.path, fittedKey(strategy, dataset, cvFold))); err != nil {
		return nil, errors.Wrapf(err, "load fitted strategy %s on %s", strategy, dataset)
	}
	return &search, nil
}

// CheckFittedStrategyExists implements Results.
func (r *HDDResults) CheckFittedStrategyExists(strategy, dataset string, cvFold int) (bool, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return false, err
	}
	return fileExists(filepath.Join(r.path, fittedKey(strategy, dataset, cvFold)))
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "stat %s", path)
	}
	return !info.IsDir(), nil
}

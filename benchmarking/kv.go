package benchmarking

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

const (
	registryKey = "registry"
	kvDir       = "kv"
)

// KVConfig configures the badger database behind KVResults.
type KVConfig struct {
	// Path is the results directory; the database lives in <Path>/kv.
	// Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil disables them.
	Logger log.Logger
}

// DefaultKVConfig returns a durable on-disk configuration rooted at path.
func DefaultKVConfig(path string) KVConfig {
	return KVConfig{Path: path, SyncWrites: true}
}

// InMemoryKVConfig returns a configuration for tests.
func InMemoryKVConfig() KVConfig {
	return KVConfig{InMemory: true}
}

// badgerLogger adapts log.Logger to badger's Logger interface.
type badgerLogger struct {
	logger log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// KVResults keeps results in an embedded badger database. Values are gob
// encoded under the keys
//
//	registry
//	predictions/<strategy>/<dataset>/<fold>/<split>
//	fitted/<strategy>/<dataset>/<fold>
type KVResults struct {
	BaseResults
	db     *badger.DB
	path   string
	logger log.Logger
}

// OpenKVResults opens (or creates) the database and restores a previously
// saved registry.
func OpenKVResults(cfg KVConfig) (*KVResults, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.NewValidationError("path", "required for persistent results", cfg.Path)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := validateResultsPath(cfg.Path, kvDir); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(filepath.Join(cfg.Path, kvDir))
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	// badger はディレクトリを自動作成する
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open results database")
	}

	r := &KVResults{
		db:     db,
		path:   cfg.Path,
		logger: log.GetLoggerWithName("benchmarking.kv").With(log.PathKey, cfg.Path),
	}
	var reg registry
	found, err := r.get([]byte(registryKey), &reg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if found {
		r.restore(reg)
	}
	return r, nil
}

// Close releases the database.
func (r *KVResults) Close() error {
	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, "close results database")
	}
	return nil
}

func (r *KVResults) String() string { return r.describe("KVResults") }

func predictionsKey(strategy, dataset string, cvFold int, split Split) []byte {
	return []byte("predictions/" + strategy + "/" + dataset + "/" + strconv.Itoa(cvFold) + "/" + string(split))
}

func fittedStrategyKey(strategy, dataset string, cvFold int) []byte {
	return []byte("fitted/" + strategy + "/" + dataset + "/" + strconv.Itoa(cvFold))
}

func (r *KVResults) put(key []byte, value interface{}) error {
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(value, &buf); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

func (r *KVResults) get(key []byte, target interface{}) (bool, error) {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	if err := model.LoadModelFromReader(target, bytes.NewReader(raw)); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (r *KVResults) has(key []byte) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	return true, nil
}

// Save merges the registry with the persisted one and writes it back.
func (r *KVResults) Save() error {
	var persisted registry
	found, err := r.get([]byte(registryKey), &persisted)
	if err != nil {
		return errors.Wrap(err, "KVResults.Save")
	}
	if found {
		r.merge(persisted)
	}
	if err := r.put([]byte(registryKey), r.snapshot()); err != nil {
		return errors.Wrap(err, "KVResults.Save")
	}
	return nil
}

// SavePredictions implements Results.
func (r *KVResults) SavePredictions(strategy, dataset string, yTrue, yPred []float64, yProba *mat.Dense, index []int, cvFold int, split Split) error {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return err
	}
	p, err := NewPredictions(strategy, dataset, index, yTrue, yPred, yProba, cvFold, split)
	if err != nil {
		return err
	}
	if err := r.put(predictionsKey(strategy, dataset, cvFold, split), p); err != nil {
		return errors.Wrapf(err, "save predictions of %s on %s", strategy, dataset)
	}
	r.AppendKey(strategy, dataset)
	return nil
}

// LoadPredictions implements Results. Missing records are skipped.
func (r *KVResults) LoadPredictions(cvFold int, split Split) ([]*Predictions, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	var out []*Predictions
	for strategy, dataset := range r.Iter() {
		var p Predictions
		found, err := r.get(predictionsKey(strategy, dataset, cvFold, split), &p)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logger.Debug("no predictions found",
				log.StrategyKey, strategy,
				log.DatasetKey, dataset,
				log.CVFoldKey, cvFold,
				log.SplitKey, string(split),
			)
			continue
		}
		out = append(out, &p)
	}
	return out, nil
}

// CheckPredictionsExist implements Results.
func (r *KVResults) CheckPredictionsExist(strategy, dataset string, cvFold int, split Split) (bool, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return false, err
	}
	if err := split.Validate(); err != nil {
		return false, err
	}
	return r.has(predictionsKey(strategy, dataset, cvFold, split))
}

// SaveFittedStrategy implements Results.
func (r *KVResults) SaveFittedStrategy(strategy Strategy, dataset string, cvFold int) error {
	if err := validateKey(strategy.Name, dataset, cvFold); err != nil {
		return err
	}
	search, err := strategy.trainedModel()
	if err != nil {
		return err
	}
	if err := r.put(fittedStrategyKey(strategy.Name, dataset, cvFold), search); err != nil {
		return errors.Wrapf(err, "save fitted strategy %s on %s", strategy.Name, dataset)
	}
	r.AppendKey(strategy.Name, dataset)
	return nil
}

// LoadFittedStrategy implements Results. A missing record yields an error
// wrapping errors.ErrNotFound.
func (r *KVResults) LoadFittedStrategy(strategy, dataset string, cvFold int) (*model_selection.GridSearchCV, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return nil, err
	}
	var search model_selection.GridSearchCV
	found, err := r.get(fittedStrategyKey(strategy, dataset, cvFold), &search)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(errors.ErrNotFound, "fitted strategy %s on %s, fold %d", strategy, dataset, cvFold)
	}
	return &search, nil
}

// CheckFittedStrategyExists implements Results.
func (r *KVResults) CheckFittedStrategyExists(strategy, dataset string, cvFold int) (bool, error) {
	if err := validateKey(strategy, dataset, cvFold); err != nil {
		return false, err
	}
	return r.has(fittedStrategyKey(strategy, dataset, cvFold))
}

package config

import (
	"github.com/YuminosukeSato/mlbench/benchmarking"
	"github.com/YuminosukeSato/mlbench/estimators"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/shared/files"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

// Splitter builds the outer cross-validation.
func (c *Config) Splitter() model_selection.Splitter {
	if c.CV.Stratified {
		return model_selection.NewStratifiedKFold(c.CV.NSplits, c.CV.Shuffle, c.CV.Seed)
	}
	return model_selection.NewKFold(c.CV.NSplits, c.CV.Shuffle, c.CV.Seed)
}

// BuildDatasets opens every configured dataset.
func (c *Config) BuildDatasets() ([]benchmarking.Dataset, error) {
	out := make([]benchmarking.Dataset, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		var opts []benchmarking.DatasetOption
		if d.Target != "" {
			opts = append(opts, benchmarking.WithTargetColumn(d.Target))
		}
		ds, err := benchmarking.NewHDDDataset(d.Path, d.Name, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// BuildStrategies instantiates every configured strategy from registry.
func (c *Config) BuildStrategies(registry *estimators.Registry) ([]benchmarking.Strategy, error) {
	disk := files.NewDiskOperations(c.ModelsPath)
	out := make([]benchmarking.Strategy, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		opts := []estimators.Option{
			estimators.WithNJobs(c.NJobs),
			estimators.WithDiskOperations(disk),
		}
		if s.InnerCV != 0 {
			opts = append(opts, estimators.WithInnerCV(s.InnerCV))
		}
		if s.RandomState != nil {
			opts = append(opts, estimators.WithRandomState(*s.RandomState))
		}
		est, err := registry.New(s.Estimator, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "strategy %s", s.Name)
		}
		out = append(out, benchmarking.Strategy{
			Name:            s.Name,
			Estimator:       est,
			Hyperparameters: s.Hyperparameters,
		})
	}
	return out, nil
}

// OpenResults opens the configured results backend. The returned close
// function must be called when done.
func (c *Config) OpenResults() (benchmarking.Results, func() error, error) {
	switch c.Backend {
	case BackendKV:
		r, err := benchmarking.OpenKVResults(benchmarking.DefaultKVConfig(c.ResultsPath))
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case BackendHDD, "":
		r, err := benchmarking.NewHDDResults(c.ResultsPath)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	default:
		return nil, nil, errors.NewValidationError("backend", "must be \"hdd\" or \"kv\"", c.Backend)
	}
}

// RunOptions converts the run section into orchestrator options.
func (c *Config) RunOptions() []benchmarking.RunOption {
	return []benchmarking.RunOption{
		benchmarking.WithOverwritePredictions(c.Run.OverwritePredictions),
		benchmarking.WithOverwriteStrategies(c.Run.OverwriteStrategies),
		benchmarking.WithSavePredictionsOnTrain(c.Run.SavePredictionsOnTrain),
	}
}

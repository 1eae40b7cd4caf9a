package benchmarking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/estimators"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

var (
	strategyFitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbench_strategy_fits_total",
		Help: "Strategies fitted on an outer CV fold, by strategy and dataset",
	}, []string{"strategy", "dataset"})

	predictionsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlbench_predictions_saved_total",
		Help: "Prediction records saved, by strategy and split",
	}, []string{"strategy", "split"})

	strategyFitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlbench_strategy_fit_duration_seconds",
		Help:    "Time to fit one strategy on one outer CV fold",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	}, []string{"strategy"})
)

// Strategy is a named estimator benchmarked with a hyperparameter grid.
type Strategy struct {
	Name      string
	Estimator estimators.Estimator
	// Hyperparameters replaces the estimator's default grid when non-nil.
	Hyperparameters model_selection.ParamGrid
}

// NewStrategy names a strategy after its estimator.
func NewStrategy(est estimators.Estimator, hyperparameters model_selection.ParamGrid) Strategy {
	return Strategy{Name: est.Properties().Name, Estimator: est, Hyperparameters: hyperparameters}
}

func (s Strategy) trainedModel() (*model_selection.GridSearchCV, error) {
	if s.Estimator == nil {
		return nil, errors.NewValueError("Strategy", "strategy "+s.Name+" has no estimator")
	}
	search := s.Estimator.TrainedModel()
	if search == nil {
		return nil, errors.NewNotFittedError(s.Name, "SaveFittedStrategy")
	}
	return search, nil
}

// Orchestrator fits every strategy on every outer CV fold of every dataset
// and stores the fitted strategies and their predictions in Results.
type Orchestrator struct {
	Datasets   []Dataset
	Strategies []Strategy
	Results    Results
	CV         model_selection.Splitter
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(datasets []Dataset, strategies []Strategy, cv model_selection.Splitter, results Results) *Orchestrator {
	return &Orchestrator{Datasets: datasets, Strategies: strategies, Results: results, CV: cv}
}

type runConfig struct {
	overwritePredictions bool
	overwriteStrategies  bool
	predictOnTrain       bool
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

// WithOverwritePredictions recomputes predictions that already exist.
func WithOverwritePredictions(overwrite bool) RunOption {
	return func(c *runConfig) { c.overwritePredictions = overwrite }
}

// WithOverwriteStrategies refits strategies that were already fitted.
func WithOverwriteStrategies(overwrite bool) RunOption {
	return func(c *runConfig) { c.overwriteStrategies = overwrite }
}

// WithSavePredictionsOnTrain also stores predictions on the training side
// of each fold.
func WithSavePredictionsOnTrain(save bool) RunOption {
	return func(c *runConfig) { c.predictOnTrain = save }
}

// RunSummary counts what a Run did.
type RunSummary struct {
	RunID            string
	Fitted           int
	Reused           int
	PredictionsSaved int
	Skipped          int
}

// Run executes the benchmark. It stops when ctx is cancelled, between folds
// or inside a fit. On any error the registry is still saved, so everything
// completed up to that point stays in Results.
func (o *Orchestrator) Run(ctx context.Context, opts ...RunOption) (summary RunSummary, err error) {
	const op = "Orchestrator.Run"
	defer errors.Recover(&err, op)

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if o.Results == nil {
		return summary, errors.NewValueError(op, "results is nil")
	}
	if o.CV == nil {
		return summary, errors.NewValueError(op, "cv is nil")
	}
	if len(o.Datasets) == 0 || len(o.Strategies) == 0 {
		return summary, errors.NewValueError(op, "need at least one dataset and one strategy")
	}
	seen := make(map[string]bool, len(o.Strategies))
	for _, s := range o.Strategies {
		if s.Estimator == nil {
			return summary, errors.NewValueError(op, "strategy "+s.Name+" has no estimator")
		}
		if seen[s.Name] {
			return summary, errors.NewValidationError("strategy", "duplicate strategy name", s.Name)
		}
		seen[s.Name] = true
	}

	summary.RunID = uuid.NewString()
	logger := log.GetLoggerWithName("benchmarking.Orchestrator").With(log.RunIDKey, summary.RunID)
	logger.Info("run started",
		"datasets", len(o.Datasets),
		"strategies", len(o.Strategies),
		"cv", o.CV.String(),
	)
	o.Results.SetCV(o.CV)
	// 途中で失敗しても完了済みの fold をレジストリに残す
	defer func() {
		if err == nil {
			return
		}
		if saveErr := o.Results.Save(); saveErr != nil {
			logger.Error("failed to save results registry", saveErr)
		}
	}()

	splits := []Split{Test}
	if cfg.predictOnTrain {
		splits = append(splits, Train)
	}

	for _, ds := range o.Datasets {
		data, err := ds.Load()
		if err != nil {
			return summary, errors.Wrapf(err, "%s: load %s", op, ds.Name())
		}
		folds, err := o.CV.Split(data.X, data.Y)
		if err != nil {
			return summary, errors.Wrapf(err, "%s: split %s", op, ds.Name())
		}
		dsLogger := logger.With(log.DatasetKey, ds.Name(), log.SamplesKey, data.NSamples())

		for _, strategy := range o.Strategies {
			for k, fold := range folds {
				if err := ctx.Err(); err != nil {
					logger.Warn("run cancelled", err)
					return summary, errors.Wrap(err, op)
				}
				foldLogger := dsLogger.With(log.StrategyKey, strategy.Name, log.CVFoldKey, k)
				if err := o.runFold(ctx, &cfg, &summary, strategy, ds.Name(), data, k, fold, splits, foldLogger); err != nil {
					return summary, errors.Wrapf(err, "%s: %s on %s, fold %d", op, strategy.Name, ds.Name(), k)
				}
			}
		}

		if err := o.Results.Save(); err != nil {
			return summary, err
		}
	}

	logger.Info("run finished",
		"fitted", summary.Fitted,
		"reused", summary.Reused,
		"predictions_saved", summary.PredictionsSaved,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (o *Orchestrator) runFold(ctx context.Context, cfg *runConfig, summary *RunSummary, strategy Strategy, dataset string, data *Data, k int, fold model_selection.CVFold, splits []Split, logger log.Logger) error {
	var pending []Split
	for _, split := range splits {
		exists, err := o.Results.CheckPredictionsExist(strategy.Name, dataset, k, split)
		if err != nil {
			return err
		}
		if !exists || cfg.overwritePredictions {
			pending = append(pending, split)
		}
	}

	fitted, err := o.Results.CheckFittedStrategyExists(strategy.Name, dataset, k)
	if err != nil {
		return err
	}
	if fitted && !cfg.overwriteStrategies && len(pending) == 0 {
		logger.Debug("fold already done, skipping")
		summary.Skipped++
		// 既存の結果もレジストリに載せる
		o.Results.AppendKey(strategy.Name, dataset)
		return nil
	}

	var search *model_selection.GridSearchCV
	if fitted && !cfg.overwriteStrategies {
		search, err = o.Results.LoadFittedStrategy(strategy.Name, dataset, k)
		if err != nil {
			return err
		}
		strategy.Estimator.SetTrainedModel(search)
		summary.Reused++
		logger.Debug("reusing fitted strategy")
	} else {
		search, err = strategy.Estimator.Build(strategy.Hyperparameters)
		if err != nil {
			return err
		}
		xTrain := model_selection.SelectRows(data.X, fold.TrainIndices)
		yTrain := model_selection.SelectRows(data.Y, fold.TrainIndices)

		start := time.Now()
		if err := search.FitContext(ctx, xTrain, yTrain); err != nil {
			return err
		}
		elapsed := time.Since(start)
		strategyFitDuration.WithLabelValues(strategy.Name).Observe(elapsed.Seconds())
		strategyFitsTotal.WithLabelValues(strategy.Name, dataset).Inc()

		strategy.Estimator.SetTrainedModel(search)
		if err := o.Results.SaveFittedStrategy(strategy, dataset, k); err != nil {
			return err
		}
		// 再学習したモデルの予測で古い予測を置き換える
		pending = splits
		summary.Fitted++
		logger.Info("strategy fitted",
			log.DurationMsKey, elapsed.Milliseconds(),
			log.ScoreKey, search.BestScore(),
			log.HyperParamsKey, search.BestParams(),
		)
	}

	for _, split := range pending {
		idx := fold.TestIndices
		if split == Train {
			idx = fold.TrainIndices
		}
		if err := o.predict(search, strategy.Name, dataset, data, idx, k, split); err != nil {
			return err
		}
		predictionsSavedTotal.WithLabelValues(strategy.Name, string(split)).Inc()
		summary.PredictionsSaved++
	}
	return nil
}

func (o *Orchestrator) predict(search *model_selection.GridSearchCV, strategy, dataset string, data *Data, idx []int, k int, split Split) error {
	X := model_selection.SelectRows(data.X, idx)
	yTrue := mat.Col(nil, 0, model_selection.SelectRows(data.Y, idx))

	pred, err := search.Predict(X)
	if err != nil {
		return err
	}
	yPred := mat.Col(nil, 0, pred)

	var yProba *mat.Dense
	if search.IsClassifier() {
		proba, err := search.PredictProba(X)
		if err != nil {
			return err
		}
		yProba = mat.DenseCopyOf(proba)
	}

	index := append([]int(nil), idx...)
	return o.Results.SavePredictions(strategy, dataset, yTrue, yPred, yProba, index, k, split)
}

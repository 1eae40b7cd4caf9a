package benchmarking

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/mlbench/metrics"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
)

// Evaluation is the score of one strategy on one dataset.
type Evaluation struct {
	Strategy string
	Dataset  string
	metrics.Score
}

// Evaluator computes metrics over the predictions stored in Results.
type Evaluator struct {
	Results Results
	logger  log.Logger
}

// NewEvaluator creates an Evaluator reading from results.
func NewEvaluator(results Results) *Evaluator {
	return &Evaluator{
		Results: results,
		logger:  log.GetLoggerWithName("benchmarking.Evaluator"),
	}
}

// Evaluate computes metric on the predictions of one fold and split, one
// Evaluation per (strategy, dataset) pair that has predictions.
func (e *Evaluator) Evaluate(metric metrics.Metric, cvFold int, split Split) ([]Evaluation, error) {
	preds, err := e.Results.LoadPredictions(cvFold, split)
	if err != nil {
		return nil, err
	}
	out := make([]Evaluation, 0, len(preds))
	for _, p := range preds {
		score, err := metric.Compute(p.YTrue, p.YPred)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %s on %s with %s", p.StrategyName, p.DatasetName, metric.Name())
		}
		out = append(out, Evaluation{Strategy: p.StrategyName, Dataset: p.DatasetName, Score: score})
		e.logger.Debug("evaluated",
			log.StrategyKey, p.StrategyName,
			log.DatasetKey, p.DatasetName,
			log.CVFoldKey, cvFold,
			log.MetricKey, metric.Name(),
			log.ScoreKey, score.Mean,
			log.StdErrKey, score.StdErr,
		)
	}
	return out, nil
}

// FoldScores returns, per strategy, the mean metric of every (dataset, fold)
// combination that has predictions. The number of folds is taken from the
// registry's splitter.
func (e *Evaluator) FoldScores(metric metrics.Metric, split Split) (map[string][]float64, error) {
	cv := e.Results.CV()
	if cv == nil {
		return nil, errors.NewValueError("Evaluator.FoldScores", "results have no cross-validation splitter")
	}
	scores := make(map[string][]float64)
	for k := 0; k < cv.GetNSplits(); k++ {
		evals, err := e.Evaluate(metric, k, split)
		if err != nil {
			return nil, err
		}
		for _, ev := range evals {
			scores[ev.Strategy] = append(scores[ev.Strategy], ev.Mean)
		}
	}
	return scores, nil
}

// Summary aggregates FoldScores into one Score per strategy: the mean over
// folds and its standard error.
func (e *Evaluator) Summary(metric metrics.Metric, split Split) ([]Evaluation, error) {
	folds, err := e.FoldScores(metric, split)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(folds))
	for name := range folds {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Evaluation, 0, len(names))
	for _, name := range names {
		s := metrics.MeanStdErr(folds[name])
		if math.IsNaN(s.Mean) {
			continue
		}
		out = append(out, Evaluation{Strategy: name, Score: s})
	}
	return out, nil
}

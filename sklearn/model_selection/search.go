package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/core/parallel"
	"github.com/YuminosukeSato/mlbench/metrics"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func init() {
	model.Register(&GridSearchCV{})
}

// CVResults holds the per-candidate outcome of a search. Slices are indexed
// by candidate in ParameterGrid order.
type CVResults struct {
	Params          []map[string]interface{}
	SplitTestScores [][]float64 // [candidate][fold]
	MeanTestScore   []float64
	StdTestScore    []float64
	RankTestScore   []int
	MeanFitTime     []float64 // seconds
}

// GridSearchCV evaluates every combination of a parameter grid with
// cross-validation and keeps the best one.
type GridSearchCV struct {
	Estimator model.SKLearnCompatible
	ParamGrid ParamGrid
	CV        Splitter
	NJobs     int
	Refit     bool
	Verbose   bool
	// Scoring names a metric from the metrics package. Empty uses the
	// estimator's Score method. Losses are negated so that higher is better.
	Scoring string

	State         *model.StateManager
	Results       *CVResults
	BestIndex     int
	BestEstimator model.SKLearnCompatible
}

// SearchOption configures a GridSearchCV.
type SearchOption func(*GridSearchCV)

// WithCV sets the cross-validation splitter.
func WithCV(cv Splitter) SearchOption {
	return func(g *GridSearchCV) { g.CV = cv }
}

// WithNJobs sets the number of candidate/fold fits run concurrently.
// Values <= 0 use all cores.
func WithNJobs(n int) SearchOption {
	return func(g *GridSearchCV) { g.NJobs = n }
}

// WithRefit controls whether the best candidate is refitted on all data.
func WithRefit(refit bool) SearchOption {
	return func(g *GridSearchCV) { g.Refit = refit }
}

// WithVerbose logs every candidate's score.
func WithVerbose(verbose bool) SearchOption {
	return func(g *GridSearchCV) { g.Verbose = verbose }
}

// WithScoring sets the metric used to rank candidates.
func WithScoring(name string) SearchOption {
	return func(g *GridSearchCV) { g.Scoring = name }
}

// NewGridSearchCV creates a search over grid with 5-fold cross-validation
// (stratified for classifiers) and refit enabled.
func NewGridSearchCV(estimator model.SKLearnCompatible, grid ParamGrid, opts ...SearchOption) *GridSearchCV {
	g := &GridSearchCV{
		Estimator: estimator,
		ParamGrid: grid,
		NJobs:     1,
		Refit:     true,
		State:     model.NewStateManager(),
		BestIndex: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.CV == nil {
		if model.IsClassifier(estimator) {
			g.CV = NewStratifiedKFold(5, false, 0)
		} else {
			g.CV = NewKFold(5, false, 0)
		}
	}
	return g
}

// Fit runs the search.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

type fitTask struct {
	candidate int
	fold      int
}

// FitContext runs the search; candidate/fold fits run on an errgroup bounded
// by NJobs and stop early when ctx is cancelled. A fit that fails is reported
// as a FitFailedWarning and scored -Inf.
func (g *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	const op = "GridSearchCV.Fit"
	defer errors.Recover(&err, op)

	if g.Estimator == nil {
		return errors.NewValueError(op, "estimator is nil")
	}
	if err := g.ParamGrid.Validate(); err != nil {
		return err
	}
	scorer, err := g.scorer()
	if err != nil {
		return err
	}

	folds, err := g.CV.Split(X, y)
	if err != nil {
		return errors.Wrap(err, op)
	}
	candidates := ParameterGrid(g.ParamGrid)
	name := estimatorName(g.Estimator)

	logger := log.GetLoggerWithName("model_selection.GridSearchCV").With(log.ModelNameKey, name)
	logger.Info("fitting candidates",
		log.CandidatesKey, len(candidates),
		"folds", len(folds),
		log.HyperParamsKey, g.ParamGrid.String(),
	)

	scores := make([][]float64, len(candidates))
	fitTimes := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
		fitTimes[i] = make([]float64, len(folds))
	}

	tasks := make([]fitTask, 0, len(candidates)*len(folds))
	for c := range candidates {
		for f := range folds {
			tasks = append(tasks, fitTask{candidate: c, fold: f})
		}
	}

	grp, gCtx := errgroup.WithContext(ctx)
	grp.SetLimit(parallel.Workers(g.NJobs, len(tasks)))
	for _, task := range tasks {
		grp.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			params := candidates[task.candidate]
			fold := folds[task.fold]

			start := time.Now()
			score, fitErr := g.fitAndScore(params, fold, X, y, scorer)
			fitTimes[task.candidate][task.fold] = time.Since(start).Seconds()
			if fitErr != nil {
				errors.Warn(errors.NewFitFailedWarning(name, params, task.fold, fitErr))
				score = math.Inf(-1)
			}
			scores[task.candidate][task.fold] = score
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return errors.Wrap(err, op)
	}

	results := &CVResults{
		Params:          candidates,
		SplitTestScores: scores,
		MeanTestScore:   make([]float64, len(candidates)),
		StdTestScore:    make([]float64, len(candidates)),
		MeanFitTime:     make([]float64, len(candidates)),
	}
	for c := range candidates {
		mean, std := stat.PopMeanStdDev(scores[c], nil)
		if math.IsNaN(mean) || math.IsInf(mean, -1) {
			mean, std = math.Inf(-1), 0
		}
		results.MeanTestScore[c] = mean
		results.StdTestScore[c] = std
		results.MeanFitTime[c] = stat.Mean(fitTimes[c], nil)
		if g.Verbose {
			logger.Info("candidate scored",
				log.HyperParamsKey, formatParams(candidates[c]),
				log.ScoreKey, mean,
				log.StdErrKey, std,
			)
		}
	}
	results.RankTestScore = rank(results.MeanTestScore)

	best := 0
	for c := range candidates {
		if results.RankTestScore[c] == 1 {
			best = c
			break
		}
	}
	if math.IsInf(results.MeanTestScore[best], -1) {
		return errors.NewModelError(op, "all candidates failed to fit", nil)
	}

	g.Results = results
	g.BestIndex = best
	g.BestEstimator = nil

	if g.Refit {
		est := g.Estimator.Clone()
		if err := est.SetParams(candidates[best]); err != nil {
			return err
		}
		if err := est.Fit(X, y); err != nil {
			return errors.NewModelError(op, "refit failed", err)
		}
		g.BestEstimator = est
	}

	rows, cols := X.Dims()
	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.SetFitted(cols, rows)

	logger.Info("search finished",
		log.HyperParamsKey, formatParams(candidates[best]),
		log.ScoreKey, results.MeanTestScore[best],
	)
	return nil
}

type scoreFunc func(est model.SKLearnCompatible, X, y mat.Matrix) (float64, error)

func (g *GridSearchCV) scorer() (scoreFunc, error) {
	if g.Scoring == "" {
		return func(est model.SKLearnCompatible, X, y mat.Matrix) (float64, error) {
			s, ok := est.(model.Scorer)
			if !ok {
				return 0, errors.NewValueError("GridSearchCV", "estimator has no Score method; set Scoring")
			}
			return s.Score(X, y)
		}, nil
	}

	metric, err := metrics.Get(strings.TrimPrefix(g.Scoring, "neg_"))
	if err != nil {
		return nil, err
	}
	sign := 1.0
	if !metric.GreaterIsBetter() {
		sign = -1
	}
	return func(est model.SKLearnCompatible, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		s, err := metric.Compute(mat.Col(nil, 0, y), mat.Col(nil, 0, pred))
		if err != nil {
			return 0, err
		}
		return sign * s.Mean, nil
	}, nil
}

func (g *GridSearchCV) fitAndScore(params map[string]interface{}, fold CVFold, X, y mat.Matrix, score scoreFunc) (s float64, err error) {
	defer errors.Recover(&err, "GridSearchCV.fitAndScore")

	est := g.Estimator.Clone()
	if err := est.SetParams(params); err != nil {
		return 0, err
	}
	if err := est.Fit(SelectRows(X, fold.TrainIndices), SelectRows(y, fold.TrainIndices)); err != nil {
		return 0, err
	}
	return score(est, SelectRows(X, fold.TestIndices), SelectRows(y, fold.TestIndices))
}

// rank assigns rank 1 to the highest score; ties share the lowest rank.
func rank(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 && scores[idx] == scores[order[pos-1]] {
			ranks[idx] = ranks[order[pos-1]]
		} else {
			ranks[idx] = pos + 1
		}
	}
	return ranks
}

// BestParams returns the parameters of the best candidate.
func (g *GridSearchCV) BestParams() map[string]interface{} {
	if g.Results == nil || g.BestIndex < 0 {
		return nil
	}
	return g.Results.Params[g.BestIndex]
}

// BestScore returns the mean cross-validated score of the best candidate.
func (g *GridSearchCV) BestScore() float64 {
	if g.Results == nil || g.BestIndex < 0 {
		return math.NaN()
	}
	return g.Results.MeanTestScore[g.BestIndex]
}

// CVResults returns the per-candidate results of the last Fit.
func (g *GridSearchCV) CVResults() *CVResults {
	return g.Results
}

func (g *GridSearchCV) best(method string) (model.SKLearnCompatible, error) {
	if g.State == nil || !g.State.IsFitted() {
		return nil, errors.NewNotFittedError("GridSearchCV", method)
	}
	if g.BestEstimator == nil {
		return nil, errors.NewValueError("GridSearchCV."+method, "not available with refit=false")
	}
	return g.BestEstimator, nil
}

// Predict predicts with the refitted best estimator.
func (g *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	est, err := g.best("Predict")
	if err != nil {
		return nil, err
	}
	return est.Predict(X)
}

// PredictProba returns class probabilities from the refitted best estimator.
func (g *GridSearchCV) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	est, err := g.best("PredictProba")
	if err != nil {
		return nil, err
	}
	clf, ok := est.(model.ClassifierMixin)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV.PredictProba", estimatorName(est)+" does not predict probabilities")
	}
	return clf.PredictProba(X)
}

// Classes returns the class labels of the best estimator, or nil for regressors.
func (g *GridSearchCV) Classes() []float64 {
	if clf, ok := g.BestEstimator.(model.ClassifierMixin); ok {
		return clf.Classes()
	}
	return nil
}

// Score scores the refitted best estimator with the search's scoring.
func (g *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	est, err := g.best("Score")
	if err != nil {
		return 0, err
	}
	scorer, err := g.scorer()
	if err != nil {
		return 0, err
	}
	return scorer(est, X, y)
}

// IsClassifier reports whether the searched estimator is a classifier.
func (g *GridSearchCV) IsClassifier() bool {
	return model.IsClassifier(g.Estimator)
}

func (g *GridSearchCV) String() string {
	return fmt.Sprintf("GridSearchCV(estimator=%s, param_grid=%s, cv=%v, refit=%t)",
		estimatorName(g.Estimator), g.ParamGrid, g.CV, g.Refit)
}

func estimatorName(est interface{}) string {
	name := fmt.Sprintf("%T", est)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func formatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}

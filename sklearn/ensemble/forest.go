package ensemble

import (
	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/metrics"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var forestClassifierParams = paramSet{
	modelName: "RandomForestClassifier",
	keys: []string{"n_estimators", "criterion", "max_depth", "min_samples_split",
		"min_samples_leaf", "max_features", "bootstrap", "max_samples", "n_jobs", "random_state"},
}

var forestRegressorParams = paramSet{
	modelName: "RandomForestRegressor",
	keys:      forestClassifierParams.keys,
}

// RandomForestClassifier averages the class probabilities of decision trees
// fitted on bootstrap samples with per-split feature subsampling.
type RandomForestClassifier struct {
	Params
	State *model.StateManager

	Estimators  []*tree.DecisionTreeClassifier
	ClassLabels []float64
}

// NewRandomForestClassifier creates a forest of 100 gini trees examining
// sqrt(n_features) features per split.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{
		Params: newParams("gini", tree.MaxFeatures{Mode: "sqrt"}, opts),
		State:  model.NewStateManager(),
	}
}

// Fit fits the trees in parallel.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	const op = "RandomForestClassifier.Fit"
	if err := rf.validate(op); err != nil {
		return err
	}
	targets, err := checkInput(op, X, y)
	if err != nil {
		return err
	}

	rows, cols := X.Dims()
	seeds := memberSeeds(rf.RandomState, rf.NEstimators)
	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = fitMembers(rf.NEstimators, rf.NJobs, func(i int) error {
		rng := newRand(seeds[i])
		var weights []float64
		if rf.Bootstrap {
			weights = sampleWeights(rng, rows, rf.MaxSamples, true)
		}
		trees[i] = tree.NewDecisionTreeClassifier(rf.treeOptions(rng.Int64())...)
		return trees[i].FitWeighted(X, y, weights)
	})
	if err != nil {
		return err
	}

	rf.Estimators = trees
	rf.ClassLabels = uniqueSorted(targets)
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetFitted(cols, rows)
	return nil
}

// PredictProba returns the mean class probabilities over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := checkFitted(rf.State, "RandomForestClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(rf.ClassLabels), nil)
	index := classIndex(rf.ClassLabels)
	for _, t := range rf.Estimators {
		proba, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		accumulateProba(out, proba, t.Classes(), index)
	}
	out.Scale(1/float64(len(rf.Estimators)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, rf.ClassLabels), nil
}

// Score returns the mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	return accuracy(rf, X, y)
}

// Classes returns the class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []float64 { return rf.ClassLabels }

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return forestClassifierParams.get(&rf.Params)
}

// SetParams sets hyperparameters by name.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return forestClassifierParams.set(&rf.Params, params)
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.SKLearnCompatible {
	return &RandomForestClassifier{Params: rf.Params, State: model.NewStateManager()}
}

// FeatureImportances returns the mean impurity-based importance over all trees.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	imps := make([][]float64, len(rf.Estimators))
	for i, t := range rf.Estimators {
		imps[i] = t.GetFeatureImportances()
	}
	return meanImportances(imps)
}

// RandomForestRegressor averages the predictions of regression trees fitted
// on bootstrap samples.
type RandomForestRegressor struct {
	Params
	State *model.StateManager

	Estimators []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor creates a forest of 100 squared-error trees
// examining every feature per split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{
		Params: newParams("squared_error", tree.AllFeatures, opts),
		State:  model.NewStateManager(),
	}
}

// Fit fits the trees in parallel.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	const op = "RandomForestRegressor.Fit"
	if err := rf.validate(op); err != nil {
		return err
	}
	if _, err := checkInput(op, X, y); err != nil {
		return err
	}

	rows, cols := X.Dims()
	seeds := memberSeeds(rf.RandomState, rf.NEstimators)
	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err := fitMembers(rf.NEstimators, rf.NJobs, func(i int) error {
		rng := newRand(seeds[i])
		var weights []float64
		if rf.Bootstrap {
			weights = sampleWeights(rng, rows, rf.MaxSamples, true)
		}
		trees[i] = tree.NewDecisionTreeRegressor(rf.treeOptions(rng.Int64())...)
		return trees[i].FitWeighted(X, y, weights)
	})
	if err != nil {
		return err
	}

	rf.Estimators = trees
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetFitted(cols, rows)
	return nil
}

// Predict returns the mean prediction over all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := checkFitted(rf.State, "RandomForestRegressor", "Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for _, t := range rf.Estimators {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, pred)
	}
	out.Scale(1/float64(len(rf.Estimators)), out)
	return out, nil
}

// Score returns R² on the given data.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	return r2(rf, X, y)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return forestRegressorParams.get(&rf.Params)
}

// SetParams sets hyperparameters by name.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return forestRegressorParams.set(&rf.Params, params)
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestRegressor) Clone() model.SKLearnCompatible {
	return &RandomForestRegressor{Params: rf.Params, State: model.NewStateManager()}
}

// FeatureImportances returns the mean impurity-based importance over all trees.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	imps := make([][]float64, len(rf.Estimators))
	for i, t := range rf.Estimators {
		imps[i] = t.GetFeatureImportances()
	}
	return meanImportances(imps)
}

func meanImportances(imps [][]float64) []float64 {
	if len(imps) == 0 {
		return nil
	}
	out := make([]float64, len(imps[0]))
	for _, imp := range imps {
		for j, v := range imp {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(imps))
	}
	return out
}

func accuracy(est model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnToVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnToVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(yTrue, yPred)
}

func r2(est model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnToVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnToVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

package ensemble

import (
	"math"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var boostingParams = []string{"n_estimators", "learning_rate", "max_depth", "min_samples_split",
	"min_samples_leaf", "max_features", "subsample", "random_state"}

// GradientBoostingRegressor fits regression trees to the residuals of the
// current ensemble (least squares loss).
type GradientBoostingRegressor struct {
	Params
	State *model.StateManager

	InitPrediction float64
	Estimators     []*tree.DecisionTreeRegressor
}

// NewGradientBoostingRegressor creates a booster of 100 depth-3 stages with
// learning rate 0.1.
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		Params: newParams("squared_error", tree.AllFeatures, append([]Option{WithMaxDepth(3)}, opts...)),
		State:  model.NewStateManager(),
	}
}

// Fit runs the boosting stages sequentially.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	const op = "GradientBoostingRegressor.Fit"
	if err := gb.validate(op); err != nil {
		return err
	}
	targets, err := checkInput(op, X, y)
	if err != nil {
		return err
	}

	rows, cols := X.Dims()
	init := 0.0
	for _, v := range targets {
		init += v
	}
	init /= float64(rows)

	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = init
	}
	residuals := mat.NewDense(rows, 1, nil)
	rng := newRand(gb.RandomState)
	stages := make([]*tree.DecisionTreeRegressor, 0, gb.NEstimators)

	for m := 0; m < gb.NEstimators; m++ {
		for i := range raw {
			residuals.Set(i, 0, targets[i]-raw[i])
		}
		stage := tree.NewDecisionTreeRegressor(gb.treeOptions(rng.Int64())...)
		if err := stage.FitWeighted(X, residuals, gb.stageWeights(rng, rows)); err != nil {
			return errors.Wrapf(err, "%s: stage %d", op, m)
		}
		pred, err := stage.Predict(X)
		if err != nil {
			return err
		}
		for i := range raw {
			raw[i] += gb.LearningRate * pred.At(i, 0)
		}
		stages = append(stages, stage)
	}

	gb.InitPrediction = init
	gb.Estimators = stages
	if gb.State == nil {
		gb.State = model.NewStateManager()
	}
	gb.State.SetFitted(cols, rows)
	return nil
}

// Predict returns the boosted prediction.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := checkFitted(gb.State, "GradientBoostingRegressor", "Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, gb.InitPrediction)
	}
	for _, stage := range gb.Estimators {
		pred, err := stage.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Apply(func(i, j int, v float64) float64 { return v + gb.LearningRate*pred.At(i, j) }, out)
	}
	return out, nil
}

// Score returns R² on the given data.
func (gb *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	return r2(gb, X, y)
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return paramSet{keys: boostingParams}.get(&gb.Params)
}

// SetParams sets hyperparameters by name.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return paramSet{modelName: "GradientBoostingRegressor", keys: boostingParams}.set(&gb.Params, params)
}

// Clone returns an unfitted booster with the same hyperparameters.
func (gb *GradientBoostingRegressor) Clone() model.SKLearnCompatible {
	return &GradientBoostingRegressor{Params: gb.Params, State: model.NewStateManager()}
}

// GradientBoostingClassifier boosts regression trees on the gradient of the
// log-loss. Binary problems use one tree per stage, K classes use K trees
// per stage with a softmax link.
type GradientBoostingClassifier struct {
	Params
	State *model.StateManager

	ClassLabels    []float64
	InitPrediction []float64
	// Estimators[m][k] is the tree for class k at stage m.
	Estimators [][]*tree.DecisionTreeRegressor
}

// NewGradientBoostingClassifier creates a booster of 100 depth-3 stages with
// learning rate 0.1.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		Params: newParams("squared_error", tree.AllFeatures, append([]Option{WithMaxDepth(3)}, opts...)),
		State:  model.NewStateManager(),
	}
}

// Fit runs the boosting stages sequentially. Leaf values are replaced by a
// single Newton step on the log-loss.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	const op = "GradientBoostingClassifier.Fit"
	if err := gb.validate(op); err != nil {
		return err
	}
	targets, err := checkInput(op, X, y)
	if err != nil {
		return err
	}

	classes := uniqueSorted(targets)
	if len(classes) < 2 {
		return errors.NewValueError(op, "y contains fewer than two classes")
	}
	index := classIndex(classes)
	rows, cols := X.Dims()

	nTrees := len(classes)
	if nTrees == 2 {
		nTrees = 1
	}

	// one-hot targets; binary problems only track the positive class
	onehot := make([][]float64, nTrees)
	for k := range onehot {
		onehot[k] = make([]float64, rows)
	}
	for i, t := range targets {
		c := index[t]
		if nTrees == 1 {
			onehot[0][i] = float64(c)
		} else {
			onehot[c][i] = 1
		}
	}

	init := make([]float64, nTrees)
	for k := range init {
		prior := 0.0
		for _, v := range onehot[k] {
			prior += v
		}
		prior /= float64(rows)
		if nTrees == 1 {
			init[k] = math.Log(prior / (1 - prior))
		} else {
			init[k] = math.Log(prior)
		}
	}

	raw := make([][]float64, nTrees)
	for k := range raw {
		raw[k] = make([]float64, rows)
		for i := range raw[k] {
			raw[k][i] = init[k]
		}
	}

	rng := newRand(gb.RandomState)
	residuals := mat.NewDense(rows, 1, nil)
	proba := make([][]float64, nTrees)
	for k := range proba {
		proba[k] = make([]float64, rows)
	}
	stages := make([][]*tree.DecisionTreeRegressor, 0, gb.NEstimators)

	for m := 0; m < gb.NEstimators; m++ {
		probabilities(raw, proba)
		weights := gb.stageWeights(rng, rows)
		stage := make([]*tree.DecisionTreeRegressor, nTrees)

		for k := 0; k < nTrees; k++ {
			for i := 0; i < rows; i++ {
				residuals.Set(i, 0, onehot[k][i]-proba[k][i])
			}
			t := tree.NewDecisionTreeRegressor(gb.treeOptions(rng.Int64())...)
			if err := t.FitWeighted(X, residuals, weights); err != nil {
				return errors.Wrapf(err, "%s: stage %d", op, m)
			}
			leaves, err := t.Apply(X)
			if err != nil {
				return err
			}
			gb.newtonStep(t, leaves, residuals, weights, nTrees)
			for i, leaf := range leaves {
				raw[k][i] += gb.LearningRate * t.Tree.Nodes[leaf].Value[0]
			}
			stage[k] = t
		}
		stages = append(stages, stage)
	}

	gb.ClassLabels = classes
	gb.InitPrediction = init
	gb.Estimators = stages
	if gb.State == nil {
		gb.State = model.NewStateManager()
	}
	gb.State.SetFitted(cols, rows)
	return nil
}

// newtonStep sets each leaf of t to sum(r) / sum(|r| (1 - |r|)) over the
// in-bag samples in that leaf, scaled by (K-1)/K for K classes.
func (gb *GradientBoostingClassifier) newtonStep(t *tree.DecisionTreeRegressor, leaves []int, residuals *mat.Dense, weights []float64, nTrees int) {
	num := make(map[int]float64)
	den := make(map[int]float64)
	for i, leaf := range leaves {
		w := weights[i]
		if w == 0 {
			continue
		}
		r := residuals.At(i, 0)
		num[leaf] += w * r
		den[leaf] += w * math.Abs(r) * (1 - math.Abs(r))
	}

	scale := 1.0
	if nTrees > 1 {
		scale = float64(nTrees-1) / float64(nTrees)
	}
	for leaf := range t.Tree.Nodes {
		if !t.Tree.Nodes[leaf].IsLeaf() {
			continue
		}
		value := 0.0
		if d := den[leaf]; d > 1e-150 {
			value = scale * num[leaf] / d
		}
		t.Tree.Nodes[leaf].Value[0] = value
	}
}

// DecisionFunction returns the raw scores: n×1 log-odds for binary problems,
// n×K for multiclass.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := checkFitted(gb.State, "GradientBoostingClassifier", "DecisionFunction", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	nTrees := len(gb.InitPrediction)
	out := mat.NewDense(rows, nTrees, nil)
	for i := 0; i < rows; i++ {
		out.SetRow(i, gb.InitPrediction)
	}
	for _, stage := range gb.Estimators {
		for k, t := range stage {
			pred, err := t.Predict(X)
			if err != nil {
				return nil, err
			}
			for i := 0; i < rows; i++ {
				out.Set(i, k, out.At(i, k)+gb.LearningRate*pred.At(i, 0))
			}
		}
	}
	return out, nil
}

// PredictProba returns class probabilities, one column per entry of Classes().
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, nTrees := scores.Dims()
	out := mat.NewDense(rows, len(gb.ClassLabels), nil)
	for i := 0; i < rows; i++ {
		if nTrees == 1 {
			p := sigmoid(scores.At(i, 0))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		row := mat.Row(nil, i, scores)
		lse := errors.LogSumExp(row)
		for k, v := range row {
			out.Set(i, k, math.Exp(v-lse))
		}
	}
	return out, nil
}

// Predict returns the most probable class for each sample.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, gb.ClassLabels), nil
}

// Score returns the mean accuracy on the given data.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	return accuracy(gb, X, y)
}

// Classes returns the class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []float64 { return gb.ClassLabels }

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return paramSet{keys: boostingParams}.get(&gb.Params)
}

// SetParams sets hyperparameters by name.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	return paramSet{modelName: "GradientBoostingClassifier", keys: boostingParams}.set(&gb.Params, params)
}

// Clone returns an unfitted booster with the same hyperparameters.
func (gb *GradientBoostingClassifier) Clone() model.SKLearnCompatible {
	return &GradientBoostingClassifier{Params: gb.Params, State: model.NewStateManager()}
}

// stageWeights draws the per-stage subsample without replacement.
func (p *Params) stageWeights(rng interface{ Perm(int) []int }, rows int) []float64 {
	weights := make([]float64, rows)
	if p.Subsample >= 1 {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	n := int(p.Subsample * float64(rows))
	if n < 1 {
		n = 1
	}
	for _, i := range rng.Perm(rows)[:n] {
		weights[i] = 1
	}
	return weights
}

// probabilities fills proba from raw scores using the sigmoid (one column)
// or softmax (K columns).
func probabilities(raw, proba [][]float64) {
	if len(raw) == 1 {
		for i, v := range raw[0] {
			proba[0][i] = sigmoid(v)
		}
		return
	}
	row := make([]float64, len(raw))
	for i := range raw[0] {
		for k := range raw {
			row[k] = raw[k][i]
		}
		lse := errors.LogSumExp(row)
		for k := range raw {
			proba[k][i] = math.Exp(row[k] - lse)
		}
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

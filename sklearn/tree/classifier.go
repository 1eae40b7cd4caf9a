package tree

import (
	"sort"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/metrics"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&DecisionTreeClassifier{})
	model.Register(&DecisionTreeRegressor{})
}

// DecisionTreeClassifier is a CART classifier using gini or entropy impurity.
type DecisionTreeClassifier struct {
	Params
	State *model.StateManager

	Tree        *Tree
	ClassLabels []float64
}

// NewDecisionTreeClassifier creates a classifier with gini impurity, unlimited
// depth and all features examined at every split.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	params := defaultParams("gini")
	for _, opt := range opts {
		opt(&params)
	}
	return &DecisionTreeClassifier{Params: params, State: model.NewStateManager()}
}

// Fit builds the tree from the training data.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored, but their labels still count towards the class set so
// that every tree of an ensemble reports the same columns in PredictProba.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	const op = "DecisionTreeClassifier.Fit"
	if err := dt.validate(op, "gini", "entropy"); err != nil {
		return err
	}
	data, targets, weights, indices, err := trainingData(op, X, y, sampleWeight)
	if err != nil {
		return err
	}

	classes := uniqueSorted(targets)
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	labels := make([]int, len(targets))
	for i, t := range targets {
		labels[i] = index[t]
	}

	impurity := gini
	if dt.Criterion == "entropy" {
		impurity = entropy
	}

	rows, cols := X.Dims()
	b := &builder{
		x:           data,
		nCols:       cols,
		weights:     weights,
		maxDepth:    dt.MaxDepth,
		minSplit:    dt.MinSamplesSplit,
		minLeaf:     dt.MinSamplesLeaf,
		maxFeatures: dt.MaxFeatures.Resolve(cols, true),
		rng:         newRand(dt.RandomState),
		labels:      labels,
		nClasses:    len(classes),
		impurity:    impurity,
	}

	dt.Tree = b.build(indices)
	dt.ClassLabels = classes
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetFitted(cols, rows)
	return nil
}

// PredictProba returns class probabilities, one column per entry of Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	k := len(dt.ClassLabels)
	out := mat.NewDense(rows, k, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		leaf := dt.Tree.Apply(rowOf(X, i, cols, row))
		out.SetRow(i, dt.Tree.Nodes[leaf].Value)
	}
	return out, nil
}

// Predict returns the most probable class label for each sample.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxLabels(proba, dt.ClassLabels), nil
}

// Score returns the mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnToVec("DecisionTreeClassifier.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, _ := metrics.ColumnToVec("DecisionTreeClassifier.Score", pred)
	return metrics.AccuracyScore(yTrue, yPred)
}

// Classes returns the class labels seen during Fit in ascending order.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return dt.ClassLabels
}

// GetParams returns the hyperparameters of the classifier.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.get()
}

// SetParams sets hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.set("DecisionTreeClassifier", params)
}

// Clone returns an unfitted classifier with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.SKLearnCompatible {
	return &DecisionTreeClassifier{Params: dt.Params, State: model.NewStateManager()}
}

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return dt.Tree.Importances
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if dt.State == nil || dt.Tree == nil {
		return model.NewStateManager().RequireFitted("DecisionTreeClassifier", method)
	}
	if err := dt.State.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	return dt.State.CheckFeatures("DecisionTreeClassifier."+method, X)
}

// ArgmaxLabels maps each row of proba to the label of its largest column.
// Ties go to the first column.
func ArgmaxLabels(proba mat.Matrix, classes []float64) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

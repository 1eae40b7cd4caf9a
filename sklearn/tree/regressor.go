package tree

import (
	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/metrics"
	"gonum.org/v1/gonum/mat"
)

// DecisionTreeRegressor is a CART regressor minimizing squared error.
type DecisionTreeRegressor struct {
	Params
	State *model.StateManager

	Tree *Tree
}

// NewDecisionTreeRegressor creates a regressor with the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	params := defaultParams("squared_error")
	for _, opt := range opts {
		opt(&params)
	}
	return &DecisionTreeRegressor{Params: params, State: model.NewStateManager()}
}

// Fit builds the tree from the training data.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights; zero-weight samples are ignored.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	const op = "DecisionTreeRegressor.Fit"
	if err := dt.validate(op, "squared_error", "mse"); err != nil {
		return err
	}
	data, targets, weights, indices, err := trainingData(op, X, y, sampleWeight)
	if err != nil {
		return err
	}

	rows, cols := X.Dims()
	b := &builder{
		x:           data,
		nCols:       cols,
		weights:     weights,
		maxDepth:    dt.MaxDepth,
		minSplit:    dt.MinSamplesSplit,
		minLeaf:     dt.MinSamplesLeaf,
		maxFeatures: dt.MaxFeatures.Resolve(cols, false),
		rng:         newRand(dt.RandomState),
		y:           targets,
	}

	dt.Tree = b.build(indices)
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetFitted(cols, rows)
	return nil
}

// Predict returns the mean target of the leaf each sample falls into.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	leaves, err := dt.Apply(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		out.Set(i, 0, dt.Tree.Nodes[leaf].Value[0])
	}
	return out, nil
}

// Apply returns the leaf index each sample falls into.
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if dt.State == nil || dt.Tree == nil {
		return nil, model.NewStateManager().RequireFitted("DecisionTreeRegressor", "Predict")
	}
	if err := dt.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.State.CheckFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	leaves := make([]int, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		leaves[i] = dt.Tree.Apply(rowOf(X, i, cols, row))
	}
	return leaves, nil
}

// Score returns the coefficient of determination R² on the given data.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnToVec("DecisionTreeRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, _ := metrics.ColumnToVec("DecisionTreeRegressor.Score", pred)
	return metrics.R2Score(yTrue, yPred)
}

// GetParams returns the hyperparameters of the regressor.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.get()
}

// SetParams sets hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.set("DecisionTreeRegressor", params)
}

// Clone returns an unfitted regressor with the same hyperparameters.
func (dt *DecisionTreeRegressor) Clone() model.SKLearnCompatible {
	return &DecisionTreeRegressor{Params: dt.Params, State: model.NewStateManager()}
}

// GetFeatureImportances returns the normalized total variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return dt.Tree.Importances
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth
}

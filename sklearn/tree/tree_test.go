package tree

import (
	"bytes"
	"math"
	"testing"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func separableData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X, y := separableData()

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPred, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPred.At(0, 0))
	assert.Equal(t, 1.0, testPred.At(1, 0))
	assert.Equal(t, []float64{0, 1}, dt.Classes())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 6, rows)
	require.Equal(t, 2, cols)

	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := proba.At(i, j)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	// XOR-like: class 0 when both features are low or both high
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion), WithMinSamplesLeaf(1))
			require.NoError(t, dt.Fit(X, y))

			score, err := dt.Score(X, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, score)
		})
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Len(t, dt.Classes(), 3)

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, cols := proba.Dims()
	require.Equal(t, 3, cols)

	for i := 0; i < 9; i++ {
		row := mat.Row(nil, i, proba)
		best := 0
		for j := range row {
			if row[j] > row[best] {
				best = j
			}
		}
		assert.Equal(t, int(y.At(i, 0)), best, "sample %d", i)
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	importances := dt.GetFeatureImportances()
	require.Len(t, importances, 3)
	assert.Greater(t, importances[0], importances[1])
	assert.Greater(t, importances[0], importances[2])

	sum := 0.0
	for _, v := range importances {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	t.Run("max depth", func(t *testing.T) {
		dt := NewDecisionTreeClassifier(WithMaxDepth(2))
		require.NoError(t, dt.Fit(X, y))
		assert.LessOrEqual(t, dt.GetDepth(), 2)
	})

	t.Run("min samples", func(t *testing.T) {
		dt := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(4))
		require.NoError(t, dt.Fit(X, y))
		assert.LessOrEqual(t, dt.GetNLeaves(), 4)
		for _, n := range dt.Tree.Nodes {
			if n.IsLeaf() {
				assert.GreaterOrEqual(t, n.NSamples, 4)
			}
		}
	})

	t.Run("max features", func(t *testing.T) {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeatures{Mode: "count", Count: 1}), WithRandomState(7))
		require.NoError(t, dt.Fit(X, y))
		again := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeatures{Mode: "count", Count: 1}), WithRandomState(7))
		require.NoError(t, again.Fit(X, y))
		assert.Equal(t, dt.Tree.Nodes, again.Tree.Nodes)
	})
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Nil(t, params["max_depth"])
	assert.Nil(t, params["max_features"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
		"max_features":      "sqrt",
	}))
	assert.Equal(t, "entropy", dt.Criterion)
	assert.Equal(t, 5, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)
	assert.Equal(t, 2, dt.MinSamplesLeaf)
	assert.Equal(t, "sqrt", dt.MaxFeatures.Param())

	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": nil}))
	assert.Equal(t, 0, dt.MaxDepth)

	err := dt.SetParams(map[string]interface{}{"n_estimators": 10})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	clone := dt.Clone().(*DecisionTreeClassifier)
	assert.Equal(t, dt.Params, clone.Params)
	assert.False(t, clone.State.IsFitted())
}

func TestDecisionTreeClassifier_InvalidCriterion(t *testing.T) {
	X, y := separableData()
	dt := NewDecisionTreeClassifier(WithCriterion("squared_error"))
	assert.Error(t, dt.Fit(X, y))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nfErr *errors.NotFittedError
	assert.True(t, errors.As(err, &nfErr))

	_, err = dt.PredictProba(X)
	assert.Error(t, err)
}

func TestDecisionTreeClassifier_FeatureMismatch(t *testing.T) {
	X, y := separableData()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDecisionTreeClassifier_Weighted(t *testing.T) {
	X, y := separableData()
	weights := []float64{1, 1, 1, 1, 0, 0, 0, 0}

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, weights))

	// class 1 is never seen with positive weight but keeps its column
	assert.Equal(t, []float64{0, 1}, dt.Classes())
	proba, err := dt.PredictProba(mat.NewDense(1, 2, []float64{4, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 0, proba))

	assert.Error(t, dt.FitWeighted(X, y, make([]float64, 8)))
}

func TestDecisionTreeRegressor(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 5, 5, 5, 5})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{2.5, 7.5}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 5.0, pred.At(1, 0), 1e-12)
	assert.Equal(t, 1, dt.GetDepth())

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)

	leaves, err := dt.Apply(X)
	require.NoError(t, err)
	assert.Equal(t, leaves[0], leaves[3])
	assert.NotEqual(t, leaves[0], leaves[4])
}

func TestDecisionTreeRegressor_MaxDepthAveragesLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 3.5, pred.At(3, 0), 1e-12)
	assert.Equal(t, 2, dt.Tree.NLeaves())
}

func TestDecisionTreeRegressor_Params(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	assert.Equal(t, "squared_error", dt.GetParams()["criterion"])
	require.NoError(t, dt.SetParams(map[string]interface{}{"max_features": 0.5, "random_state": 3}))
	assert.Equal(t, 0.5, dt.GetParams()["max_features"])
	assert.Equal(t, 3, dt.GetParams()["random_state"])
	assert.Error(t, dt.SetParams(map[string]interface{}{"max_features": 2.0}))
}

func TestMaxFeaturesResolve(t *testing.T) {
	tests := []struct {
		value      interface{}
		classifier bool
		want       int
	}{
		{nil, true, 16},
		{"sqrt", false, 4},
		{"log2", false, 4},
		{"auto", true, 4},
		{"auto", false, 16},
		{3, false, 3},
		{100, false, 16},
		{0.25, false, 4},
		{0.01, false, 1},
	}
	for _, tt := range tests {
		m, err := ParseMaxFeatures(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Resolve(16, tt.classifier), "%v", tt.value)
	}

	_, err := ParseMaxFeatures("half")
	assert.Error(t, err)
	_, err = ParseMaxFeatures(-1)
	assert.Error(t, err)
}

func TestDecisionTree_GobRoundTrip(t *testing.T) {
	X, y := separableData()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	var est model.SKLearnCompatible = dt
	require.NoError(t, model.SaveModelToWriter(&est, &buf))

	var restored model.SKLearnCompatible
	require.NoError(t, model.LoadModelFromReader(&restored, &buf))

	pred, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))
}

func TestImpurity(t *testing.T) {
	assert.InDelta(t, 0.5, gini([]float64{2, 2}, 4), 1e-12)
	assert.InDelta(t, 1.0, entropy([]float64{2, 2}, 4), 1e-12)
	assert.Equal(t, 0.0, gini([]float64{4, 0}, 4))
	assert.False(t, math.IsNaN(entropy([]float64{0, 0}, 0)))
}

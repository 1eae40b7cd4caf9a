package ensemble

import (
	"strings"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// baseParamPrefix routes SetParams keys to the base estimator, e.g.
// "estimator__max_depth".
const baseParamPrefix = "estimator__"

var baggingParams = []string{"n_estimators", "max_samples", "bootstrap", "n_jobs", "random_state"}

// BaggingClassifier fits clones of a base classifier on random samples of the
// training data and averages their class probabilities.
type BaggingClassifier struct {
	Params
	State *model.StateManager

	BaseEstimator model.ClassifierMixin
	Estimators    []model.ClassifierMixin
	ClassLabels   []float64
}

// NewBaggingClassifier creates a bagging ensemble of 10 members. A nil base
// estimator means a fully grown DecisionTreeClassifier.
func NewBaggingClassifier(base model.ClassifierMixin, opts ...Option) *BaggingClassifier {
	if base == nil {
		base = tree.NewDecisionTreeClassifier()
	}
	return &BaggingClassifier{
		Params:        newParams("", tree.AllFeatures, append([]Option{WithNEstimators(10)}, opts...)),
		State:         model.NewStateManager(),
		BaseEstimator: base,
	}
}

// Fit fits the members in parallel.
func (b *BaggingClassifier) Fit(X, y mat.Matrix) error {
	const op = "BaggingClassifier.Fit"
	if err := b.validate(op); err != nil {
		return err
	}
	targets, err := checkInput(op, X, y)
	if err != nil {
		return err
	}

	rows, cols := X.Dims()
	seeds := memberSeeds(b.RandomState, b.NEstimators)
	members := make([]model.ClassifierMixin, b.NEstimators)
	err = fitMembers(b.NEstimators, b.NJobs, func(i int) error {
		rng := newRand(seeds[i])
		weights := sampleWeights(rng, rows, b.MaxSamples, b.Bootstrap)
		est, err := cloneMember(b.BaseEstimator, rng.Int64())
		if err != nil {
			return err
		}
		clf, ok := est.(model.ClassifierMixin)
		if !ok {
			return errors.NewValueError(op, "base estimator clone is not a classifier")
		}
		members[i] = clf
		return fitWithWeights(clf, X, y, weights)
	})
	if err != nil {
		return err
	}

	b.Estimators = members
	b.ClassLabels = uniqueSorted(targets)
	if b.State == nil {
		b.State = model.NewStateManager()
	}
	b.State.SetFitted(cols, rows)
	return nil
}

// PredictProba returns the mean class probabilities over all members.
func (b *BaggingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := checkFitted(b.State, "BaggingClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(b.ClassLabels), nil)
	index := classIndex(b.ClassLabels)
	for _, est := range b.Estimators {
		proba, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		accumulateProba(out, proba, est.Classes(), index)
	}
	out.Scale(1/float64(len(b.Estimators)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (b *BaggingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := b.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, b.ClassLabels), nil
}

// Score returns the mean accuracy on the given data.
func (b *BaggingClassifier) Score(X, y mat.Matrix) (float64, error) {
	return accuracy(b, X, y)
}

// Classes returns the class labels seen during Fit.
func (b *BaggingClassifier) Classes() []float64 { return b.ClassLabels }

// GetParams returns the ensemble's hyperparameters and the base estimator's
// under the "estimator__" prefix.
func (b *BaggingClassifier) GetParams() map[string]interface{} {
	return baggingGetParams(&b.Params, b.BaseEstimator)
}

// SetParams sets hyperparameters by name.
func (b *BaggingClassifier) SetParams(params map[string]interface{}) error {
	return baggingSetParams("BaggingClassifier", &b.Params, b.BaseEstimator, params)
}

// Clone returns an unfitted ensemble with the same hyperparameters.
func (b *BaggingClassifier) Clone() model.SKLearnCompatible {
	base, _ := b.BaseEstimator.Clone().(model.ClassifierMixin)
	return &BaggingClassifier{Params: b.Params, State: model.NewStateManager(), BaseEstimator: base}
}

// BaggingRegressor fits clones of a base regressor on random samples of the
// training data and averages their predictions.
type BaggingRegressor struct {
	Params
	State *model.StateManager

	BaseEstimator model.SKLearnCompatible
	Estimators    []model.SKLearnCompatible
}

// NewBaggingRegressor creates a bagging ensemble of 10 members. A nil base
// estimator means a fully grown DecisionTreeRegressor.
func NewBaggingRegressor(base model.SKLearnCompatible, opts ...Option) *BaggingRegressor {
	if base == nil {
		base = tree.NewDecisionTreeRegressor()
	}
	return &BaggingRegressor{
		Params:        newParams("", tree.AllFeatures, append([]Option{WithNEstimators(10)}, opts...)),
		State:         model.NewStateManager(),
		BaseEstimator: base,
	}
}

// Fit fits the members in parallel.
func (b *BaggingRegressor) Fit(X, y mat.Matrix) error {
	const op = "BaggingRegressor.Fit"
	if err := b.validate(op); err != nil {
		return err
	}
	if _, err := checkInput(op, X, y); err != nil {
		return err
	}

	rows, cols := X.Dims()
	seeds := memberSeeds(b.RandomState, b.NEstimators)
	members := make([]model.SKLearnCompatible, b.NEstimators)
	err := fitMembers(b.NEstimators, b.NJobs, func(i int) error {
		rng := newRand(seeds[i])
		weights := sampleWeights(rng, rows, b.MaxSamples, b.Bootstrap)
		est, err := cloneMember(b.BaseEstimator, rng.Int64())
		if err != nil {
			return err
		}
		members[i] = est
		return fitWithWeights(est, X, y, weights)
	})
	if err != nil {
		return err
	}

	b.Estimators = members
	if b.State == nil {
		b.State = model.NewStateManager()
	}
	b.State.SetFitted(cols, rows)
	return nil
}

// Predict returns the mean prediction over all members.
func (b *BaggingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := checkFitted(b.State, "BaggingRegressor", "Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for _, est := range b.Estimators {
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, pred)
	}
	out.Scale(1/float64(len(b.Estimators)), out)
	return out, nil
}

// Score returns R² on the given data.
func (b *BaggingRegressor) Score(X, y mat.Matrix) (float64, error) {
	return r2(b, X, y)
}

// GetParams returns the ensemble's hyperparameters and the base estimator's
// under the "estimator__" prefix.
func (b *BaggingRegressor) GetParams() map[string]interface{} {
	return baggingGetParams(&b.Params, b.BaseEstimator)
}

// SetParams sets hyperparameters by name.
func (b *BaggingRegressor) SetParams(params map[string]interface{}) error {
	return baggingSetParams("BaggingRegressor", &b.Params, b.BaseEstimator, params)
}

// Clone returns an unfitted ensemble with the same hyperparameters.
func (b *BaggingRegressor) Clone() model.SKLearnCompatible {
	return &BaggingRegressor{Params: b.Params, State: model.NewStateManager(), BaseEstimator: b.BaseEstimator.Clone()}
}

// cloneMember clones base and reseeds it when it has a random_state.
func cloneMember(base model.SKLearnCompatible, seed int64) (model.SKLearnCompatible, error) {
	est := base.Clone()
	if _, ok := est.GetParams()["random_state"]; ok {
		if err := est.SetParams(map[string]interface{}{"random_state": int(seed)}); err != nil {
			return nil, err
		}
	}
	return est, nil
}

func baggingGetParams(p *Params, base model.SKLearnCompatible) map[string]interface{} {
	out := paramSet{keys: baggingParams}.get(p)
	for key, value := range base.GetParams() {
		out[baseParamPrefix+key] = value
	}
	return out
}

func baggingSetParams(modelName string, p *Params, base model.SKLearnCompatible, params map[string]interface{}) error {
	own := make(map[string]interface{})
	nested := make(map[string]interface{})
	for key, value := range params {
		if strings.HasPrefix(key, baseParamPrefix) {
			nested[strings.TrimPrefix(key, baseParamPrefix)] = value
		} else {
			own[key] = value
		}
	}
	if err := (paramSet{modelName: modelName, keys: baggingParams}).set(p, own); err != nil {
		return err
	}
	if len(nested) > 0 {
		return base.SetParams(nested)
	}
	return nil
}

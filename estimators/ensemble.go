package estimators

import (
	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/sklearn/ensemble"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
	"github.com/YuminosukeSato/mlbench/sklearn/tree"
)

func forestGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		"n_estimators": {10, 20, 30},
		"max_features": {"auto", "sqrt", "log2", nil},
		"max_depth":    {5, 15, nil},
	}
}

// RandomForestClassifier wraps ensemble.RandomForestClassifier.
type RandomForestClassifier struct {
	*BaseEstimator
}

// NewRandomForestClassifier creates the wrapper with its default grid.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Classification},
		Name:            "RandomForestClassifier",
	}
	return &RandomForestClassifier{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewRandomForestClassifier()
	}, forestGrid(), opts...)}
}

// RandomForestRegressor wraps ensemble.RandomForestRegressor.
type RandomForestRegressor struct {
	*BaseEstimator
}

// NewRandomForestRegressor creates the wrapper with its default grid.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Regression},
		Name:            "RandomForestRegressor",
	}
	return &RandomForestRegressor{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewRandomForestRegressor()
	}, forestGrid(), opts...)}
}

// BaggingClassifier wraps ensemble.BaggingClassifier over decision trees.
type BaggingClassifier struct {
	*BaseEstimator
}

// NewBaggingClassifier creates the wrapper with its default grid.
func NewBaggingClassifier(opts ...Option) *BaggingClassifier {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Classification},
		Name:            "BaggingClassifier",
	}
	grid := model_selection.ParamGrid{"n_estimators": {10, 100, 1000, 2000}}
	return &BaggingClassifier{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewBaggingClassifier(tree.NewDecisionTreeClassifier())
	}, grid, opts...)}
}

// BaggingRegressor wraps ensemble.BaggingRegressor over regression trees.
type BaggingRegressor struct {
	*BaseEstimator
}

// NewBaggingRegressor creates the wrapper with its default grid.
func NewBaggingRegressor(opts ...Option) *BaggingRegressor {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Regression},
		Name:            "BaggingRegressor",
	}
	grid := model_selection.ParamGrid{"n_estimators": {10, 100, 1000, 2000}}
	return &BaggingRegressor{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewBaggingRegressor(tree.NewDecisionTreeRegressor())
	}, grid, opts...)}
}

// GradientBoostingClassifier wraps ensemble.GradientBoostingClassifier.
type GradientBoostingClassifier struct {
	*BaseEstimator
}

// NewGradientBoostingClassifier creates the wrapper with its default grid.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Classification},
		Name:            "GradientBoostingClassifier",
	}
	grid := model_selection.ParamGrid{
		"n_estimators": {10, 100, 1000, 2000},
		"max_depth":    {10, 100},
	}
	return &GradientBoostingClassifier{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewGradientBoostingClassifier()
	}, grid, opts...)}
}

// GradientBoostingRegressor wraps ensemble.GradientBoostingRegressor.
type GradientBoostingRegressor struct {
	*BaseEstimator
}

// NewGradientBoostingRegressor creates the wrapper with its default grid.
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	props := Properties{
		EstimatorFamily: []Family{EnsembleMethods},
		Tasks:           []Task{Regression},
		Name:            "GradientBoostingRegressor",
	}
	grid := model_selection.ParamGrid{
		"n_estimators": {10, 100, 500},
		"max_depth":    {10, 100},
	}
	return &GradientBoostingRegressor{NewBaseEstimator(props, func() model.SKLearnCompatible {
		return ensemble.NewGradientBoostingRegressor()
	}, grid, opts...)}
}

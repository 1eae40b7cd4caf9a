// Package mlbench benchmarks ensemble estimators on tabular datasets.
//
// Every strategy (an estimator plus its hyper-parameter grid) is tuned with
// an inner GridSearchCV and scored on the folds of an outer cross-validation.
// Fitted searches and their predictions are stored in a results backend so
// an interrupted benchmark picks up where it stopped.
//
// # Quick Start
//
//	dataset, _ := benchmarking.NewHDDDataset("iris.csv", "iris")
//	results, _ := benchmarking.NewHDDResults("results")
//
//	rf := estimators.NewRandomForestClassifier(estimators.WithRandomState(1))
//	strategies := []benchmarking.Strategy{
//	    benchmarking.NewStrategy(rf, rf.Hyperparameters()),
//	}
//
//	orch := benchmarking.NewOrchestrator(
//	    []benchmarking.Dataset{dataset}, strategies,
//	    model_selection.NewStratifiedKFold(5, true, 1), results)
//	if _, err := orch.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	rows, _ := benchmarking.NewEvaluator(results).Summary(metrics.Accuracy, benchmarking.Test)
//
// The same flow is available from the command line:
//
//	mlbench run --config bench.yaml
//	mlbench evaluate --path results --metric accuracy
//
// # Packages
//
//   - benchmarking: datasets, results backends (HDD, badger), orchestrator, evaluator
//   - estimators: the six ensemble wrappers and their registry
//   - sklearn/ensemble, sklearn/tree: random forests, bagging, gradient boosting
//   - sklearn/model_selection: KFold, StratifiedKFold, GridSearchCV
//   - metrics: scoring functions with standard errors
//   - config: YAML benchmark definitions
//   - report: box plots of fold scores
//   - core/model, core/parallel: persistence and worker pools
//   - pkg/errors, pkg/log: error types and structured logging
package mlbench

// Standard attribute keys used across mlbench log records.
//
// Keys follow a hierarchical naming convention ("model.name",
// "bench.strategy") so that records can be filtered by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "RandomForestClassifier", "GridSearchCV"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"
)

// Benchmark Context
// These attributes locate a record inside a benchmark run.
const (
	// RunIDKey is the unique identifier of one orchestrator run.
	RunIDKey = "bench.run_id"

	// StrategyKey is the name of the strategy being benchmarked.
	StrategyKey = "bench.strategy"

	// DatasetKey is the name of the dataset being benchmarked.
	DatasetKey = "bench.dataset"

	// CVFoldKey is the index of the outer cross-validation fold.
	CVFoldKey = "bench.cv_fold"

	// SplitKey is "train" or "test".
	SplitKey = "bench.split"

	// PathKey is a filesystem path involved in persistence.
	PathKey = "bench.path"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct class labels.
	ClassesKey = "data.classes"
)

// Performance and Scores
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ScoreKey records a cross-validated score.
	ScoreKey = "metrics.score"

	// StdErrKey records the standard error of a score.
	StdErrKey = "metrics.std_err"

	// MetricKey names the metric a score was computed with.
	MetricKey = "metrics.name"

	// CandidatesKey is the number of hyperparameter candidates in a grid search.
	CandidatesKey = "search.candidates"

	// HyperParamsKey contains a hyperparameter assignment.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSave    = "save"
	OperationLoad    = "load"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorFitFailed         = "FIT_FAILED"
)

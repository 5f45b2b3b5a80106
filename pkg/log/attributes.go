// Package log defines standard attribute keys for training and tracking operations.
//
// These keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") to enable structured log analysis and filtering.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator or transformer.
	// Examples: "LinearRegression", "StandardScaler", "Pipeline"
	ModelNameKey = "model.name"

	// StepKey identifies a named pipeline step ("preproc", "linear_model").
	StepKey = "pipeline.step"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	// Examples: "dataset", "trainer", "tracking"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the workflow.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DroppedKey indicates the number of rows removed by parsing or cleaning.
	DroppedKey = "data.dropped"

	// SourceKey records where the dataset was read from.
	SourceKey = "data.source"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RMSEKey records the root-mean-squared error of an evaluation.
	RMSEKey = "metrics.rmse"

	// RankKey records the numerical rank of a least-squares design matrix.
	RankKey = "linalg.rank"
)

// Experiment Tracking
const (
	// TrackingURIKey is the base URL of the tracking server.
	TrackingURIKey = "tracking.uri"

	// ExperimentNameKey is the configured experiment name.
	ExperimentNameKey = "tracking.experiment_name"

	// ExperimentIDKey is the server-assigned experiment identifier.
	ExperimentIDKey = "tracking.experiment_id"

	// RunIDKey is the server-assigned run identifier.
	RunIDKey = "tracking.run_id"

	// ResolutionKey records how the experiment id was obtained
	// ("created", "already_exists", "failed").
	ResolutionKey = "tracking.resolution"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Configuration
const (
	// RandomSeedKey records the split seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestSizeKey records the held-out fraction.
	TestSizeKey = "config.test_size"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationLoad      = "load"
	OperationClean     = "clean"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
	PhaseTracking      = "tracking"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorTracking          = "TRACKING_FAILURE"
)

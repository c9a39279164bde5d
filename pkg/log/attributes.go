// Package log defines standard attribute keys for machine learning operations.
//
// Keys follow a hierarchical naming convention ("model.name",
// "data.samples") so that runs can be filtered and compared from the
// structured log output.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or pipeline.
	// Examples: "ScaledLogisticRegression", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "spotcheck", "datasets", "summary"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	// Examples: "validation", "testing", "preprocessing"
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct labels.
	ClassesKey = "data.classes"

	// PathKey is the file a dataset was read from or a result written to.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records mean accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// AccuracyStdKey records the spread of accuracy across folds.
	AccuracyStdKey = "metrics.accuracy_std"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TuningKey records whether the tuning switch was given.
	TuningKey = "config.tuning"
)

// Standard attribute value constants for common operations.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)

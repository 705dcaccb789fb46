// Standard attribute keys. Keys are hierarchical ("model.name",
// "data.samples") so that a run can be filtered by prefix.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "PLSRegression".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed: see the Operation* values.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work ("tune", "store").
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: see the Phase* values.
	PhaseKey = "ml.phase"

	// HyperParamsKey holds the parameter set of one grid point.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the seed used for partitioning and resampling.
	RandomSeedKey = "config.random_seed"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	DatasetKey  = "data.name"

	// DroppedKey lists predictors removed by a filter.
	DroppedKey = "data.dropped"
)

// Resampling and tuning.
const (
	// ResampleKey names a resample, "Fold03.Rep2".
	ResampleKey = "cv.resample"

	// GridPointKey is the index of a grid point in expansion order.
	GridPointKey = "cv.grid_point"

	FoldsKey   = "cv.folds"
	RepeatsKey = "cv.repeats"

	// SelectionKey is the selection rule ("best", "oneSE").
	SelectionKey = "cv.selection"
)

// Performance metrics.
const (
	DurationMsKey = "perf.duration_ms"
	RMSEKey       = "metrics.rmse"
	RSquaredKey   = "metrics.rsquared"
	MAEKey        = "metrics.mae"
	IterationKey  = "training.iteration"
)

// Error context.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationTune         = "tune"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)

package log

// Model and operation context.
const (
	// ModelNameKey identifies a candidate by its catalog name, e.g. "Random Forest".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging. Set by GetLoggerWithName.
	ComponentKey = "component"

	// StageKey names the pipeline stage: ingestion, transformation or trainer.
	StageKey = "pipeline.stage"
)

// Data shape.
const (
	SamplesKey            = "data.samples"
	FeaturesKey           = "data.features"
	ColumnsKey            = "data.columns"
	PathKey               = "data.path"
	NumericColumnsKey     = "data.numeric_columns"
	CategoricalColumnsKey = "data.categorical_columns"
	TrainRowsKey          = "split.train_rows"
	TestRowsKey           = "split.test_rows"
)

// Training and evaluation.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records the coefficient of determination on held-out data.
	R2ScoreKey = "metrics.r2_score"

	// CVScoreKey records the mean cross-validated R² of a parameter combination.
	CVScoreKey = "metrics.cv_score"

	MSEKey               = "metrics.mse"
	RMSEKey              = "metrics.rmse"
	MAEKey               = "metrics.mae"
	ExplainedVarianceKey = "metrics.explained_variance"

	// ThresholdKey records the acceptance threshold of the trainer.
	ThresholdKey = "metrics.threshold"

	IterationKey     = "training.iteration"
	HyperParamsKey   = "model.hyperparams"
	CombinationsKey  = "search.combinations"
	FoldsKey         = "search.folds"
	RandomSeedKey    = "config.random_seed"
	ErrorTypeKey     = "error.type"
	WarningTypeKey   = "warning.type"
	ArtifactPathKey  = "artifact.path"
	ArtifactKindKey  = "artifact.kind"
	CandidateRankKey = "search.rank"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSearch    = "grid_search"
	OperationSave      = "save"
	OperationLoad      = "load"
)

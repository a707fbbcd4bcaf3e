// Package trainer fits every candidate of a model catalog, scores each on
// the held-out split and persists the best one.
//
// Candidates with a parameter grid are tuned with GridSearchCV on the
// training rows only; the held-out rows are used once per candidate, for
// the final R2 score.
package trainer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/metrics"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/report"
	"github.com/YuminosukeSato/regpipe/sklearn/model_selection"
	"github.com/YuminosukeSato/regpipe/telemetry"
)

// Stage is the stage name reported in errors and logs.
const Stage = "trainer"

// ReportEntry is the outcome of one catalog entry.
type ReportEntry struct {
	Name       string                 `json:"name"`
	Score      float64                `json:"score"`
	BestParams map[string]interface{} `json:"best_params"`
}

// MarshalJSON writes a non-finite score as null.
func (e ReportEntry) MarshalJSON() ([]byte, error) {
	var score *float64
	if !math.IsNaN(e.Score) && !math.IsInf(e.Score, 0) {
		score = &e.Score
	}
	params := e.BestParams
	if params == nil {
		params = map[string]interface{}{}
	}
	return json.Marshal(struct {
		Name       string                 `json:"name"`
		Score      *float64               `json:"score"`
		BestParams map[string]interface{} `json:"best_params"`
	}{e.Name, score, params})
}

// Report holds one entry per catalog entry, in catalog order.
type Report []ReportEntry

// Best returns the index of the highest score. Ties keep the earliest entry
// and NaN never wins unless every score is NaN. It returns -1 for an empty
// report.
func (r Report) Best() int {
	best := -1
	for i, e := range r {
		if math.IsNaN(e.Score) {
			continue
		}
		if best < 0 || e.Score > r[best].Score {
			best = i
		}
	}
	if best < 0 && len(r) > 0 {
		return 0
	}
	return best
}

// Result describes the selected model.
type Result struct {
	Name      string
	Score     float64
	Params    map[string]interface{}
	Report    Report
	ModelPath string
	Metrics   metrics.RegressionReport
}

// Trainer runs the model selection stage.
type Trainer struct {
	Catalog       Catalog
	Threshold     float64
	CVFolds       int
	ArtifactsDir  string
	ReportEnabled bool

	Logger   log.Logger
	Recorder *telemetry.Recorder
}

// New creates a Trainer with the default catalog seeded from cfg.
func New(cfg config.Config) *Trainer {
	return &Trainer{
		Catalog:       DefaultCatalog(cfg.Trainer.RandomState),
		Threshold:     cfg.Trainer.Threshold,
		CVFolds:       cfg.Trainer.CVFolds,
		ArtifactsDir:  cfg.ArtifactsDir,
		ReportEnabled: cfg.Report.Enabled,
		Logger:        log.GetLoggerWithName(Stage),
	}
}

// Run trains the catalog on train and scores it on test. The last column of
// both matrices is the target. A best score below Threshold fails with
// KindQualityBelowThreshold and writes no model.
func (t *Trainer) Run(train, test *mat.Dense) (Result, error) {
	fail := func(kind errors.Kind, err error) (Result, error) {
		return Result{}, errors.NewStageError(Stage, kind, err)
	}

	if err := t.Catalog.Validate(); err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	trainX, trainY, err := splitTarget(train)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	testX, testY, err := splitTarget(test)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	rows, features := trainX.Dims()
	testRows, testFeatures := testX.Dims()
	if features != testFeatures {
		return fail(errors.KindInvalidInput,
			errors.NewDimensionError("trainer.Run", features, testFeatures, 1))
	}
	t.Logger.Info("Splitting training and test input data",
		log.SamplesKey, rows,
		log.FeaturesKey, features,
		log.TestRowsKey, testRows,
	)

	rep := make(Report, 0, len(t.Catalog))
	fitted := make([]model.Regressor, 0, len(t.Catalog))
	for rank, entry := range t.Catalog {
		est, params, score, err := t.evaluate(entry, trainX, trainY, testX, testY)
		if err != nil {
			return fail(errors.KindFitFailure, errors.Wrapf(err, "candidate %q", entry.Name))
		}
		t.Logger.Info("Candidate evaluated",
			log.ModelNameKey, entry.Name,
			log.CandidateRankKey, rank,
			log.HyperParamsKey, model_selection.FormatParams(params),
			log.R2ScoreKey, score,
		)
		rep = append(rep, ReportEntry{Name: entry.Name, Score: score, BestParams: params})
		fitted = append(fitted, est)
	}

	if t.ReportEnabled {
		if err := t.writeReport(rep); err != nil {
			return fail(errors.KindIO, err)
		}
	}

	bestIdx := rep.Best()
	best := rep[bestIdx]
	t.Recorder.SetBest(best.Score)
	modelPath := filepath.Join(t.ArtifactsDir, config.ModelFile)

	if math.IsNaN(best.Score) || best.Score < t.Threshold {
		t.Logger.Warn("No model reached the threshold",
			log.ModelNameKey, best.Name,
			log.R2ScoreKey, best.Score,
			log.ThresholdKey, t.Threshold,
		)
		err := errors.WithHint(
			errors.Newf("best model %q scored %.4f, below threshold %.4f", best.Name, best.Score, t.Threshold),
			"lower trainer.threshold or provide more informative features")
		// drop the model.gob of an earlier run in the same directory
		if rmErr := os.Remove(modelPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fail(errors.KindIO, rmErr)
		}
		return Result{Report: rep}, errors.NewStageError(Stage, errors.KindQualityBelowThreshold, err)
	}
	t.Logger.Info("Best model found",
		log.ModelNameKey, best.Name,
		log.R2ScoreKey, best.Score,
		log.HyperParamsKey, model_selection.FormatParams(best.BestParams),
	)

	if err := os.MkdirAll(t.ArtifactsDir, 0o755); err != nil {
		return fail(errors.KindIO, err)
	}
	artifact := &model.Artifact{
		Name:   best.Name,
		Score:  best.Score,
		Params: best.BestParams,
		Model:  fitted[bestIdx],
	}
	if err := model.SaveArtifact(artifact, modelPath); err != nil {
		return fail(errors.KindSerialization, err)
	}
	t.Logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.ArtifactPathKey, modelPath,
	)

	// score the persisted estimator, not the in-memory one
	loaded, err := model.LoadArtifact(modelPath)
	if err != nil {
		return fail(errors.KindSerialization, err)
	}
	pred, err := loaded.Model.Predict(testX)
	if err != nil {
		return fail(errors.KindFitFailure, err)
	}
	scores, err := metrics.Evaluate(testY, pred)
	if err != nil {
		return fail(errors.KindFitFailure, err)
	}
	t.Logger.Info("Selected model metrics",
		log.ModelNameKey, loaded.Name,
		log.R2ScoreKey, scores.R2,
		log.MSEKey, scores.MSE,
		log.RMSEKey, scores.RMSE,
		log.MAEKey, scores.MAE,
		log.ExplainedVarianceKey, scores.ExplainedVariance,
	)

	return Result{
		Name:      loaded.Name,
		Score:     scores.R2,
		Params:    best.BestParams,
		Report:    rep,
		ModelPath: modelPath,
		Metrics:   scores,
	}, nil
}

// evaluate tunes and fits one entry, then scores it on the held-out rows.
func (t *Trainer) evaluate(entry Entry, trainX, trainY, testX, testY *mat.Dense) (est model.Regressor, params map[string]interface{}, score float64, err error) {
	timer := telemetry.Start()
	logger := t.Logger.With(log.ModelNameKey, entry.Name)

	err = errors.SafeExecute(fmt.Sprintf("trainer.evaluate(%s)", entry.Name), func() error {
		if len(entry.Grid) == 0 {
			est = entry.New()
			params = map[string]interface{}{}
			logger.Debug("Fitting with default parameters", log.OperationKey, log.OperationFit)
			return est.Fit(trainX, trainY)
		}

		gs := model_selection.NewGridSearchCV(entry.New(), entry.Grid, model_selection.NewKFold(t.CVFolds, false, 0))
		gs.Logger = logger
		if err := gs.Fit(trainX, trainY); err != nil {
			return err
		}
		est, params = gs.BestEstimator, gs.BestParams
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}

	pred, err := est.Predict(testX)
	if err != nil {
		return nil, nil, 0, err
	}
	score, err = metrics.R2Score(testY, pred)
	if err != nil {
		return nil, nil, 0, err
	}
	t.Recorder.ObserveCandidate(entry.Name, timer.Elapsed(), score)
	return est, params, score, nil
}

func (t *Trainer) writeReport(rep Report) error {
	jsonPath := filepath.Join(t.ArtifactsDir, config.ReportJSONFile)
	if err := report.WriteJSON(jsonPath, rep); err != nil {
		return err
	}
	bars := make([]report.Bar, len(rep))
	for i, e := range rep {
		bars[i] = report.Bar{Label: e.Name, Value: e.Score}
	}
	pngPath := filepath.Join(t.ArtifactsDir, config.ReportPNGFile)
	if err := report.WriteBarChart(pngPath, "Model report", bars, t.Threshold); err != nil {
		return err
	}
	t.Logger.Info("Model report written",
		log.ArtifactPathKey, jsonPath,
		log.ArtifactKindKey, "report",
	)
	return nil
}

// splitTarget separates the last column of m.
func splitTarget(m *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	if m == nil {
		return nil, nil, errors.NewValueError("trainer", "nil array")
	}
	r, c := m.Dims()
	if r == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "trainer: array has no rows")
	}
	if c < 2 {
		return nil, nil, errors.NewDimensionError("trainer", 2, c, 1)
	}
	X := mat.DenseCopyOf(m.Slice(0, r, 0, c-1))
	y := mat.DenseCopyOf(m.Slice(0, r, c-1, c))
	return X, y, nil
}

// LoadModel reads the artifact written by Run.
func LoadModel(path string) (*model.Artifact, error) {
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindSerialization, err)
	}
	return a, nil
}

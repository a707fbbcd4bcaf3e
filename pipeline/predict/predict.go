// Package predict serves the artifacts of a finished run: it loads the
// saved preprocessor and model and scores new rows with them.
package predict

import (
	"path/filepath"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/dataset"
	"github.com/YuminosukeSato/regpipe/pipeline/transformation"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/preprocessing"

	// estimator packages register their gob types
	_ "github.com/YuminosukeSato/regpipe/pipeline/trainer"
)

// Stage is the stage name reported in errors and logs.
const Stage = "predict"

// Predictor applies a fitted preprocessor and model to raw rows.
type Predictor struct {
	Preprocessor *preprocessing.ColumnTransformer
	Artifact     *model.Artifact
	Logger       log.Logger
}

// Load reads preprocessor.gob and model.gob from artifactsDir.
func Load(artifactsDir string) (*Predictor, error) {
	pre, err := transformation.LoadPreprocessor(filepath.Join(artifactsDir, config.PreprocessorFile))
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindSerialization, err)
	}
	a, err := model.LoadArtifact(filepath.Join(artifactsDir, config.ModelFile))
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindSerialization, err)
	}
	return &Predictor{Preprocessor: pre, Artifact: a, Logger: log.GetLoggerWithName(Stage)}, nil
}

// Predict returns one prediction per row of f. Columns the preprocessor was
// not fitted on, such as the target, are ignored.
func (p *Predictor) Predict(f *dataset.Frame) ([]float64, error) {
	X, err := p.Preprocessor.Transform(f)
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindInvalidInput, err)
	}
	pred, err := p.Artifact.Model.Predict(X)
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindFitFailure, err)
	}
	out := model.Column(pred, 0)
	p.Logger.Debug("Predicted",
		log.OperationKey, log.OperationPredict,
		log.ModelNameKey, p.Artifact.Name,
		log.SamplesKey, len(out),
	)
	return out, nil
}

// PredictCSV reads path and predicts every row.
func (p *Predictor) PredictCSV(path string) ([]float64, error) {
	f, err := dataset.ReadCSV(path)
	if err != nil {
		return nil, errors.NewStageError(Stage, errors.KindInvalidInput, err)
	}
	return p.Predict(f)
}

// Package transformation turns the train and test splits into numeric
// matrices. The preprocessor is fitted on the train split only and saved
// next to the other artifacts.
package transformation

import (
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/dataset"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/preprocessing"
)

// Stage is the stage name reported in errors and logs.
const Stage = "transformation"

// Transformer runs the transformation stage.
type Transformer struct {
	TargetColumn  string
	NumericScaler string
	ArtifactsDir  string

	Logger log.Logger
}

// New creates a Transformer from cfg.
func New(cfg config.Config) *Transformer {
	return &Transformer{
		TargetColumn:  cfg.Transformation.TargetColumn,
		NumericScaler: cfg.Transformation.NumericScaler,
		ArtifactsDir:  cfg.ArtifactsDir,
		Logger:        log.GetLoggerWithName(Stage),
	}
}

// Run reads both splits and returns [features | target] matrices together
// with the path of the saved preprocessor.
func (tr *Transformer) Run(trainPath, testPath string) (train, test *mat.Dense, preprocessorPath string, err error) {
	fail := func(kind errors.Kind, err error) (*mat.Dense, *mat.Dense, string, error) {
		return nil, nil, "", errors.NewStageError(Stage, kind, err)
	}

	trainFrame, err := readSplit(trainPath)
	if err != nil {
		return fail(errors.KindOf(err), err)
	}
	testFrame, err := readSplit(testPath)
	if err != nil {
		return fail(errors.KindOf(err), err)
	}
	tr.Logger.Info("Read train and test data",
		log.TrainRowsKey, trainFrame.Len(),
		log.TestRowsKey, testFrame.Len(),
	)

	trainX, trainY, err := tr.split(trainFrame)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	testX, testY, err := tr.split(testFrame)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}

	numeric, categorical := ClassifyColumns(trainX)
	tr.Logger.Info("Feature columns classified",
		log.NumericColumnsKey, numeric,
		log.CategoricalColumnsKey, categorical,
	)

	scaler, err := preprocessing.NewScaler(tr.NumericScaler)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	pre := preprocessing.NewColumnTransformer(numeric, categorical, preprocessing.WithNumericScaler(scaler))

	trainFeatures, err := pre.FitTransform(trainX)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}
	testFeatures, err := pre.Transform(testX)
	if err != nil {
		return fail(errors.KindInvalidInput, err)
	}

	if err := os.MkdirAll(tr.ArtifactsDir, 0o755); err != nil {
		return fail(errors.KindIO, err)
	}
	preprocessorPath = filepath.Join(tr.ArtifactsDir, config.PreprocessorFile)
	if err := model.SaveModel(pre, preprocessorPath); err != nil {
		return fail(errors.KindSerialization, err)
	}
	tr.Logger.Info("Preprocessor saved",
		log.OperationKey, log.OperationSave,
		log.ArtifactPathKey, preprocessorPath,
		log.FeaturesKey, pre.NFeaturesOut(),
	)

	return appendTarget(trainFeatures, trainY), appendTarget(testFeatures, testY), preprocessorPath, nil
}

func readSplit(path string) (*dataset.Frame, error) {
	f, err := dataset.ReadCSV(path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.NewStageError(Stage, errors.KindInputNotFound, err)
	}
	return nil, errors.NewStageError(Stage, errors.KindInvalidInput, err)
}

// split separates the target column from the features. Every target cell
// must be a number.
func (tr *Transformer) split(f *dataset.Frame) (*dataset.Frame, []float64, error) {
	if !f.HasColumn(tr.TargetColumn) {
		return nil, nil, errors.WithHint(
			errors.NewValidationError("target_column", "column not found in dataset", tr.TargetColumn),
			"set transformation.target_column")
	}
	cells, err := f.Column(tr.TargetColumn)
	if err != nil {
		return nil, nil, err
	}
	y := make([]float64, len(cells))
	for i, c := range cells {
		v, ok := preprocessing.ParseNumeric(c)
		if !ok || preprocessing.IsMissing(c) {
			return nil, nil, errors.NewValueError("transformation",
				"target "+tr.TargetColumn+" has non-numeric value "+c)
		}
		y[i] = v
	}
	features, err := f.Drop(tr.TargetColumn)
	if err != nil {
		return nil, nil, err
	}
	return features, y, nil
}

// ClassifyColumns splits the columns of f into numeric and categorical ones.
// A column is numeric when every non-missing cell parses as a float.
func ClassifyColumns(f *dataset.Frame) (numeric, categorical []string) {
	for _, name := range f.Columns() {
		cells, _ := f.Column(name)
		isNumeric := true
		for _, c := range cells {
			if _, ok := preprocessing.ParseNumeric(c); !ok {
				isNumeric = false
				break
			}
		}
		if isNumeric {
			numeric = append(numeric, name)
		} else {
			categorical = append(categorical, name)
		}
	}
	return numeric, categorical
}

func appendTarget(X *mat.Dense, y []float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(X)
	out.SetCol(c, y)
	return out
}

// LoadPreprocessor reads a preprocessor written by Run.
func LoadPreprocessor(path string) (*preprocessing.ColumnTransformer, error) {
	var ct preprocessing.ColumnTransformer
	if err := model.LoadModel(&ct, path); err != nil {
		return nil, err
	}
	return &ct, nil
}

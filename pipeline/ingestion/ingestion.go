// Package ingestion loads the raw dataset, keeps a copy of it under the
// artifacts directory and writes a seeded train/test split.
package ingestion

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/regpipe/config"
	"github.com/YuminosukeSato/regpipe/dataset"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/sklearn/model_selection"
)

// Stage is the stage name reported in errors and logs.
const Stage = "ingestion"

// Ingestor runs the ingestion stage.
type Ingestor struct {
	InputPath    string
	ArtifactsDir string
	TestSize     float64
	RandomState  int

	Logger log.Logger
}

// New creates an Ingestor from cfg.
func New(cfg config.Config) *Ingestor {
	return &Ingestor{
		InputPath:    cfg.InputPath,
		ArtifactsDir: cfg.ArtifactsDir,
		TestSize:     cfg.Ingestion.TestSize,
		RandomState:  cfg.Ingestion.RandomState,
		Logger:       log.GetLoggerWithName(Stage),
	}
}

func (in *Ingestor) path(name string) string {
	return filepath.Join(in.ArtifactsDir, name)
}

// Run reads InputPath and writes data.csv, train.csv and test.csv.
// It returns the train and test paths.
func (in *Ingestor) Run() (trainPath, testPath string, err error) {
	in.Logger.Info("Data ingestion started", log.PathKey, in.InputPath)

	frame, err := dataset.ReadCSV(in.InputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", errors.NewStageError(Stage, errors.KindInputNotFound,
				errors.WithHint(err, "set input_path or pass -input"))
		}
		return "", "", errors.NewStageError(Stage, errors.KindInvalidInput, err)
	}
	if frame.Len() == 0 {
		return "", "", errors.NewStageError(Stage, errors.KindInvalidInput,
			errors.Wrapf(errors.ErrEmptyData, "%s has a header but no rows", in.InputPath))
	}
	in.Logger.Info("Dataset loaded",
		log.SamplesKey, frame.Len(),
		log.ColumnsKey, frame.Width(),
	)

	trainIdx, testIdx, err := model_selection.TrainTestSplit(frame.Len(), in.TestSize, in.RandomState)
	if err != nil {
		return "", "", errors.NewStageError(Stage, errors.KindInvalidInput, err)
	}

	if err := os.MkdirAll(in.ArtifactsDir, 0o755); err != nil {
		return "", "", errors.NewStageError(Stage, errors.KindIO, err)
	}

	rawPath := in.path(config.RawDataFile)
	if err := frame.WriteCSV(rawPath); err != nil {
		return "", "", errors.NewStageError(Stage, errors.KindIO, err)
	}
	in.Logger.Info("Raw data saved", log.ArtifactPathKey, rawPath)

	trainPath = in.path(config.TrainFile)
	testPath = in.path(config.TestFile)
	if err := frame.Select(trainIdx).WriteCSV(trainPath); err != nil {
		return "", "", errors.NewStageError(Stage, errors.KindIO, err)
	}
	if err := frame.Select(testIdx).WriteCSV(testPath); err != nil {
		return "", "", errors.NewStageError(Stage, errors.KindIO, err)
	}

	in.Logger.Info("Train-test split complete",
		log.RandomSeedKey, in.RandomState,
		log.TrainRowsKey, len(trainIdx),
		log.TestRowsKey, len(testIdx),
	)
	return trainPath, testPath, nil
}

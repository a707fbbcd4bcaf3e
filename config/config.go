// Package config loads the pipeline configuration: built-in defaults,
// overridden by an optional YAML file, overridden by REGPIPE__ environment
// variables.
package config

import (
	"io/fs"
	"math"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
)

// SchemaVersion is the only accepted value of schema_version.
const SchemaVersion = "v1"

// EnvPrefix and EnvDelim define the environment override scheme, e.g.
// REGPIPE__TRAINER__THRESHOLD=0.7.
const (
	EnvPrefix = "REGPIPE__"
	EnvDelim  = "__"
)

// Artifact file names inside ArtifactsDir.
const (
	RawDataFile      = "data.csv"
	TrainFile        = "train.csv"
	TestFile         = "test.csv"
	PreprocessorFile = "preprocessor.gob"
	ModelFile        = "model.gob"
	ReportJSONFile   = "model_report.json"
	ReportPNGFile    = "model_report.png"
	MetricsFile      = "metrics.prom"
)

type IngestionConfig struct {
	TestSize    float64 `koanf:"test_size"`
	RandomState int     `koanf:"random_state"`
}

type TransformationConfig struct {
	TargetColumn  string `koanf:"target_column"`
	NumericScaler string `koanf:"numeric_scaler"` // standard|minmax
}

type TrainerConfig struct {
	Threshold   float64 `koanf:"threshold"`
	CVFolds     int     `koanf:"cv_folds"`
	RandomState int     `koanf:"random_state"`
}

type ReportConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// Config is passed explicitly to every stage.
type Config struct {
	SchemaVersion string `koanf:"schema_version"`
	InputPath     string `koanf:"input_path"`
	ArtifactsDir  string `koanf:"artifacts_dir"`

	Ingestion      IngestionConfig      `koanf:"ingestion"`
	Transformation TransformationConfig `koanf:"transformation"`
	Trainer        TrainerConfig        `koanf:"trainer"`
	Report         ReportConfig         `koanf:"report"`
	Log            LogConfig            `koanf:"log"`
}

var defaults = map[string]interface{}{
	"schema_version":                SchemaVersion,
	"input_path":                    filepath.Join("notebook", "stud.csv"),
	"artifacts_dir":                 "artifacts",
	"ingestion.test_size":           0.2,
	"ingestion.random_state":        42,
	"transformation.target_column":  "math_score",
	"transformation.numeric_scaler": "standard",
	"trainer.threshold":             0.6,
	"trainer.cv_folds":              3,
	"trainer.random_state":          42,
	"report.enabled":                true,
	"log.level":                     "info",
}

// Default returns the built-in configuration without consulting any file
// or environment variable.
func Default() Config {
	k, err := withDefaults()
	if err != nil {
		panic(err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load merges defaults, the YAML file at path (skipped when path is empty
// or the file does not exist) and REGPIPE__ environment variables, then
// validates the result.
func Load(path string) (Config, error) {
	k, err := withDefaults()
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load config file %s", path)
		}
	}
	if sv := k.String("schema_version"); sv != SchemaVersion {
		return Config{}, errors.NewValidationError("schema_version", "unsupported schema version", sv)
	}

	if err := k.Load(env.Provider(EnvPrefix, EnvDelim, envKey), nil); err != nil {
		return Config{}, errors.Wrap(err, "load environment overrides")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func withDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, errors.Wrapf(err, "config default %s", key)
		}
	}
	return k, nil
}

// envKey maps REGPIPE__TRAINER__CV_FOLDS to trainer__cv_folds; the provider
// then splits on the delimiter.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.InputPath == "":
		return errors.NewValidationError("input_path", "must not be empty", c.InputPath)
	case c.ArtifactsDir == "":
		return errors.NewValidationError("artifacts_dir", "must not be empty", c.ArtifactsDir)
	case !(c.Ingestion.TestSize > 0 && c.Ingestion.TestSize < 1):
		return errors.NewValidationError("ingestion.test_size", "must be in (0, 1)", c.Ingestion.TestSize)
	case c.Transformation.TargetColumn == "":
		return errors.NewValidationError("transformation.target_column", "must not be empty", c.Transformation.TargetColumn)
	case c.Transformation.NumericScaler != "standard" && c.Transformation.NumericScaler != "minmax":
		return errors.NewValidationError("transformation.numeric_scaler", "must be 'standard' or 'minmax'", c.Transformation.NumericScaler)
	case math.IsNaN(c.Trainer.Threshold) || math.IsInf(c.Trainer.Threshold, 0):
		return errors.NewValidationError("trainer.threshold", "must be finite", c.Trainer.Threshold)
	case c.Trainer.CVFolds < 2:
		return errors.NewValidationError("trainer.cv_folds", "must be at least 2", c.Trainer.CVFolds)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", err.Error(), c.Log.Level)
	}
	return nil
}

// ArtifactPath joins name onto the artifacts directory.
func (c Config) ArtifactPath(name string) string {
	return filepath.Join(c.ArtifactsDir, name)
}

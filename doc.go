// Package regpipe is a batch training pipeline for tabular regression.
//
// A run reads a CSV file, writes a seeded train/test split, fits a
// preprocessor on the train rows, trains a fixed catalog of regressors with
// per-model grid search and keeps the model with the best held-out R2 score.
//
// # Features
//
//   - scikit-learn style estimators on gonum: linear regression, decision
//     tree, random forest, gradient boosting, AdaBoost, k-nearest neighbours,
//     XGBoost-style and CatBoost-style gradient boosting
//   - GridSearchCV with K-fold cross-validation
//   - Structured errors with stack traces (cockroachdb/errors) and a stage/kind
//     taxonomy for pipeline failures
//   - Structured logging backed by zerolog
//   - koanf configuration: defaults, YAML file, REGPIPE__ environment variables
//   - Prometheus textfile metrics and a gonum/plot model report
//
// # Quick Start
//
// From the command line:
//
//	go run ./cmd/regpipe -input notebook/stud.csv -artifacts artifacts
//
// From Go:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/regpipe/config"
//	    "github.com/YuminosukeSato/regpipe/pipeline"
//	)
//
//	func main() {
//	    cfg, err := config.Load("regpipe.yaml")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := pipeline.New(cfg).Run()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.ModelName, res.Score)
//	}
//
// # Packages
//
//   - cmd/regpipe: command line entry point
//   - config: configuration loading and validation
//   - pipeline: stage orchestration
//   - pipeline/ingestion, pipeline/transformation, pipeline/trainer: the stages
//   - dataset: CSV frames
//   - preprocessing: imputers, scalers, one-hot encoding, ColumnTransformer
//   - sklearn/...: estimators and model selection
//   - metrics: regression metrics (R², MSE, RMSE, MAE, explained variance)
//   - core/model: estimator interfaces, parameter handling, gob persistence
//   - report, telemetry: model report and run metrics
//   - pkg/errors, pkg/log: error handling and logging
//
// # Artifacts
//
// Everything a run produces lives under the artifacts directory: data.csv,
// train.csv, test.csv, preprocessor.gob, model.gob, model_report.json,
// model_report.png and metrics.prom. model.gob holds a core/model.Artifact
// and can be read back with model.LoadArtifact.
package regpipe

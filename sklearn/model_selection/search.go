package model_selection

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/metrics"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
)

// CVResult holds the cross-validated scores of one parameter combination.
type CVResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
}

// CrossValScore fits a fresh clone of est on every training fold and returns
// the R² of each held-out fold.
func CrossValScore(est model.Regressor, params map[string]interface{}, X, y mat.Matrix, cv *KFold) ([]float64, error) {
	n, _ := X.Dims()
	folds, err := cv.Split(n)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		clone := est.Clone()
		if err := clone.SetParams(params); err != nil {
			return nil, err
		}
		if err := clone.Fit(SelectRows(X, fold.TrainIndices), SelectRows(y, fold.TrainIndices)); err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		pred, err := clone.Predict(SelectRows(X, fold.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		score, err := metrics.R2Score(SelectRows(y, fold.TestIndices), pred)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		scores[i] = score
	}
	return scores, nil
}

// GridSearchCV evaluates every combination of Grid with K-fold
// cross-validation and refits the best one on the full data.
//
//	gs := model_selection.NewGridSearchCV(tree.NewDecisionTreeRegressor(), grid, model_selection.NewKFold(3, false, 0))
//	if err := gs.Fit(X, y); err != nil { ... }
//	best := gs.BestEstimator
type GridSearchCV struct {
	Estimator model.Regressor
	Grid      ParamGrid
	CV        *KFold
	Logger    log.Logger

	Results       []CVResult
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Regressor
}

// NewGridSearchCV creates a search over grid for est.
func NewGridSearchCV(est model.Regressor, grid ParamGrid, cv *KFold) *GridSearchCV {
	return &GridSearchCV{
		Estimator: est,
		Grid:      grid,
		CV:        cv,
		Logger:    log.GetLoggerWithName("model_selection"),
	}
}

// Fit runs the search. The best combination is the one with the highest mean
// fold score; ties keep the earliest combination. A combination whose folds
// fail to fit scores NaN and ranks last; when every combination fails the
// search returns the last fold error. Invalid parameters abort the search.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	n, _, err := model.CheckXY("GridSearchCV.Fit", X, y)
	if err != nil {
		return err
	}
	if err := g.Grid.Validate(); err != nil {
		return err
	}
	if _, err := g.CV.Split(n); err != nil {
		return err
	}

	combos := g.Grid.Combinations()
	g.Results = make([]CVResult, 0, len(combos))
	g.BestScore = math.Inf(-1)
	g.BestParams = nil
	g.BestEstimator = nil

	var lastErr error
	for _, params := range combos {
		if err := g.Estimator.Clone().SetParams(params); err != nil {
			return errors.Wrapf(err, "grid search with %s", FormatParams(params))
		}

		start := time.Now()
		mean := math.NaN()
		scores, err := CrossValScore(g.Estimator, params, X, y, g.CV)
		if err != nil {
			// scikit-learn error_score=nan: the combination ranks last
			lastErr = err
			errors.Warn(errors.NewFitFailedWarning(FormatParams(params), err))
		} else {
			mean = stat.Mean(scores, nil)
		}
		g.Results = append(g.Results, CVResult{Params: params, FoldScores: scores, MeanScore: mean})

		g.Logger.Debug("Combination evaluated",
			log.OperationKey, log.OperationSearch,
			log.HyperParamsKey, FormatParams(params),
			log.CVScoreKey, mean,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)

		if !math.IsNaN(mean) && (g.BestParams == nil || mean > g.BestScore) {
			g.BestScore = mean
			g.BestParams = params
		}
	}
	if g.BestParams == nil {
		g.BestScore = math.NaN()
		return errors.Wrapf(lastErr, "grid search: all %d combinations failed to fit", len(combos))
	}

	best := g.Estimator.Clone()
	if err := best.SetParams(g.BestParams); err != nil {
		return err
	}
	if err := best.Fit(X, y); err != nil {
		return errors.Wrapf(err, "refit with %s", FormatParams(g.BestParams))
	}
	g.BestEstimator = best

	g.Logger.Info("Grid search finished",
		log.OperationKey, log.OperationSearch,
		log.CombinationsKey, len(combos),
		log.FoldsKey, g.CV.GetNSplits(),
		log.HyperParamsKey, FormatParams(g.BestParams),
		log.CVScoreKey, g.BestScore,
	)
	return nil
}

package trainer

import (
	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/sklearn/catboost"
	"github.com/YuminosukeSato/regpipe/sklearn/ensemble"
	"github.com/YuminosukeSato/regpipe/sklearn/linear_model"
	"github.com/YuminosukeSato/regpipe/sklearn/model_selection"
	"github.com/YuminosukeSato/regpipe/sklearn/neighbors"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
	"github.com/YuminosukeSato/regpipe/sklearn/xgboost"
)

// Entry is one candidate of the model catalog. New must return a fresh,
// unfitted estimator on every call. An empty Grid means the estimator is
// fitted once with its defaults.
type Entry struct {
	Name string
	New  func() model.Regressor
	Grid model_selection.ParamGrid
}

// Catalog is the ordered list of candidates. Order decides ties.
type Catalog []Entry

var estimatorCounts = []interface{}{8, 16, 32, 64, 128, 256}

// DefaultCatalog returns the eight candidates and their search grids.
// seed drives every randomised estimator.
func DefaultCatalog(seed int) Catalog {
	return Catalog{
		{
			Name: "Random Forest",
			New: func() model.Regressor {
				return ensemble.NewRandomForestRegressor(ensemble.WithForestRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"n_estimators": estimatorCounts,
			},
		},
		{
			Name: "Decision Tree",
			New: func() model.Regressor {
				return tree.NewDecisionTreeRegressor(tree.WithRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"criterion": {tree.CriterionSquaredError, tree.CriterionFriedmanMSE, tree.CriterionAbsoluteError, tree.CriterionPoisson},
			},
		},
		{
			Name: "Gradient Boosting",
			New: func() model.Regressor {
				return ensemble.NewGradientBoostingRegressor(ensemble.WithGBRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"learning_rate": {0.1, 0.01, 0.05, 0.001},
				"subsample":     {0.6, 0.7, 0.75, 0.8, 0.85, 0.9},
				"n_estimators":  estimatorCounts,
			},
		},
		{
			Name: "Linear Regression",
			New: func() model.Regressor {
				return linear_model.NewLinearRegression()
			},
			Grid: model_selection.ParamGrid{},
		},
		{
			Name: "K-Neighbors Regressor",
			New: func() model.Regressor {
				return neighbors.NewKNeighborsRegressor()
			},
			Grid: model_selection.ParamGrid{},
		},
		{
			Name: "XGBRegressor",
			New: func() model.Regressor {
				return xgboost.NewXGBRegressor(xgboost.WithRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"learning_rate": {0.1, 0.01, 0.05, 0.001},
				"n_estimators":  estimatorCounts,
			},
		},
		{
			Name: "CatBoosting Regressor",
			New: func() model.Regressor {
				return catboost.NewCatBoostRegressor()
			},
			Grid: model_selection.ParamGrid{
				"learning_rate": {0.01, 0.05, 0.1},
				"iterations":    {30, 5, 100},
				"depth":         {6, 8, 10},
			},
		},
		{
			Name: "AdaBoost Regressor",
			New: func() model.Regressor {
				return ensemble.NewAdaBoostRegressor(ensemble.WithAdaRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"learning_rate": {0.1, 0.01, 0.05, 0.001},
				"n_estimators":  estimatorCounts,
			},
		},
	}
}

// Names returns the entry names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

// Validate rejects an empty catalog, unnamed or duplicate entries, entries
// without a constructor, grid parameters with no values and grid parameters
// the estimator does not accept.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.NewValidationError("catalog", "must contain at least one entry", 0)
	}
	seen := make(map[string]struct{}, len(c))
	for _, e := range c {
		if e.Name == "" {
			return errors.NewValidationError("catalog", "entry has no name", e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return errors.NewValidationError("catalog", "duplicate entry name", e.Name)
		}
		seen[e.Name] = struct{}{}

		if e.New == nil {
			return errors.NewValidationError(e.Name, "entry has no constructor", nil)
		}
		if err := e.Grid.Validate(); err != nil {
			return errors.Wrapf(err, "catalog entry %q", e.Name)
		}
		for _, combo := range e.Grid.Combinations() {
			if err := e.New().SetParams(combo); err != nil {
				return errors.Wrapf(err, "catalog entry %q", e.Name)
			}
		}
	}
	return nil
}

package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

func init() {
	gob.Register(&AdaBoostRegressor{})
}

// AdaBoost.R2 loss shapes applied to the normalised absolute error.
const (
	AdaLossLinear      = "linear"
	AdaLossSquare      = "square"
	AdaLossExponential = "exponential"
)

// AdaBoostRegressor implements AdaBoost.R2 (Drucker, 1997) with depth-3
// regression trees fitted on weighted bootstrap samples.
type AdaBoostRegressor struct {
	state *model.StateManager

	nEstimators  int
	learningRate float64
	loss         string
	maxDepth     int
	randomState  int

	trees            []*tree.Tree
	estimatorWeights []float64
	estimatorErrors  []float64
}

// AdaOption configures an AdaBoostRegressor.
type AdaOption func(*AdaBoostRegressor)

// WithAdaEstimators sets the maximum number of boosting rounds.
func WithAdaEstimators(n int) AdaOption {
	return func(a *AdaBoostRegressor) { a.nEstimators = n }
}

// WithAdaLearningRate sets the weight shrinkage.
func WithAdaLearningRate(lr float64) AdaOption {
	return func(a *AdaBoostRegressor) { a.learningRate = lr }
}

// WithAdaLoss sets the loss: linear, square or exponential.
func WithAdaLoss(loss string) AdaOption {
	return func(a *AdaBoostRegressor) { a.loss = loss }
}

// WithAdaRandomState sets the seed.
func WithAdaRandomState(seed int) AdaOption {
	return func(a *AdaBoostRegressor) { a.randomState = seed }
}

// NewAdaBoostRegressor creates a booster with 50 rounds, learning rate 1
// and linear loss.
func NewAdaBoostRegressor(opts ...AdaOption) *AdaBoostRegressor {
	a := &AdaBoostRegressor{
		state:        model.NewStateManager(),
		nEstimators:  50,
		learningRate: 1.0,
		loss:         AdaLossLinear,
		maxDepth:     3,
		randomState:  42,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fit runs the boosting rounds. It stops early on a perfect fit, or when a
// round's weighted error reaches 0.5, in which case that round is discarded
// (unless it is the first) and a ConvergenceWarning is emitted.
func (a *AdaBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "AdaBoostRegressor.Fit")

	rows, cols, err := model.CheckXY("AdaBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if a.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", a.nEstimators)
	}

	Xr := model.Rows(X)
	yc := model.Column(y, 0)
	rng := newRand(a.randomState)
	logger := log.GetLoggerWithName("ensemble.adaboost")

	weights := make([]float64, rows)
	for i := range weights {
		weights[i] = 1 / float64(rows)
	}
	cdf := make([]float64, rows)
	errs := make([]float64, rows)

	a.trees = nil
	a.estimatorWeights = nil
	a.estimatorErrors = nil

	for round := 0; round < a.nEstimators; round++ {
		total := floats.Sum(weights)
		if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			break
		}
		floats.Scale(1/total, weights)

		// weighted bootstrap
		floats.CumSum(cdf, weights)
		samples := make([]int, rows)
		last := cdf[rows-1]
		for k := range samples {
			u := rng.Float64() * last
			i := sort.Search(rows, func(j int) bool { return cdf[j] > u })
			samples[k] = min(i, rows-1)
		}

		b := tree.NewBuilder(tree.CriterionSquaredError)
		b.MaxDepth = a.maxDepth
		b.Rng = childRand(rng)
		t, err := b.Build(Xr, yc, samples)
		if err != nil {
			return errors.Wrapf(err, "AdaBoostRegressor.Fit: round %d", round)
		}

		for i, row := range Xr {
			errs[i] = math.Abs(t.PredictRow(row) - yc[i])
		}
		if errMax := floats.Max(errs); errMax != 0 {
			floats.Scale(1/errMax, errs)
		}
		switch a.loss {
		case AdaLossSquare:
			for i, e := range errs {
				errs[i] = e * e
			}
		case AdaLossExponential:
			for i, e := range errs {
				errs[i] = 1 - math.Exp(-e)
			}
		}
		estimatorError := floats.Dot(weights, errs)

		if estimatorError <= 0 {
			a.appendRound(t, 1, 0)
			break
		}
		if estimatorError >= 0.5 {
			if len(a.trees) == 0 {
				a.appendRound(t, 1, estimatorError)
			}
			errors.Warn(errors.NewConvergenceWarning("AdaBoostRegressor", round,
				fmt.Sprintf("estimator error %.4f is not below 0.5", estimatorError)))
			break
		}

		beta := estimatorError / (1 - estimatorError)
		a.appendRound(t, a.learningRate*math.Log(1/beta), estimatorError)

		if round < a.nEstimators-1 {
			for i, e := range errs {
				if weights[i] > 0 {
					weights[i] *= math.Pow(beta, (1-e)*a.learningRate)
				}
			}
		}
		if round%10 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, round,
				"estimator_error", estimatorError)
		}
	}

	a.state.SetDimensions(cols, rows)
	a.state.SetFitted()
	return nil
}

func (a *AdaBoostRegressor) appendRound(t *tree.Tree, weight, estimatorError float64) {
	a.trees = append(a.trees, t)
	a.estimatorWeights = append(a.estimatorWeights, weight)
	a.estimatorErrors = append(a.estimatorErrors, estimatorError)
}

// predictRow returns the weighted median of the member predictions.
func (a *AdaBoostRegressor) predictRow(row []float64) float64 {
	n := len(a.trees)
	preds := make([]float64, n)
	order := make([]int, n)
	for k, t := range a.trees {
		preds[k] = t.PredictRow(row)
		order[k] = k
	}
	sort.SliceStable(order, func(i, j int) bool { return preds[order[i]] < preds[order[j]] })

	half := 0.5 * floats.Sum(a.estimatorWeights)
	cum := 0.0
	for _, k := range order {
		cum += a.estimatorWeights[k]
		if cum >= half {
			return preds[k]
		}
	}
	return preds[order[n-1]]
}

// Predict returns the weighted median prediction of the fitted trees.
func (a *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := a.state.RequireFitted("AdaBoostRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := a.state.CheckFeatures("AdaBoostRegressor.Predict", X); err != nil {
		return nil, err
	}
	return tree.PredictMatrix(X, a.predictRow), nil
}

// Score returns R² on (X, y).
func (a *AdaBoostRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(a, X, y)
}

// EstimatorWeights returns the weight of each kept round.
func (a *AdaBoostRegressor) EstimatorWeights() []float64 {
	return append([]float64(nil), a.estimatorWeights...)
}

// EstimatorErrors returns the weighted error of each kept round.
func (a *AdaBoostRegressor) EstimatorErrors() []float64 {
	return append([]float64(nil), a.estimatorErrors...)
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (a *AdaBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  a.nEstimators,
		"learning_rate": a.learningRate,
		"loss":          a.loss,
		"max_depth":     a.maxDepth,
		"random_state":  a.randomState,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (a *AdaBoostRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("AdaBoostRegressor", params, map[string]model.ParamSetter{
		"n_estimators":  model.PositiveInt("n_estimators", &a.nEstimators),
		"learning_rate": model.FloatIn("learning_rate", &a.learningRate, 0, 1e9, true),
		"loss":          model.OneOf("loss", &a.loss, AdaLossLinear, AdaLossSquare, AdaLossExponential),
		"max_depth":     model.PositiveInt("max_depth", &a.maxDepth),
		"random_state":  model.AnyInt("random_state", &a.randomState),
	})
}

// IsFitted returns whether the model has been fitted
func (a *AdaBoostRegressor) IsFitted() bool {
	return a.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (a *AdaBoostRegressor) Clone() model.Regressor {
	c := *a
	c.state = model.NewStateManager()
	c.trees = nil
	c.estimatorWeights = nil
	c.estimatorErrors = nil
	return &c
}

type adaBoostState struct {
	Params           map[string]interface{}
	Trees            []*tree.Tree
	EstimatorWeights []float64
	EstimatorErrors  []float64
	State            model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (a *AdaBoostRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(adaBoostState{
		Params:           a.GetParams(),
		Trees:            a.trees,
		EstimatorWeights: a.estimatorWeights,
		EstimatorErrors:  a.estimatorErrors,
		State:            a.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (a *AdaBoostRegressor) GobDecode(data []byte) error {
	var s adaBoostState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	*a = *NewAdaBoostRegressor()
	if err := a.SetParams(s.Params); err != nil {
		return err
	}
	a.state.SetState(s.State)
	a.trees = s.Trees
	a.estimatorWeights = s.EstimatorWeights
	a.estimatorErrors = s.EstimatorErrors
	return nil
}

// String returns the string representation of the model
func (a *AdaBoostRegressor) String() string {
	return fmt.Sprintf("AdaBoostRegressor(n_estimators=%d, learning_rate=%g, loss=%s)",
		a.nEstimators, a.learningRate, a.loss)
}

// Package xgboost implements an XGBoost style gradient booster: second-order
// depth-wise trees with L1/L2 leaf regularisation and gamma pruning.
package xgboost

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/sklearn/objectives"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

func init() {
	gob.Register(&XGBRegressor{})
}

// XGBRegressor mirrors xgboost.XGBRegressor's parameters and defaults.
type XGBRegressor struct {
	state *model.StateManager

	nEstimators     int
	learningRate    float64
	maxDepth        int
	minChildWeight  float64
	gamma           float64
	regLambda       float64
	regAlpha        float64
	subsample       float64
	colsampleByTree float64
	objective       string
	randomState     int

	baseScore float64
	trees     []*tree.Tree
	evals     []float64
}

// Option configures an XGBRegressor.
type Option func(*XGBRegressor)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option {
	return func(x *XGBRegressor) { x.nEstimators = n }
}

// WithLearningRate sets eta.
func WithLearningRate(eta float64) Option {
	return func(x *XGBRegressor) { x.learningRate = eta }
}

// WithMaxDepth sets the tree depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(x *XGBRegressor) { x.maxDepth = depth }
}

// WithGamma sets the minimum loss reduction kept by pruning.
func WithGamma(gamma float64) Option {
	return func(x *XGBRegressor) { x.gamma = gamma }
}

// WithRegLambda sets the L2 leaf penalty.
func WithRegLambda(lambda float64) Option {
	return func(x *XGBRegressor) { x.regLambda = lambda }
}

// WithRegAlpha sets the L1 leaf penalty.
func WithRegAlpha(alpha float64) Option {
	return func(x *XGBRegressor) { x.regAlpha = alpha }
}

// WithMinChildWeight sets the minimum hessian sum per child.
func WithMinChildWeight(w float64) Option {
	return func(x *XGBRegressor) { x.minChildWeight = w }
}

// WithSubsample sets the row sampling ratio per round.
func WithSubsample(ratio float64) Option {
	return func(x *XGBRegressor) { x.subsample = ratio }
}

// WithColsampleByTree sets the feature sampling ratio per round.
func WithColsampleByTree(ratio float64) Option {
	return func(x *XGBRegressor) { x.colsampleByTree = ratio }
}

// WithObjective sets the objective, e.g. reg:squarederror.
func WithObjective(obj string) Option {
	return func(x *XGBRegressor) { x.objective = obj }
}

// WithRandomState sets the seed.
func WithRandomState(seed int) Option {
	return func(x *XGBRegressor) { x.randomState = seed }
}

// NewXGBRegressor creates a booster with XGBoost's defaults: 100 rounds,
// eta 0.3, depth 6, lambda 1, gamma 0, min_child_weight 1.
func NewXGBRegressor(opts ...Option) *XGBRegressor {
	x := &XGBRegressor{
		state:           model.NewStateManager(),
		nEstimators:     100,
		learningRate:    0.3,
		maxDepth:        6,
		minChildWeight:  1,
		regLambda:       1,
		subsample:       1,
		colsampleByTree: 1,
		objective:       "reg:squarederror",
		randomState:     42,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Fit boosts nEstimators trees. The base score is the objective's optimal
// constant on y.
func (x *XGBRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBRegressor.Fit")

	rows, cols, err := model.CheckXY("XGBRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if x.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", x.nEstimators)
	}
	obj, err := objectives.ByName(x.objective)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("xgboost")
	Xr := model.Rows(X)
	yc := model.Column(y, 0)
	rng := rand.New(rand.NewPCG(uint64(x.randomState), uint64(x.randomState)))
	params := &treeParams{
		eta:            x.learningRate,
		maxDepth:       x.maxDepth,
		minChildWeight: x.minChildWeight,
		lambda:         x.regLambda,
		alpha:          x.regAlpha,
		gamma:          x.gamma,
	}

	x.baseScore = obj.InitScore(yc)
	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = x.baseScore
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	nCols := max(1, int(x.colsampleByTree*float64(cols)))

	x.trees = make([]*tree.Tree, 0, x.nEstimators)
	x.evals = make([]float64, 0, x.nEstimators)
	for round := 0; round < x.nEstimators; round++ {
		for i := range raw {
			grad[i] = obj.Gradient(raw[i], yc[i])
			hess[i] = obj.Hessian(raw[i], yc[i])
		}

		samples := make([]int, 0, rows)
		for i := 0; i < rows; i++ {
			if x.subsample >= 1 || rng.Float64() < x.subsample {
				samples = append(samples, i)
			}
		}
		if len(samples) == 0 {
			samples = append(samples, rng.IntN(rows))
		}

		features := allFeatures(cols)
		if nCols < cols {
			features = rng.Perm(cols)[:nCols]
		}

		g := &grower{p: params, X: Xr, grad: grad, hess: hess, features: features}
		t := g.build(samples, cols)
		x.trees = append(x.trees, t)

		for i, row := range Xr {
			raw[i] += t.PredictRow(row)
		}
		x.evals = append(x.evals, objectives.MeanLoss(obj, raw, yc))

		if round%10 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, round,
				"train_loss", x.evals[round],
				"leaves", t.NumLeaves())
		}
	}

	x.state.SetDimensions(cols, rows)
	x.state.SetFitted()
	return nil
}

func allFeatures(n int) []int {
	f := make([]int, n)
	for i := range f {
		f[i] = i
	}
	return f
}

func (x *XGBRegressor) predictRow(row []float64) float64 {
	v := x.baseScore
	for _, t := range x.trees {
		v += t.PredictRow(row)
	}
	return v
}

// Predict returns base_score + Σ tree(x).
func (x *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := x.state.RequireFitted("XGBRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := x.state.CheckFeatures("XGBRegressor.Predict", X); err != nil {
		return nil, err
	}
	return tree.PredictMatrix(X, x.predictRow), nil
}

// Score returns R² on (X, y).
func (x *XGBRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(x, X, y)
}

// BaseScore returns the constant the trees are added to.
func (x *XGBRegressor) BaseScore() float64 {
	return x.baseScore
}

// EvalsResult returns the training loss after each round.
func (x *XGBRegressor) EvalsResult() []float64 {
	return append([]float64(nil), x.evals...)
}

// Trees returns the boosted trees.
func (x *XGBRegressor) Trees() []*tree.Tree {
	return x.trees
}

// FeatureImportances returns total gain per feature, normalised.
func (x *XGBRegressor) FeatureImportances() ([]float64, error) {
	if err := x.state.RequireFitted("XGBRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := x.state.GetDimensions()
	imp := make([]float64, nFeatures)
	total := 0.0
	for _, t := range x.trees {
		for i := range t.Nodes {
			n := &t.Nodes[i]
			if !n.IsLeaf() {
				imp[n.Feature] += n.Gain
				total += n.Gain
			}
		}
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp, nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (x *XGBRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     x.nEstimators,
		"learning_rate":    x.learningRate,
		"max_depth":        x.maxDepth,
		"min_child_weight": x.minChildWeight,
		"gamma":            x.gamma,
		"reg_lambda":       x.regLambda,
		"reg_alpha":        x.regAlpha,
		"subsample":        x.subsample,
		"colsample_bytree": x.colsampleByTree,
		"objective":        x.objective,
		"random_state":     x.randomState,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (x *XGBRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("XGBRegressor", params, map[string]model.ParamSetter{
		"n_estimators":     model.PositiveInt("n_estimators", &x.nEstimators),
		"learning_rate":    model.FloatIn("learning_rate", &x.learningRate, 0, 1e9, true),
		"max_depth":        model.NonNegativeInt("max_depth", &x.maxDepth),
		"min_child_weight": model.FloatIn("min_child_weight", &x.minChildWeight, 0, 1e18, false),
		"gamma":            model.FloatIn("gamma", &x.gamma, 0, 1e18, false),
		"reg_lambda":       model.FloatIn("reg_lambda", &x.regLambda, 0, 1e18, false),
		"reg_alpha":        model.FloatIn("reg_alpha", &x.regAlpha, 0, 1e18, false),
		"subsample":        model.FloatIn("subsample", &x.subsample, 0, 1, true),
		"colsample_bytree": model.FloatIn("colsample_bytree", &x.colsampleByTree, 0, 1, true),
		"objective": model.OneOf("objective", &x.objective,
			"reg:squarederror", "reg:absoluteerror", "reg:pseudohubererror"),
		"random_state": model.AnyInt("random_state", &x.randomState),
	})
}

// IsFitted returns whether the model has been fitted
func (x *XGBRegressor) IsFitted() bool {
	return x.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (x *XGBRegressor) Clone() model.Regressor {
	c := *x
	c.state = model.NewStateManager()
	c.trees = nil
	c.evals = nil
	c.baseScore = 0
	return &c
}

type xgbState struct {
	Params    map[string]interface{}
	BaseScore float64
	Trees     []*tree.Tree
	Evals     []float64
	State     model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (x *XGBRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(xgbState{
		Params:    x.GetParams(),
		BaseScore: x.baseScore,
		Trees:     x.trees,
		Evals:     x.evals,
		State:     x.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (x *XGBRegressor) GobDecode(data []byte) error {
	var s xgbState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	*x = *NewXGBRegressor()
	if err := x.SetParams(s.Params); err != nil {
		return err
	}
	x.state.SetState(s.State)
	x.baseScore = s.BaseScore
	x.trees = s.Trees
	x.evals = s.Evals
	return nil
}

// String returns the string representation of the model
func (x *XGBRegressor) String() string {
	return fmt.Sprintf("XGBRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d, reg_lambda=%g, gamma=%g)",
		x.nEstimators, x.learningRate, x.maxDepth, x.regLambda, x.gamma)
}

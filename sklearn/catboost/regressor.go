// Package catboost implements a CatBoost style regressor: gradient boosting
// of oblivious (symmetric) trees over quantized features.
package catboost

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/sklearn/objectives"
)

func init() {
	gob.Register(&CatBoostRegressor{})
}

// Loss functions accepted by loss_function.
var lossFunctions = []string{"RMSE", "MAE", "Huber"}

// CatBoostRegressor mirrors catboost.CatBoostRegressor's core parameters.
type CatBoostRegressor struct {
	state *model.StateManager

	iterations   int
	learningRate float64
	depth        int
	l2LeafReg    float64
	borderCount  int
	lossFunction string

	baseScore     float64
	trees         []*ObliviousTree
	learnLoss     []float64
	featureBorder [][]float64
}

// Option configures a CatBoostRegressor.
type Option func(*CatBoostRegressor)

// WithIterations sets the number of trees.
func WithIterations(n int) Option {
	return func(c *CatBoostRegressor) { c.iterations = n }
}

// WithLearningRate sets the step size.
func WithLearningRate(lr float64) Option {
	return func(c *CatBoostRegressor) { c.learningRate = lr }
}

// WithDepth sets the depth of every oblivious tree.
func WithDepth(depth int) Option {
	return func(c *CatBoostRegressor) { c.depth = depth }
}

// WithL2LeafReg sets the L2 penalty on leaf values.
func WithL2LeafReg(l2 float64) Option {
	return func(c *CatBoostRegressor) { c.l2LeafReg = l2 }
}

// WithBorderCount sets the maximum number of borders per feature.
func WithBorderCount(n int) Option {
	return func(c *CatBoostRegressor) { c.borderCount = n }
}

// WithLossFunction sets RMSE, MAE or Huber.
func WithLossFunction(loss string) Option {
	return func(c *CatBoostRegressor) { c.lossFunction = loss }
}

// NewCatBoostRegressor creates a regressor with CatBoost's defaults:
// 1000 iterations, learning rate 0.03, depth 6, l2_leaf_reg 3, 254 borders.
func NewCatBoostRegressor(opts ...Option) *CatBoostRegressor {
	c := &CatBoostRegressor{
		state:        model.NewStateManager(),
		iterations:   1000,
		learningRate: 0.03,
		depth:        6,
		l2LeafReg:    3,
		borderCount:  254,
		lossFunction: "RMSE",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit quantizes X once and boosts iterations oblivious trees from the
// objective's optimal constant.
func (c *CatBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "CatBoostRegressor.Fit")

	rows, cols, err := model.CheckXY("CatBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if c.iterations <= 0 {
		return errors.NewValidationError("iterations", "must be positive", c.iterations)
	}
	if c.depth < 1 || c.depth > 16 {
		return errors.NewValidationError("depth", "must be in [1, 16]", c.depth)
	}
	obj, err := objectives.ByName(c.lossFunction)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("catboost")
	Xr := model.Rows(X)
	yc := model.Column(y, 0)
	q := newQuantizer(Xr, cols, c.borderCount)
	bins := q.binAll(Xr)

	c.baseScore = obj.InitScore(yc)
	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = c.baseScore
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}

	c.trees = make([]*ObliviousTree, 0, c.iterations)
	c.learnLoss = make([]float64, 0, c.iterations)
	for it := 0; it < c.iterations; it++ {
		for i := range raw {
			grad[i] = obj.Gradient(raw[i], yc[i])
			hess[i] = obj.Hessian(raw[i], yc[i])
		}
		b := &obliviousBuilder{
			q:       q,
			bins:    bins,
			grad:    grad,
			hess:    hess,
			depth:   c.depth,
			l2:      c.l2LeafReg,
			lr:      c.learningRate,
			samples: samples,
		}
		t := b.build()
		c.trees = append(c.trees, t)

		for i, row := range Xr {
			raw[i] += t.Predict(row)
		}
		c.learnLoss = append(c.learnLoss, objectives.MeanLoss(obj, raw, yc))

		if it%100 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, it,
				"learn_loss", c.learnLoss[it],
				"depth", t.Depth())
		}
	}

	c.featureBorder = q.borders
	c.state.SetDimensions(cols, rows)
	c.state.SetFitted()
	return nil
}

func (c *CatBoostRegressor) predictRow(row []float64) float64 {
	v := c.baseScore
	for _, t := range c.trees {
		v += t.Predict(row)
	}
	return v
}

// Predict returns the boosted prediction for every row of X.
func (c *CatBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := c.state.RequireFitted("CatBoostRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := c.state.CheckFeatures("CatBoostRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, c.predictRow(row))
	}
	return out, nil
}

// Score returns R² on (X, y).
func (c *CatBoostRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(c, X, y)
}

// Trees returns the fitted oblivious trees.
func (c *CatBoostRegressor) Trees() []*ObliviousTree {
	return c.trees
}

// LearnLoss returns the training loss after each iteration.
func (c *CatBoostRegressor) LearnLoss() []float64 {
	return append([]float64(nil), c.learnLoss...)
}

// FeatureBorders returns the quantization borders computed by Fit.
func (c *CatBoostRegressor) FeatureBorders() [][]float64 {
	return c.featureBorder
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (c *CatBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"iterations":    c.iterations,
		"learning_rate": c.learningRate,
		"depth":         c.depth,
		"l2_leaf_reg":   c.l2LeafReg,
		"border_count":  c.borderCount,
		"loss_function": c.lossFunction,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (c *CatBoostRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("CatBoostRegressor", params, map[string]model.ParamSetter{
		"iterations":    model.PositiveInt("iterations", &c.iterations),
		"learning_rate": model.FloatIn("learning_rate", &c.learningRate, 0, 1e9, true),
		"depth":         model.PositiveInt("depth", &c.depth),
		"l2_leaf_reg":   model.FloatIn("l2_leaf_reg", &c.l2LeafReg, 0, 1e18, false),
		"border_count":  model.PositiveInt("border_count", &c.borderCount),
		"loss_function": model.OneOf("loss_function", &c.lossFunction, lossFunctions...),
	})
}

// IsFitted returns whether the model has been fitted
func (c *CatBoostRegressor) IsFitted() bool {
	return c.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (c *CatBoostRegressor) Clone() model.Regressor {
	return NewCatBoostRegressor(
		WithIterations(c.iterations),
		WithLearningRate(c.learningRate),
		WithDepth(c.depth),
		WithL2LeafReg(c.l2LeafReg),
		WithBorderCount(c.borderCount),
		WithLossFunction(c.lossFunction),
	)
}

type catBoostState struct {
	Params        map[string]interface{}
	BaseScore     float64
	Trees         []*ObliviousTree
	LearnLoss     []float64
	FeatureBorder [][]float64
	State         model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (c *CatBoostRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(catBoostState{
		Params:        c.GetParams(),
		BaseScore:     c.baseScore,
		Trees:         c.trees,
		LearnLoss:     c.learnLoss,
		FeatureBorder: c.featureBorder,
		State:         c.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (c *CatBoostRegressor) GobDecode(data []byte) error {
	var s catBoostState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	*c = *NewCatBoostRegressor()
	if err := c.SetParams(s.Params); err != nil {
		return err
	}
	c.state.SetState(s.State)
	c.baseScore = s.BaseScore
	c.trees = s.Trees
	c.learnLoss = s.LearnLoss
	c.featureBorder = s.FeatureBorder
	return nil
}

// String returns the string representation of the model
func (c *CatBoostRegressor) String() string {
	return fmt.Sprintf("CatBoostRegressor(iterations=%d, learning_rate=%g, depth=%d, l2_leaf_reg=%g)",
		c.iterations, c.learningRate, c.depth, c.l2LeafReg)
}

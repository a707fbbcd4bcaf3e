package ensemble

import (
	"encoding/gob"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/pkg/log"
	"github.com/YuminosukeSato/regpipe/sklearn/objectives"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

func init() {
	gob.Register(&GradientBoostingRegressor{})
}

// GradientBoostingRegressor fits an additive model of shallow regression
// trees, each one fitted to the negative gradient of the loss.
type GradientBoostingRegressor struct {
	state *model.StateManager

	loss            string
	learningRate    float64
	nEstimators     int
	subsample       float64
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int

	initScore  float64
	trees      []*tree.Tree
	trainScore []float64
}

// GBOption configures a GradientBoostingRegressor.
type GBOption func(*GradientBoostingRegressor)

// WithGBLoss sets the loss: squared_error or absolute_error.
func WithGBLoss(loss string) GBOption {
	return func(g *GradientBoostingRegressor) { g.loss = loss }
}

// WithGBLearningRate sets the shrinkage applied to every stage.
func WithGBLearningRate(lr float64) GBOption {
	return func(g *GradientBoostingRegressor) { g.learningRate = lr }
}

// WithGBEstimators sets the number of boosting stages.
func WithGBEstimators(n int) GBOption {
	return func(g *GradientBoostingRegressor) { g.nEstimators = n }
}

// WithSubsample sets the fraction of rows drawn without replacement per stage.
func WithSubsample(fraction float64) GBOption {
	return func(g *GradientBoostingRegressor) { g.subsample = fraction }
}

// WithGBMaxDepth sets the depth of each stage tree.
func WithGBMaxDepth(depth int) GBOption {
	return func(g *GradientBoostingRegressor) { g.maxDepth = depth }
}

// WithGBRandomState sets the seed.
func WithGBRandomState(seed int) GBOption {
	return func(g *GradientBoostingRegressor) { g.randomState = seed }
}

// NewGradientBoostingRegressor creates a booster with scikit-learn's defaults:
// 100 stages of depth-3 friedman_mse trees with learning rate 0.1.
func NewGradientBoostingRegressor(opts ...GBOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		state:           model.NewStateManager(),
		loss:            objectives.SquaredError,
		learningRate:    0.1,
		nEstimators:     100,
		subsample:       1.0,
		criterion:       tree.CriterionFriedmanMSE,
		maxDepth:        3,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit runs the boosting stages.
//
// Each stage fits a tree to the pseudo-residuals -∂L/∂F on a subsample of
// rows. For absolute_error the leaf values are then replaced by the median
// residual of the in-bag rows in each leaf.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if g.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", g.nEstimators)
	}
	if g.subsample <= 0 || g.subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.subsample)
	}
	obj, err := objectives.ByName(g.loss)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble.gradient_boosting")
	Xr := model.Rows(X)
	yc := model.Column(y, 0)
	rng := newRand(g.randomState)

	g.initScore = obj.InitScore(yc)
	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = g.initScore
	}

	residual := make([]float64, rows)
	nSub := max(1, int(g.subsample*float64(rows)))
	g.trees = make([]*tree.Tree, 0, g.nEstimators)
	g.trainScore = make([]float64, 0, g.nEstimators)

	for stage := 0; stage < g.nEstimators; stage++ {
		for i := range residual {
			residual[i] = -obj.Gradient(raw[i], yc[i])
		}

		samples := allSamples(rows)
		if nSub < rows {
			samples = rng.Perm(rows)[:nSub]
			sort.Ints(samples)
		}

		b := &tree.Builder{
			Criterion:       g.criterion,
			MaxDepth:        g.maxDepth,
			MinSamplesSplit: g.minSamplesSplit,
			MinSamplesLeaf:  g.minSamplesLeaf,
			MaxFeatures:     g.maxFeatures,
			Rng:             childRand(rng),
		}
		t, err := b.Build(Xr, residual, samples)
		if err != nil {
			return errors.Wrapf(err, "GradientBoostingRegressor.Fit: stage %d", stage)
		}
		if obj.Name() == objectives.AbsoluteError {
			updateLeavesWithMedian(t, Xr, yc, raw, samples)
		}

		for i, row := range Xr {
			raw[i] += g.learningRate * t.PredictRow(row)
		}
		g.trees = append(g.trees, t)

		inBag := make([]float64, len(samples))
		targets := make([]float64, len(samples))
		for k, i := range samples {
			inBag[k] = raw[i]
			targets[k] = yc[i]
		}
		g.trainScore = append(g.trainScore, objectives.MeanLoss(obj, inBag, targets))

		if stage%10 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, stage,
				"loss", g.trainScore[stage])
		}
	}

	g.state.SetDimensions(cols, rows)
	g.state.SetFitted()
	return nil
}

// updateLeavesWithMedian sets every leaf to the median of y - raw over the
// in-bag rows that reach it.
func updateLeavesWithMedian(t *tree.Tree, X [][]float64, y, raw []float64, samples []int) {
	byLeaf := make(map[int][]float64)
	for _, i := range samples {
		leaf := t.Apply(X[i])
		byLeaf[leaf] = append(byLeaf[leaf], y[i]-raw[i])
	}
	for leaf, diffs := range byLeaf {
		t.Nodes[leaf].Value = objectives.Median(diffs)
	}
}

func (g *GradientBoostingRegressor) predictRow(row []float64) float64 {
	v := g.initScore
	for _, t := range g.trees {
		v += g.learningRate * t.PredictRow(row)
	}
	return v
}

// Predict returns init + Σ learning_rate·tree(x).
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.state.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := g.state.CheckFeatures("GradientBoostingRegressor.Predict", X); err != nil {
		return nil, err
	}
	return tree.PredictMatrix(X, g.predictRow), nil
}

// Score returns R² on (X, y).
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(g, X, y)
}

// TrainScore returns the in-bag training loss after each stage.
func (g *GradientBoostingRegressor) TrainScore() []float64 {
	return append([]float64(nil), g.trainScore...)
}

// InitScore returns the constant the stages are added to.
func (g *GradientBoostingRegressor) InitScore() float64 {
	return g.initScore
}

// FeatureImportances averages the normalised importances of the stage trees.
func (g *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if err := g.state.RequireFitted("GradientBoostingRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := g.state.GetDimensions()
	return meanImportances(g.trees, nFeatures), nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":              g.loss,
		"learning_rate":     g.learningRate,
		"n_estimators":      g.nEstimators,
		"subsample":         g.subsample,
		"criterion":         g.criterion,
		"max_depth":         g.maxDepth,
		"min_samples_split": g.minSamplesSplit,
		"min_samples_leaf":  g.minSamplesLeaf,
		"max_features":      g.maxFeatures,
		"random_state":      g.randomState,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("GradientBoostingRegressor", params, map[string]model.ParamSetter{
		"loss":              model.OneOf("loss", &g.loss, objectives.SquaredError, objectives.AbsoluteError),
		"learning_rate":     model.FloatIn("learning_rate", &g.learningRate, 0, 1e9, true),
		"n_estimators":      model.PositiveInt("n_estimators", &g.nEstimators),
		"subsample":         model.FloatIn("subsample", &g.subsample, 0, 1, true),
		"criterion":         model.OneOf("criterion", &g.criterion, tree.CriterionSquaredError, tree.CriterionFriedmanMSE),
		"max_depth":         model.NonNegativeInt("max_depth", &g.maxDepth),
		"min_samples_split": model.PositiveInt("min_samples_split", &g.minSamplesSplit),
		"min_samples_leaf":  model.PositiveInt("min_samples_leaf", &g.minSamplesLeaf),
		"max_features":      model.NonNegativeInt("max_features", &g.maxFeatures),
		"random_state":      model.AnyInt("random_state", &g.randomState),
	})
}

// IsFitted returns whether the model has been fitted
func (g *GradientBoostingRegressor) IsFitted() bool {
	return g.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (g *GradientBoostingRegressor) Clone() model.Regressor {
	c := *g
	c.state = model.NewStateManager()
	c.trees = nil
	c.trainScore = nil
	c.initScore = 0
	return &c
}

type gradientBoostingState struct {
	Params     map[string]interface{}
	InitScore  float64
	Trees      []*tree.Tree
	TrainScore []float64
	State      model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (g *GradientBoostingRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(gradientBoostingState{
		Params:     g.GetParams(),
		InitScore:  g.initScore,
		Trees:      g.trees,
		TrainScore: g.trainScore,
		State:      g.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (g *GradientBoostingRegressor) GobDecode(data []byte) error {
	var s gradientBoostingState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	*g = *NewGradientBoostingRegressor()
	if err := g.SetParams(s.Params); err != nil {
		return err
	}
	g.state.SetState(s.State)
	g.initScore = s.InitScore
	g.trees = s.Trees
	g.trainScore = s.TrainScore
	return nil
}

// String returns the string representation of the model
func (g *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(loss=%s, learning_rate=%g, n_estimators=%d, subsample=%g, max_depth=%d)",
		g.loss, g.learningRate, g.nEstimators, g.subsample, g.maxDepth)
}

package ensemble

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestRegressor{})
}

// RandomForestRegressor averages regression trees grown on bootstrap
// samples of the training rows.
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	bootstrap       bool
	randomState     int

	trees []*tree.Tree
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithForestEstimators sets the number of trees.
func WithForestEstimators(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.nEstimators = n }
}

// WithForestCriterion sets the split criterion of every tree.
func WithForestCriterion(c string) ForestOption {
	return func(f *RandomForestRegressor) { f.criterion = c }
}

// WithForestMaxDepth limits tree depth, 0 for unlimited.
func WithForestMaxDepth(depth int) ForestOption {
	return func(f *RandomForestRegressor) { f.maxDepth = depth }
}

// WithForestMaxFeatures sets the features drawn per split, 0 for all.
func WithForestMaxFeatures(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.maxFeatures = n }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) ForestOption {
	return func(f *RandomForestRegressor) { f.bootstrap = b }
}

// WithForestRandomState sets the seed.
func WithForestRandomState(seed int) ForestOption {
	return func(f *RandomForestRegressor) { f.randomState = seed }
}

// NewRandomForestRegressor creates a forest of 100 fully grown trees.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionSquaredError,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows nEstimators trees one after another.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if f.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", f.nEstimators)
	}

	Xr := model.Rows(X)
	yc := model.Column(y, 0)
	rng := newRand(f.randomState)

	trees := make([]*tree.Tree, 0, f.nEstimators)
	for i := 0; i < f.nEstimators; i++ {
		b := &tree.Builder{
			Criterion:       f.criterion,
			MaxDepth:        f.maxDepth,
			MinSamplesSplit: f.minSamplesSplit,
			MinSamplesLeaf:  f.minSamplesLeaf,
			MaxFeatures:     f.maxFeatures,
			Rng:             childRand(rng),
		}
		samples := allSamples(rows)
		if f.bootstrap {
			for k := range samples {
				samples[k] = rng.IntN(rows)
			}
		}
		t, err := b.Build(Xr, yc, samples)
		if err != nil {
			return errors.Wrapf(err, "RandomForestRegressor.Fit: tree %d", i)
		}
		trees = append(trees, t)
	}

	f.trees = trees
	f.state.SetDimensions(cols, rows)
	f.state.SetFitted()
	return nil
}

// Predict averages the predictions of all trees.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := f.state.CheckFeatures("RandomForestRegressor.Predict", X); err != nil {
		return nil, err
	}
	return tree.PredictMatrix(X, func(row []float64) float64 {
		sum := 0.0
		for _, t := range f.trees {
			sum += t.PredictRow(row)
		}
		return sum / float64(len(f.trees))
	}), nil
}

// Score returns R² on (X, y).
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(f, X, y)
}

// Trees returns the fitted trees.
func (f *RandomForestRegressor) Trees() []*tree.Tree {
	return f.trees
}

// FeatureImportances averages the normalised importances of the trees.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := f.state.GetDimensions()
	return meanImportances(f.trees, nFeatures), nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("RandomForestRegressor", params, map[string]model.ParamSetter{
		"n_estimators":      model.PositiveInt("n_estimators", &f.nEstimators),
		"criterion":         model.OneOf("criterion", &f.criterion, tree.Criteria...),
		"max_depth":         model.NonNegativeInt("max_depth", &f.maxDepth),
		"min_samples_split": model.PositiveInt("min_samples_split", &f.minSamplesSplit),
		"min_samples_leaf":  model.PositiveInt("min_samples_leaf", &f.minSamplesLeaf),
		"max_features":      model.NonNegativeInt("max_features", &f.maxFeatures),
		"bootstrap":         model.Bool("bootstrap", &f.bootstrap),
		"random_state":      model.AnyInt("random_state", &f.randomState),
	})
}

// IsFitted returns whether the model has been fitted
func (f *RandomForestRegressor) IsFitted() bool {
	return f.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (f *RandomForestRegressor) Clone() model.Regressor {
	c := *f
	c.state = model.NewStateManager()
	c.trees = nil
	return &c
}

type forestState struct {
	Params map[string]interface{}
	Trees  []*tree.Tree
	State  model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(forestState{
		Params: f.GetParams(),
		Trees:  f.trees,
		State:  f.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestRegressor) GobDecode(data []byte) error {
	var s forestState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	*f = *NewRandomForestRegressor()
	if err := f.SetParams(s.Params); err != nil {
		return err
	}
	f.state.SetState(s.State)
	f.trees = s.Trees
	return nil
}

// String returns the string representation of the model
func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, criterion=%s, max_depth=%d)",
		f.nEstimators, f.criterion, f.maxDepth)
}

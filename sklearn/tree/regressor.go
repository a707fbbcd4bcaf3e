package tree

import (
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

func init() {
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeRegressor is a CART regression tree.
type DecisionTreeRegressor struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int

	tree *Tree
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithCriterion sets the split criterion.
func WithCriterion(c string) Option {
	return func(d *DecisionTreeRegressor) { d.criterion = c }
}

// WithMaxDepth limits the depth. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(d *DecisionTreeRegressor) { d.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size eligible for a split.
func WithMinSamplesSplit(n int) Option {
	return func(d *DecisionTreeRegressor) { d.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option {
	return func(d *DecisionTreeRegressor) { d.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn per split. 0 uses all.
func WithMaxFeatures(n int) Option {
	return func(d *DecisionTreeRegressor) { d.maxFeatures = n }
}

// WithRandomState sets the seed for feature sampling.
func WithRandomState(seed int) Option {
	return func(d *DecisionTreeRegressor) { d.randomState = seed }
}

// NewDecisionTreeRegressor creates a tree with scikit-learn's defaults:
// squared_error, unlimited depth, min_samples_split=2, min_samples_leaf=1.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	d := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		criterion:       CriterionSquaredError,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DecisionTreeRegressor) builder() *Builder {
	return &Builder{
		Criterion:       d.criterion,
		MaxDepth:        d.maxDepth,
		MinSamplesSplit: d.minSamplesSplit,
		MinSamplesLeaf:  d.minSamplesLeaf,
		MaxFeatures:     d.maxFeatures,
		Rng:             rand.New(rand.NewPCG(uint64(d.randomState), uint64(d.randomState))),
	}
}

// Fit grows the tree on all rows of X.
func (d *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, cols, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("DecisionTreeRegressor.Fit", X, rows, cols, -1); err != nil {
		return err
	}

	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}
	t, err := d.builder().Build(model.Rows(X), model.Column(y, 0), samples)
	if err != nil {
		return errors.Wrap(err, "DecisionTreeRegressor.Fit")
	}

	d.tree = t
	d.state.SetDimensions(cols, rows)
	d.state.SetFitted()
	return nil
}

// Predict returns one prediction per row of X as an n×1 matrix.
func (d *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := d.state.CheckFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}
	return PredictMatrix(X, d.tree.PredictRow), nil
}

// PredictMatrix applies a row predictor to every row of X.
func PredictMatrix(X mat.Matrix, predict func([]float64) float64) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, predict(row))
	}
	return out
}

// Score returns R² on (X, y).
func (d *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(d, X, y)
}

// Tree exposes the fitted tree, nil before Fit.
func (d *DecisionTreeRegressor) Tree() *Tree {
	return d.tree
}

// GetDepth returns the depth of the fitted tree.
func (d *DecisionTreeRegressor) GetDepth() int {
	if d.tree == nil {
		return 0
	}
	return d.tree.Depth
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (d *DecisionTreeRegressor) GetNLeaves() int {
	if d.tree == nil {
		return 0
	}
	return d.tree.NumLeaves()
}

// FeatureImportances returns normalised gain importances.
func (d *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := d.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return d.tree.FeatureImportances(), nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (d *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         d.criterion,
		"max_depth":         d.maxDepth,
		"min_samples_split": d.minSamplesSplit,
		"min_samples_leaf":  d.minSamplesLeaf,
		"max_features":      d.maxFeatures,
		"random_state":      d.randomState,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (d *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("DecisionTreeRegressor", params, map[string]model.ParamSetter{
		"criterion":         model.OneOf("criterion", &d.criterion, Criteria...),
		"max_depth":         model.NonNegativeInt("max_depth", &d.maxDepth),
		"min_samples_split": model.PositiveInt("min_samples_split", &d.minSamplesSplit),
		"min_samples_leaf":  model.PositiveInt("min_samples_leaf", &d.minSamplesLeaf),
		"max_features":      model.NonNegativeInt("max_features", &d.maxFeatures),
		"random_state":      model.AnyInt("random_state", &d.randomState),
	})
}

// IsFitted returns whether the model has been fitted
func (d *DecisionTreeRegressor) IsFitted() bool {
	return d.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (d *DecisionTreeRegressor) Clone() model.Regressor {
	return NewDecisionTreeRegressor(
		WithCriterion(d.criterion),
		WithMaxDepth(d.maxDepth),
		WithMinSamplesSplit(d.minSamplesSplit),
		WithMinSamplesLeaf(d.minSamplesLeaf),
		WithMaxFeatures(d.maxFeatures),
		WithRandomState(d.randomState),
	)
}

type decisionTreeState struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int
	Tree            *Tree
	State           model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (d *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(decisionTreeState{
		Criterion:       d.criterion,
		MaxDepth:        d.maxDepth,
		MinSamplesSplit: d.minSamplesSplit,
		MinSamplesLeaf:  d.minSamplesLeaf,
		MaxFeatures:     d.maxFeatures,
		RandomState:     d.randomState,
		Tree:            d.tree,
		State:           d.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (d *DecisionTreeRegressor) GobDecode(data []byte) error {
	var s decisionTreeState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	d.state = model.NewStateManager()
	d.state.SetState(s.State)
	d.criterion = s.Criterion
	d.maxDepth = s.MaxDepth
	d.minSamplesSplit = s.MinSamplesSplit
	d.minSamplesLeaf = s.MinSamplesLeaf
	d.maxFeatures = s.MaxFeatures
	d.randomState = s.RandomState
	d.tree = s.Tree
	return nil
}

// String returns the string representation of the model
func (d *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		d.criterion, d.maxDepth, d.minSamplesSplit, d.minSamplesLeaf)
}

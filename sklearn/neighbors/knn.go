// Package neighbors implements nearest-neighbour regression with an exact
// brute-force search.
package neighbors

import (
	"encoding/gob"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

func init() {
	gob.Register(&KNeighborsRegressor{})
}

// Weighting schemes for neighbour targets.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighborsRegressor predicts the (optionally distance weighted) mean
// target of the k closest training rows under the Minkowski distance.
type KNeighborsRegressor struct {
	state *model.StateManager

	nNeighbors int
	weights    string
	p          float64

	xTrain [][]float64
	yTrain []float64
}

// Option configures a KNeighborsRegressor.
type Option func(*KNeighborsRegressor)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(r *KNeighborsRegressor) { r.nNeighbors = k }
}

// WithWeights sets the weighting scheme: uniform or distance.
func WithWeights(w string) Option {
	return func(r *KNeighborsRegressor) { r.weights = w }
}

// WithP sets the Minkowski power; 1 is Manhattan and 2 Euclidean.
func WithP(p float64) Option {
	return func(r *KNeighborsRegressor) { r.p = p }
}

// NewKNeighborsRegressor creates a regressor with k=5, uniform weights and
// Euclidean distance.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	r := &KNeighborsRegressor{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    WeightsUniform,
		p:          2,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit stores the training data.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsRegressor.Fit")

	rows, cols, err := model.CheckXY("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if r.nNeighbors <= 0 {
		return errors.NewValidationError("n_neighbors", "must be positive", r.nNeighbors)
	}
	r.xTrain = model.Rows(X)
	r.yTrain = model.Column(y, 0)
	r.state.SetDimensions(cols, rows)
	r.state.SetFitted()
	return nil
}

// KNeighbors returns the indices and distances of the k nearest training
// rows, nearest first. Equal distances keep training order.
func (r *KNeighborsRegressor) KNeighbors(x []float64) ([]int, []float64, error) {
	if err := r.state.RequireFitted("KNeighborsRegressor", "KNeighbors"); err != nil {
		return nil, nil, err
	}
	n := len(r.xTrain)
	if r.nNeighbors > n {
		return nil, nil, errors.NewValueError("KNeighborsRegressor.KNeighbors",
			fmt.Sprintf("expected n_neighbors <= n_samples, but n_samples = %d, n_neighbors = %d", n, r.nNeighbors))
	}

	dist := make([]float64, n)
	idx := make([]int, n)
	for i, row := range r.xTrain {
		dist[i] = floats.Distance(x, row, r.p)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

	idx = idx[:r.nNeighbors]
	d := make([]float64, len(idx))
	for k, i := range idx {
		d[k] = dist[i]
	}
	return idx, d, nil
}

func (r *KNeighborsRegressor) predictRow(x []float64) (float64, error) {
	idx, dist, err := r.KNeighbors(x)
	if err != nil {
		return 0, err
	}
	if r.weights == WeightsUniform {
		sum := 0.0
		for _, i := range idx {
			sum += r.yTrain[i]
		}
		return sum / float64(len(idx)), nil
	}

	// exact matches take all the weight
	exact, nExact := 0.0, 0
	for k, i := range idx {
		if dist[k] == 0 {
			exact += r.yTrain[i]
			nExact++
		}
	}
	if nExact > 0 {
		return exact / float64(nExact), nil
	}
	num, den := 0.0, 0.0
	for k, i := range idx {
		w := 1 / dist[k]
		num += w * r.yTrain[i]
		den += w
	}
	return num / den, nil
}

// Predict returns the neighbour average for every row of X.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("KNeighborsRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := r.state.CheckFeatures("KNeighborsRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		v, err := r.predictRow(row)
		if err != nil {
			return nil, err
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// Score returns R² on (X, y).
func (r *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(r, X, y)
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (r *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": r.nNeighbors,
		"weights":     r.weights,
		"p":           r.p,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (r *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("KNeighborsRegressor", params, map[string]model.ParamSetter{
		"n_neighbors": model.PositiveInt("n_neighbors", &r.nNeighbors),
		"weights":     model.OneOf("weights", &r.weights, WeightsUniform, WeightsDistance),
		"p":           model.FloatIn("p", &r.p, 1, 1e9, false),
	})
}

// IsFitted returns whether the model has been fitted
func (r *KNeighborsRegressor) IsFitted() bool {
	return r.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (r *KNeighborsRegressor) Clone() model.Regressor {
	return NewKNeighborsRegressor(WithNNeighbors(r.nNeighbors), WithWeights(r.weights), WithP(r.p))
}

type knnState struct {
	NNeighbors int
	Weights    string
	P          float64
	XTrain     [][]float64
	YTrain     []float64
	State      model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (r *KNeighborsRegressor) GobEncode() ([]byte, error) {
	return model.EncodeState(knnState{
		NNeighbors: r.nNeighbors,
		Weights:    r.weights,
		P:          r.p,
		XTrain:     r.xTrain,
		YTrain:     r.yTrain,
		State:      r.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (r *KNeighborsRegressor) GobDecode(data []byte) error {
	var s knnState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	r.state = model.NewStateManager()
	r.state.SetState(s.State)
	r.nNeighbors = s.NNeighbors
	r.weights = s.Weights
	r.p = s.P
	r.xTrain = s.XTrain
	r.yTrain = s.YTrain
	return nil
}

// String returns the string representation of the model
func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s, p=%g)", r.nNeighbors, r.weights, r.p)
}

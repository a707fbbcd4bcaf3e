package xgboost

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})
	return X, y
}

func smoothData() (*mat.Dense, *mat.Dense) {
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i % 10)
		b := float64((i * 7) % 13)
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.Set(i, 0, 3*a-2*b+a*b/10)
	}
	return X, y
}

func predict(t *testing.T, r model.Regressor, X mat.Matrix) []float64 {
	t.Helper()
	pred, err := r.Predict(X)
	require.NoError(t, err)
	return mat.Col(nil, 0, pred)
}

func TestXGBRegressor_SingleNewtonStep(t *testing.T) {
	X, y := stepData()
	x := NewXGBRegressor(WithNEstimators(1), WithLearningRate(1), WithRegLambda(0), WithMaxDepth(1))
	require.NoError(t, x.Fit(X, y))

	assert.Equal(t, 5.0, x.BaseScore())
	root := x.Trees()[0].Nodes[0]
	assert.Equal(t, 4.5, root.Threshold)
	assert.InDelta(t, 200.0, root.Gain, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 10, 10, 10, 10}, predict(t, x, X), 1e-9)
}

func TestXGBRegressor_LambdaShrinksLeaves(t *testing.T) {
	X, y := stepData()
	x := NewXGBRegressor(WithNEstimators(1), WithLearningRate(1), WithRegLambda(4), WithMaxDepth(1))
	require.NoError(t, x.Fit(X, y))

	p := predict(t, x, mat.NewDense(2, 1, []float64{1, 8}))
	assert.InDelta(t, 2.5, p[0], 1e-9)
	assert.InDelta(t, 7.5, p[1], 1e-9)
}

func TestXGBRegressor_GammaPrunes(t *testing.T) {
	X, y := stepData()

	pruned := NewXGBRegressor(WithNEstimators(1), WithRegLambda(0), WithMaxDepth(1), WithGamma(300))
	require.NoError(t, pruned.Fit(X, y))
	tr := pruned.Trees()[0]
	assert.Len(t, tr.Nodes, 1)
	assert.Equal(t, 0, tr.Depth)
	assert.InDeltaSlice(t, []float64{5, 5}, predict(t, pruned, mat.NewDense(2, 1, []float64{1, 8})), 1e-9)

	kept := NewXGBRegressor(WithNEstimators(1), WithRegLambda(0), WithMaxDepth(1), WithGamma(100))
	require.NoError(t, kept.Fit(X, y))
	assert.Equal(t, 2, kept.Trees()[0].NumLeaves())
	assert.Equal(t, 1, kept.Trees()[0].Depth)
}

func TestXGBRegressor_MinChildWeight(t *testing.T) {
	X, y := stepData()
	x := NewXGBRegressor(WithNEstimators(1), WithMinChildWeight(5))
	require.NoError(t, x.Fit(X, y))
	assert.Equal(t, 1, x.Trees()[0].NumLeaves())
}

func TestXGBRegressor_Smooth(t *testing.T) {
	X, y := smoothData()
	x := NewXGBRegressor(WithNEstimators(50))
	require.NoError(t, x.Fit(X, y))

	score, err := x.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	evals := x.EvalsResult()
	require.Len(t, evals, 50)
	assert.Less(t, evals[49], evals[0])

	imp, err := x.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
}

func TestXGBRegressor_SamplingIsSeeded(t *testing.T) {
	X, y := smoothData()
	opts := []Option{WithNEstimators(10), WithSubsample(0.7), WithColsampleByTree(0.5)}
	a := NewXGBRegressor(opts...)
	b := NewXGBRegressor(opts...)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, predict(t, a, X), predict(t, b, X))
}

func TestXGBRegressor_PseudoHuber(t *testing.T) {
	X, y := smoothData()
	x := NewXGBRegressor(WithObjective("reg:pseudohubererror"), WithNEstimators(30), WithMinChildWeight(0))
	require.NoError(t, x.Fit(X, y))
	evals := x.EvalsResult()
	assert.Less(t, evals[29], evals[0])
}

func TestXGBRegressor_ParamsCloneGob(t *testing.T) {
	X, y := smoothData()
	x := NewXGBRegressor(WithNEstimators(5))

	_, err := x.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, x.SetParams(map[string]interface{}{"learning_rate": 0.1, "n_estimators": 8}))
	assert.Equal(t, 0.1, x.GetParams()["learning_rate"])
	assert.Error(t, x.SetParams(map[string]interface{}{"objective": "binary:logistic"}))
	assert.Error(t, x.SetParams(map[string]interface{}{"iterations": 8}))

	require.NoError(t, x.Fit(X, y))
	c := x.Clone()
	assert.False(t, c.IsFitted())
	assert.Equal(t, x.GetParams(), c.GetParams())

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(x))
	var loaded XGBRegressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))
	assert.Equal(t, predict(t, x, X), predict(t, &loaded, X))
}

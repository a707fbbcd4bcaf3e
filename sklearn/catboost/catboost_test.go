package catboost

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

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

func TestBorders(t *testing.T) {
	assert.Equal(t, []float64{1.5, 2.5}, Borders([]float64{3, 2, 1, 2}, 254))
	assert.Nil(t, Borders([]float64{4, 4, 4}, 254))
	assert.Nil(t, Borders(nil, 254))

	values := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	assert.Equal(t, []float64{2.5, 4.5, 6.5}, Borders(values, 3))
}

func TestQuantizer_Bin(t *testing.T) {
	q := &quantizer{borders: [][]float64{{1.5, 2.5}}}
	assert.Equal(t, uint16(0), q.bin(0, 1))
	assert.Equal(t, uint16(1), q.bin(0, 2))
	assert.Equal(t, uint16(1), q.bin(0, 2.5), "a value on a border stays left")
	assert.Equal(t, uint16(2), q.bin(0, 3))
}

func TestObliviousTree_LeafIndex(t *testing.T) {
	tr := &ObliviousTree{
		Features:   []int{0, 1},
		Borders:    []float64{0.5, 0.5},
		LeafValues: []float64{10, 11, 12, 13},
	}
	assert.Equal(t, 2, tr.Depth())
	assert.Equal(t, 0, tr.LeafIndex([]float64{0, 0}))
	assert.Equal(t, 1, tr.LeafIndex([]float64{1, 0}))
	assert.Equal(t, 2, tr.LeafIndex([]float64{0, 1}))
	assert.Equal(t, 13.0, tr.Predict([]float64{1, 1}))
}

func TestCatBoostRegressor_SingleTree(t *testing.T) {
	X, y := stepData()
	c := NewCatBoostRegressor(WithIterations(1), WithLearningRate(1), WithL2LeafReg(0))
	require.NoError(t, c.Fit(X, y))

	tr := c.Trees()[0]
	assert.Equal(t, 1, tr.Depth(), "no further level improves a pure split")
	assert.Equal(t, []float64{4.5}, tr.Borders)

	pred, err := c.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 10, 10, 10, 10}, mat.Col(nil, 0, pred), 1e-9)
}

func TestCatBoostRegressor_L2ShrinksLeaves(t *testing.T) {
	X, y := stepData()
	c := NewCatBoostRegressor(WithIterations(1), WithLearningRate(1), WithL2LeafReg(4))
	require.NoError(t, c.Fit(X, y))
	pred, err := c.Predict(mat.NewDense(2, 1, []float64{1, 8}))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 7.5, pred.At(1, 0), 1e-9)
}

func TestCatBoostRegressor_Smooth(t *testing.T) {
	X, y := smoothData()
	c := NewCatBoostRegressor(WithIterations(300), WithLearningRate(0.1))
	require.NoError(t, c.Fit(X, y))

	score, err := c.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	loss := c.LearnLoss()
	require.Len(t, loss, 300)
	for i := 1; i < len(loss); i++ {
		assert.LessOrEqual(t, loss[i], loss[i-1]+1e-9, "iteration %d", i)
	}
	assert.Len(t, c.FeatureBorders(), 2)
}

func TestCatBoostRegressor_Validation(t *testing.T) {
	X, y := stepData()
	c := NewCatBoostRegressor(WithDepth(17))
	var ve *errors.ValidationError
	assert.True(t, errors.As(c.Fit(X, y), &ve))

	_, err := NewCatBoostRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	c = NewCatBoostRegressor()
	require.NoError(t, c.SetParams(map[string]interface{}{"iterations": 30, "depth": 8, "learning_rate": 0.05}))
	p := c.GetParams()
	assert.Equal(t, 30, p["iterations"])
	assert.Equal(t, 8, p["depth"])
	assert.Equal(t, 0.05, p["learning_rate"])
	assert.Error(t, c.SetParams(map[string]interface{}{"loss_function": "Poisson"}))
	assert.Error(t, c.SetParams(map[string]interface{}{"n_estimators": 10}))
}

func TestCatBoostRegressor_CloneAndGob(t *testing.T) {
	X, y := smoothData()
	c := NewCatBoostRegressor(WithIterations(20), WithDepth(3))
	require.NoError(t, c.Fit(X, y))

	cl := c.Clone()
	assert.False(t, cl.IsFitted())
	require.NoError(t, cl.SetParams(map[string]interface{}{"depth": 4}))
	assert.Equal(t, 3, c.GetParams()["depth"])

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(c))
	var loaded CatBoostRegressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	want, err := c.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

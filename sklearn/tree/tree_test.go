package tree

import (
	"bytes"
	"encoding/gob"
	"math"
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

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	for _, criterion := range Criteria {
		if criterion == CriterionPoisson {
			continue // zero-sum child is not a valid poisson split
		}
		t.Run(criterion, func(t *testing.T) {
			X, y := stepData()
			d := NewDecisionTreeRegressor(WithCriterion(criterion))
			require.NoError(t, d.Fit(X, y))

			assert.True(t, d.IsFitted())
			assert.Equal(t, 1, d.GetDepth())
			assert.Equal(t, 2, d.GetNLeaves())
			root := d.Tree().Nodes[0]
			assert.Equal(t, 0, root.Feature)
			assert.Equal(t, 4.5, root.Threshold)

			pred, err := d.Predict(mat.NewDense(3, 1, []float64{0, 4.5, 100}))
			require.NoError(t, err)
			assert.Equal(t, 0.0, pred.At(0, 0))
			assert.Equal(t, 0.0, pred.At(1, 0), "threshold value goes left")
			assert.Equal(t, 10.0, pred.At(2, 0))

			score, err := d.Score(X, y)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, score, 1e-12)
		})
	}
}

func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 10})

	d := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, d.Fit(X, y))
	assert.Equal(t, 3.5, d.Tree().Nodes[0].Threshold)

	pred, err := d.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 2, 2, 10}, mat.Col(nil, 0, pred), 1e-12)
}

func TestDecisionTreeRegressor_UnlimitedDepthMemorises(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		1, 5,
		2, 3,
		3, 8,
		4, 1,
		5, 9,
		6, 2,
	})
	y := mat.NewDense(6, 1, []float64{3, -1, 7, 2, 0, 4})

	d := NewDecisionTreeRegressor()
	require.NoError(t, d.Fit(X, y))
	pred, err := d.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred), 1e-12)
	assert.Equal(t, 6, d.GetNLeaves())
}

func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 10})

	d := NewDecisionTreeRegressor(WithMaxDepth(1), WithMinSamplesLeaf(2))
	require.NoError(t, d.Fit(X, y))
	assert.Equal(t, 2.5, d.Tree().Nodes[0].Threshold)
}

func TestDecisionTreeRegressor_AbsoluteErrorUsesMedian(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 2, 100, 3})

	d := NewDecisionTreeRegressor(WithCriterion(CriterionAbsoluteError), WithMinSamplesSplit(10))
	require.NoError(t, d.Fit(X, y))
	pred, err := d.Predict(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.Equal(t, 2.5, pred.At(0, 0))

	X = mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y = mat.NewDense(6, 1, []float64{1, 2, 3, 20, 21, 22})
	d = NewDecisionTreeRegressor(WithCriterion(CriterionAbsoluteError), WithMaxDepth(1))
	require.NoError(t, d.Fit(X, y))
	assert.Equal(t, 3.5, d.Tree().Nodes[0].Threshold)
	pred, err = d.Predict(mat.NewDense(2, 1, []float64{1, 6}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, pred.At(0, 0))
	assert.Equal(t, 21.0, pred.At(1, 0))
}

func TestDecisionTreeRegressor_Poisson(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{1, 1, 2, 8, 9, 9})

	d := NewDecisionTreeRegressor(WithCriterion(CriterionPoisson), WithMaxDepth(1))
	require.NoError(t, d.Fit(X, y))
	assert.Equal(t, 3.5, d.Tree().Nodes[0].Threshold)

	neg := mat.NewDense(6, 1, []float64{1, -1, 2, 8, 9, 9})
	err := NewDecisionTreeRegressor(WithCriterion(CriterionPoisson)).Fit(X, neg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestDecisionTreeRegressor_FeatureImportances(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
		5, 7,
		6, 7,
		7, 7,
		8, 7,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})

	d := NewDecisionTreeRegressor()
	require.NoError(t, d.Fit(X, y))
	imp, err := d.FeatureImportances()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, imp, 1e-12)
}

func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	d := NewDecisionTreeRegressor()
	_, err := d.Predict(mat.NewDense(1, 1, []float64{1}))
	require.Error(t, err)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeRegressor_FeatureMismatch(t *testing.T) {
	X, y := stepData()
	d := NewDecisionTreeRegressor()
	require.NoError(t, d.Fit(X, y))
	_, err := d.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	require.Error(t, err)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestDecisionTreeRegressor_Params(t *testing.T) {
	d := NewDecisionTreeRegressor()
	p := d.GetParams()
	assert.Equal(t, "squared_error", p["criterion"])
	assert.Equal(t, 0, p["max_depth"])
	assert.Equal(t, 2, p["min_samples_split"])
	assert.Equal(t, 1, p["min_samples_leaf"])

	require.NoError(t, d.SetParams(map[string]interface{}{"criterion": "friedman_mse", "max_depth": 3.0}))
	assert.Equal(t, "friedman_mse", d.GetParams()["criterion"])
	assert.Equal(t, 3, d.GetParams()["max_depth"])

	err := d.SetParams(map[string]interface{}{"criterion": "gini"})
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "criterion", ve.ParamName)

	err = d.SetParams(map[string]interface{}{"n_estimators": 10})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "n_estimators", ve.ParamName)
}

func TestDecisionTreeRegressor_CloneIndependence(t *testing.T) {
	X, y := stepData()
	d := NewDecisionTreeRegressor(WithCriterion(CriterionFriedmanMSE))
	require.NoError(t, d.Fit(X, y))

	c := d.Clone()
	assert.False(t, c.IsFitted())
	assert.Equal(t, d.GetParams(), c.GetParams())

	require.NoError(t, c.SetParams(map[string]interface{}{"max_depth": 2}))
	assert.Equal(t, 0, d.GetParams()["max_depth"])
	assert.True(t, d.IsFitted())
}

func TestDecisionTreeRegressor_Gob(t *testing.T) {
	X, y := stepData()
	d := NewDecisionTreeRegressor(WithMaxDepth(4))
	require.NoError(t, d.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(d))

	var loaded DecisionTreeRegressor
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))
	assert.True(t, loaded.IsFitted())
	assert.Equal(t, d.GetParams(), loaded.GetParams())

	want, err := d.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestBuilder_Validate(t *testing.T) {
	b := NewBuilder("gini")
	assert.Error(t, b.Validate())

	b = NewBuilder(CriterionSquaredError)
	assert.NoError(t, b.Validate())
	b.MinSamplesSplit = 1
	assert.Error(t, b.Validate())
}

func TestBuilder_DuplicateSamples(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []float64{1, 2, 9}

	// row 2 drawn three times pulls the leaf mean towards 9
	b := NewBuilder(CriterionSquaredError)
	b.MaxDepth = 1
	tr, err := b.Build(X, y, []int{0, 1, 2, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, 5, tr.Nodes[0].NSamples)
	assert.Equal(t, 2.5, tr.Nodes[0].Threshold)
	assert.Equal(t, 9.0, tr.PredictRow([]float64{3}))
	assert.Equal(t, 1.5, tr.PredictRow([]float64{1}))
}

func TestRunningMedian(t *testing.T) {
	vals := []float64{5, 1, 9, 3, 3, 8, -2, 7}
	var rm runningMedian
	for i, v := range vals {
		rm.push(v)
		seen := append([]float64(nil), vals[:i+1]...)
		m := median(append([]float64(nil), seen...))
		want := 0.0
		for _, s := range seen {
			want += math.Abs(s - m)
		}
		assert.InDelta(t, want, rm.sad(), 1e-12, "after %d values", i+1)
	}
}

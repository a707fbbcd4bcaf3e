package preprocessing

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

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	// 分散0の列はスケール1
	assert.Equal(t, 1.0, s.Scale[1])
	assert.InDelta(t, (1-2.5)/math.Sqrt(1.25), out.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, out.At(2, 1))

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestStandardScalerWithoutMean(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	s := NewStandardScaler(false, true)

	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Mean[0])
	assert.InDelta(t, 0.5, s.Scale[0], 1e-12)
	assert.InDelta(t, 2.0, out.At(3, 0), 1e-12)
	assert.Equal(t, 0.0, out.At(0, 0))
}

func TestScalerNotFitted(t *testing.T) {
	_, err := NewStandardScalerDefault().Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = NewMinMaxScalerDefault().InverseTransform(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 0.5, out.At(1, 0))
	assert.Equal(t, 1.0, out.At(2, 0))
	assert.Equal(t, 0.0, out.At(1, 1))

	back, err := m.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	assert.Error(t, NewMinMaxScaler([2]float64{1, 1}).Fit(X))
}

func TestNewScaler(t *testing.T) {
	s, err := NewScaler("minmax")
	require.NoError(t, err)
	assert.IsType(t, &MinMaxScaler{}, s)

	s, err = NewScaler("")
	require.NoError(t, err)
	assert.IsType(t, &StandardScaler{}, s)

	_, err = NewScaler("robust")
	assert.Error(t, err)
}

func TestSimpleImputer(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 3, []float64{
		1, 7, nan,
		nan, 7, nan,
		3, 8, nan,
		10, 8, nan,
		4, 9, nan,
	})

	tests := []struct {
		strategy string
		want     []float64
	}{
		{StrategyMedian, []float64{3.5, 8, 0}},
		{StrategyMean, []float64{4.5, 7.8, 0}},
		// 7と8は同数なので小さい方
		{StrategyMostFrequent, []float64{1, 7, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, imp.Statistics, 1e-12)
			assert.Equal(t, tt.want[0], out.At(1, 0))
			assert.Equal(t, 3.0, out.At(2, 0))
		})
	}

	constant := NewSimpleImputer(StrategyConstant)
	constant.FillValue = -1
	out, err := constant.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.At(1, 0))

	assert.Error(t, NewSimpleImputer("knn").Fit(X))
}

func TestStringImputerAndOneHot(t *testing.T) {
	cols := [][]string{
		{"male", "female", "NA", "female"},
		{"none", "completed", "", "none"},
	}

	imp := NewStringImputer(StrategyMostFrequent)
	require.NoError(t, imp.Fit(cols))
	assert.Equal(t, []string{"female", "none"}, imp.Statistics)

	filled, err := imp.Transform(cols)
	require.NoError(t, err)
	assert.Equal(t, "female", filled[0][2])
	assert.Equal(t, "none", filled[1][2])

	enc := NewOneHotEncoder()
	require.NoError(t, enc.Fit(filled))
	assert.Equal(t, [][]string{{"female", "male"}, {"completed", "none"}}, enc.Categories)
	assert.Equal(t, 4, enc.NFeaturesOut())
	assert.Equal(t, []string{"gender_female", "gender_male", "prep_completed", "prep_none"},
		enc.FeatureNames([]string{"gender", "prep"}))

	out, err := enc.Transform([][]string{{"male", "other"}, {"none", "completed"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, mat.Row(nil, 0, out))
	// unknown category "other" encodes as all zeros
	assert.Equal(t, []float64{0, 0, 1, 0}, mat.Row(nil, 1, out))

	enc.HandleUnknown = "error"
	_, err = enc.Transform([][]string{{"other"}, {"none"}})
	assert.Error(t, err)
}

func TestIsMissingAndParseNumeric(t *testing.T) {
	for _, s := range []string{"", "NA", "nan", "NULL", " null "} {
		assert.True(t, IsMissing(s), s)
	}
	assert.False(t, IsMissing("0"))

	v, ok := ParseNumeric(" 72 ")
	assert.True(t, ok)
	assert.Equal(t, 72.0, v)

	v, ok = ParseNumeric("NaN")
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v))

	_, ok = ParseNumeric("group A")
	assert.False(t, ok)
}

type mapSource map[string][]string

func (m mapSource) Column(name string) ([]string, error) {
	col, ok := m[name]
	if !ok {
		return nil, errors.Newf("no column %q", name)
	}
	return col, nil
}

func (m mapSource) Len() int {
	for _, c := range m {
		return len(c)
	}
	return 0
}

func TestColumnTransformer(t *testing.T) {
	train := mapSource{
		"reading": {"70", "80", "", "90"},
		"gender":  {"male", "female", "female", "NA"},
	}
	ct := NewColumnTransformer([]string{"reading"}, []string{"gender"})

	Xt, err := ct.FitTransform(train)
	require.NoError(t, err)
	r, c := Xt.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []string{"reading", "gender_female", "gender_male"}, ct.FeatureNames())
	assert.Equal(t, 3, ct.NFeaturesOut())

	// median of 70,80,90 = 80 fills the gap, which standardises to 0
	assert.InDelta(t, 0.0, Xt.At(2, 0), 1e-12)

	test := mapSource{
		"reading": {"80", "100"},
		"gender":  {"male", "unknown"},
	}
	Xs, err := ct.Transform(test)
	require.NoError(t, err)
	r, c = Xs.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.0, Xs.At(1, 1))
	assert.Equal(t, 0.0, Xs.At(1, 2))

	_, err = ct.Transform(mapSource{"reading": {"abc"}, "gender": {"male"}})
	assert.Error(t, err)

	_, err = NewColumnTransformer([]string{"reading"}, nil).Transform(test)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestColumnTransformerGobRoundTrip(t *testing.T) {
	train := mapSource{
		"reading": {"70", "80", "75", "90"},
		"lunch":   {"standard", "free", "standard", "free"},
	}
	minmax, err := NewScaler("minmax")
	require.NoError(t, err)
	ct := NewColumnTransformer([]string{"reading"}, []string{"lunch"}, WithNumericScaler(minmax))
	want, err := ct.FitTransform(train)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(ct))

	var loaded ColumnTransformer
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	got, err := loaded.Transform(train)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
	assert.IsType(t, &MinMaxScaler{}, loaded.NumericScaler)
}

// Package preprocessing holds the feature preprocessors of the
// transformation stage: imputers, scalers, one-hot encoding and the
// ColumnTransformer that wires them per column group.
//
// 数値データは mat.Matrix、欠損値は NaN。カテゴリデータは文字列のまま扱う。
// 全ての前処理器は gob でそのまま保存できる。
package preprocessing

import (
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

func init() {
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
}

// scaleEpsilon below which a spread counts as zero; such columns keep scale 1.
const scaleEpsilon = 1e-8

// NewScaler returns the numeric scaler named by kind: "standard" or "minmax".
func NewScaler(kind string) (model.InverseTransformer, error) {
	switch kind {
	case "", "standard":
		return NewStandardScalerDefault(), nil
	case "minmax":
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("numeric_scaler", "must be 'standard' or 'minmax'", kind)
	}
}

// columnwise checks st against X and returns f applied to every cell.
func columnwise(st *model.StateManager, name, method string, X mat.Matrix, f func(j int, v float64) float64) (mat.Matrix, error) {
	if err := st.RequireFitted(name, method); err != nil {
		return nil, err
	}
	if err := st.CheckFeatures(name+"."+method, X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 { return f(j, v) }, X)
	return out, nil
}

// fitColumns calls stats once per column of X and records the fit on st.
func fitColumns(st *model.StateManager, op string, X mat.Matrix, stats func(j int, col []float64)) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		stats(j, col)
	}
	st.SetDimensions(c, r)
	st.SetFitted()
	return nil
}

// StandardScaler centres each column on its mean and divides by its
// population standard deviation, like scikit-learn's StandardScaler.
type StandardScaler struct {
	State *model.StateManager

	// Mean is zero for every column when WithMean is false.
	Mean []float64
	// Scale is 1 for constant columns and when WithStd is false.
	Scale []float64

	WithMean bool
	WithStd  bool
}

// NewStandardScaler returns an unfitted scaler.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{State: model.NewStateManager(), WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault は with_mean=true, with_std=true のスケーラーを返す
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	_, c := X.Dims()
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	return fitColumns(s.State, "StandardScaler.Fit", X, func(j int, col []float64) {
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if std := math.Sqrt(variance); s.WithStd && std >= scaleEpsilon {
			s.Scale[j] = std
		}
	})
}

func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return columnwise(s.State, "StandardScaler", "Transform", X, func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return columnwise(s.State, "StandardScaler", "InverseTransform", X, func(j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

// MinMaxScaler maps each column's training range onto FeatureRange.
type MinMaxScaler struct {
	State *model.StateManager

	DataMin []float64
	DataMax []float64
	// Scale は (max - min)。定数列は 1
	Scale []float64

	FeatureRange [2]float64
}

func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{State: model.NewStateManager(), FeatureRange: featureRange}
}

// NewMinMaxScalerDefault scales into [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

func (m *MinMaxScaler) width() float64 { return m.FeatureRange[1] - m.FeatureRange[0] }

func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if m.width() <= 0 {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	_, c := X.Dims()
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	return fitColumns(m.State, "MinMaxScaler.Fit", X, func(j int, col []float64) {
		m.DataMin[j], m.DataMax[j] = floats.Min(col), floats.Max(col)
		m.Scale[j] = m.DataMax[j] - m.DataMin[j]
		if m.Scale[j] < scaleEpsilon {
			m.Scale[j] = 1
		}
	})
}

func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	w := m.width()
	return columnwise(m.State, "MinMaxScaler", "Transform", X, func(j int, v float64) float64 {
		return (v-m.DataMin[j])/m.Scale[j]*w + m.FeatureRange[0]
	})
}

func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	w := m.width()
	return columnwise(m.State, "MinMaxScaler", "InverseTransform", X, func(j int, v float64) float64 {
		return (v-m.FeatureRange[0])/w*m.Scale[j] + m.DataMin[j]
	})
}

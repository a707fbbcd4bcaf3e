package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// Imputation strategies, named as in scikit-learn.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// SimpleImputer replaces NaN entries column-wise with a statistic learned in Fit.
type SimpleImputer struct {
	State *model.StateManager

	Strategy  string
	FillValue float64

	// Statistics は各列の補完値
	Statistics []float64
}

// NewSimpleImputer creates an imputer for numeric matrices.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

// Fit learns one fill value per column from the non-missing entries.
// A column without any observed value is filled with 0 and reported through errors.Warn.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent, StrategyConstant:
	default:
		return errors.NewValidationError("strategy", "unsupported imputation strategy", s.Strategy)
	}

	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if s.Strategy == StrategyConstant {
			s.Statistics[j] = s.FillValue
			continue
		}
		if len(observed) == 0 {
			errors.Warn(errors.NewImputationWarning(j, 0))
			continue
		}
		s.Statistics[j] = columnStatistic(s.Strategy, observed)
	}

	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

func columnStatistic(strategy string, observed []float64) float64 {
	switch strategy {
	case StrategyMean:
		return stat.Mean(observed, nil)
	case StrategyMedian:
		sort.Float64s(observed)
		n := len(observed)
		if n%2 == 1 {
			return observed[n/2]
		}
		return (observed[n/2-1] + observed[n/2]) / 2
	default:
		// 最頻値。同数の場合は最小値（scikit-learnと同じ）
		sort.Float64s(observed)
		best, bestCount := observed[0], 0
		for i := 0; i < len(observed); {
			k := i
			for k < len(observed) && observed[k] == observed[i] {
				k++
			}
			if k-i > bestCount {
				best, bestCount = observed[i], k-i
			}
			i = k
		}
		return best
	}
}

// Transform replaces NaN entries with the learned statistics.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	if err := s.State.CheckFeatures("SimpleImputer.Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform fits on X and imputes it.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// StringImputer is the categorical counterpart of SimpleImputer.
// Missing cells are detected with IsMissing.
type StringImputer struct {
	Strategy   string // most_frequent or constant
	FillValue  string
	Statistics []string
	Fitted     bool
}

// NewStringImputer creates an imputer for categorical columns.
func NewStringImputer(strategy string) *StringImputer {
	return &StringImputer{Strategy: strategy}
}

// Fit learns the fill value of every column. columns[j] holds all values of column j.
func (s *StringImputer) Fit(columns [][]string) error {
	if len(columns) == 0 {
		return errors.NewModelError("StringImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.Strategy != StrategyMostFrequent && s.Strategy != StrategyConstant {
		return errors.NewValidationError("strategy", "categorical columns support most_frequent or constant", s.Strategy)
	}

	s.Statistics = make([]string, len(columns))
	for j, col := range columns {
		if s.Strategy == StrategyConstant {
			s.Statistics[j] = s.FillValue
			continue
		}
		counts := make(map[string]int)
		for _, v := range col {
			if !IsMissing(v) {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			s.Statistics[j] = "missing"
			continue
		}
		s.Statistics[j] = mostFrequent(counts)
	}
	s.Fitted = true
	return nil
}

// mostFrequent returns the key with the highest count, the smallest key on ties.
func mostFrequent(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

// Transform returns imputed copies of columns.
func (s *StringImputer) Transform(columns [][]string) ([][]string, error) {
	if !s.Fitted {
		return nil, errors.NewNotFittedError("StringImputer", "Transform")
	}
	if len(columns) != len(s.Statistics) {
		return nil, errors.NewDimensionError("StringImputer.Transform", len(s.Statistics), len(columns), 1)
	}
	out := make([][]string, len(columns))
	for j, col := range columns {
		out[j] = make([]string, len(col))
		for i, v := range col {
			if IsMissing(v) {
				v = s.Statistics[j]
			}
			out[j][i] = v
		}
	}
	return out, nil
}

// Package objectives holds the differentiable losses shared by the boosting
// estimators. Gradients and hessians are taken with respect to the raw
// prediction, so the boosting direction is the negative gradient.
package objectives

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// Objective defines the interface for the supported objective functions
type Objective interface {
	// Gradient is the first derivative of Loss in prediction
	Gradient(prediction, target float64) float64

	// Hessian is the second derivative of Loss in prediction
	Hessian(prediction, target float64) float64

	// Loss for a single sample
	Loss(prediction, target float64) float64

	// InitScore is the constant prediction that minimises the loss on targets
	InitScore(targets []float64) float64

	Name() string
}

// Names used by the estimators' loss parameters.
const (
	SquaredError  = "squared_error"
	AbsoluteError = "absolute_error"
	PseudoHuber   = "pseudo_huber"
)

// L2 implements the squared error ½(p-y)².
type L2 struct{}

func (L2) Gradient(prediction, target float64) float64 { return prediction - target }

func (L2) Hessian(prediction, target float64) float64 { return 1.0 }

func (L2) Loss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (L2) InitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	return stat.Mean(targets, nil)
}

func (L2) Name() string { return SquaredError }

// L1 implements the absolute error |p-y|. The hessian is taken as 1 so that
// Newton steps degrade to gradient steps.
type L1 struct{}

func (L1) Gradient(prediction, target float64) float64 {
	switch {
	case prediction > target:
		return 1.0
	case prediction < target:
		return -1.0
	default:
		return 0.0
	}
}

func (L1) Hessian(prediction, target float64) float64 { return 1.0 }

func (L1) Loss(prediction, target float64) float64 { return math.Abs(prediction - target) }

func (L1) InitScore(targets []float64) float64 { return Median(targets) }

func (L1) Name() string { return AbsoluteError }

// Huber implements the pseudo-Huber loss δ²(√(1+(r/δ)²)-1), which is smooth
// everywhere and has a strictly positive hessian.
type Huber struct {
	Delta float64
}

func (h Huber) scaled(prediction, target float64) (r, s float64) {
	r = prediction - target
	z := r / h.Delta
	return r, 1 + z*z
}

func (h Huber) Gradient(prediction, target float64) float64 {
	r, s := h.scaled(prediction, target)
	return r / math.Sqrt(s)
}

func (h Huber) Hessian(prediction, target float64) float64 {
	_, s := h.scaled(prediction, target)
	return 1 / (s * math.Sqrt(s))
}

func (h Huber) Loss(prediction, target float64) float64 {
	_, s := h.scaled(prediction, target)
	return h.Delta * h.Delta * (math.Sqrt(s) - 1)
}

func (h Huber) InitScore(targets []float64) float64 { return Median(targets) }

func (h Huber) Name() string { return PseudoHuber }

// ByName resolves the loss names used by the scikit-learn, XGBoost and
// CatBoost style estimators.
func ByName(name string) (Objective, error) {
	switch name {
	case SquaredError, "reg:squarederror", "RMSE":
		return L2{}, nil
	case AbsoluteError, "reg:absoluteerror", "MAE":
		return L1{}, nil
	case PseudoHuber, "reg:pseudohubererror", "Huber":
		return Huber{Delta: 1.0}, nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", name)
}

// MeanLoss averages obj.Loss over all pairs.
func MeanLoss(obj Objective, predictions, targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	sum := 0.0
	for i, t := range targets {
		sum += obj.Loss(predictions[i], t)
	}
	return sum / float64(len(targets))
}

// Median returns the median of values without modifying them. An even
// count averages the two middle values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

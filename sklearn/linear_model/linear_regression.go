// Package linear_model provides ordinary least squares regression.
package linear_model

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/core/model"
	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

func init() {
	gob.Register(&LinearRegression{})
}

// LinearRegression is a linear regression model using ordinary least squares.
// Like scikit-learn it returns the minimum-norm solution when X is rank
// deficient, which is the normal case after one-hot encoding.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	coef      []float64
	intercept float64
	rank      int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
//
// 切片を学習する場合はXとyを中心化してから特異値分解で最小二乗解を求め、
// 切片は mean(y) - mean(X)·coef で復元する。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	Xc := mat.DenseCopyOf(X)
	yc := mat.DenseCopyOf(y)
	xMean := make([]float64, cols)
	yMean := 0.0

	if lr.fitIntercept {
		col := make([]float64, rows)
		for j := 0; j < cols; j++ {
			mat.Col(col, j, Xc)
			xMean[j] = stat.Mean(col, nil)
		}
		yMean = stat.Mean(model.Column(yc, 0), nil)
		Xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, Xc)
		yc.Apply(func(i, j int, v float64) float64 { return v - yMean }, yc)
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD failed", errors.ErrSingularMatrix)
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, cols))
	lr.rank = svd.Rank(rcond)

	lr.coef = make([]float64, cols)
	if lr.rank > 0 {
		var solution mat.Dense
		svd.SolveTo(&solution, yc, lr.rank)
		for j := 0; j < cols; j++ {
			lr.coef[j] = solution.At(j, 0)
		}
	}

	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = yMean
		for j, c := range lr.coef {
			lr.intercept -= xMean[j] * c
		}
	}

	if err := errors.CheckScalar("LinearRegression.Fit", lr.intercept, -1); err != nil {
		return err
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LinearRegression.Predict", X); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	var pred mat.VecDense
	pred.MulVec(X, mat.NewVecDense(len(lr.coef), lr.coef))

	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, pred.AtVec(i)+lr.intercept)
	}
	return out, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return model.R2(lr, X, y)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Rank is the effective rank of the (centered) design matrix.
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("LinearRegression", params, map[string]model.ParamSetter{
		"fit_intercept": model.Bool("fit_intercept", &lr.fitIntercept),
	})
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LinearRegression) Clone() model.Regressor {
	return NewLinearRegression(WithFitIntercept(lr.fitIntercept))
}

type linearRegressionState struct {
	FitIntercept bool
	Coef         []float64
	Intercept    float64
	Rank         int
	State        model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (lr *LinearRegression) GobEncode() ([]byte, error) {
	return model.EncodeState(linearRegressionState{
		FitIntercept: lr.fitIntercept,
		Coef:         lr.coef,
		Intercept:    lr.intercept,
		Rank:         lr.rank,
		State:        lr.state.GetState(),
	})
}

// GobDecode implements gob.GobDecoder.
func (lr *LinearRegression) GobDecode(data []byte) error {
	var s linearRegressionState
	if err := model.DecodeState(data, &s); err != nil {
		return err
	}
	lr.state = model.NewStateManager()
	lr.state.SetState(s.State)
	lr.fitIntercept = s.FitIntercept
	lr.coef = s.Coef
	lr.intercept = s.Intercept
	lr.rank = s.Rank
	return nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
}

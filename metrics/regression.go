// Package metrics は回帰モデルの評価指標を提供します。
// 入力はn×1の行列（*mat.VecDenseを含む）で、scikit-learnの定義に従います。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// columns は2つの列ベクトルを検証してスライスとして取り出す
func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rPred != rTrue {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}

	t := make([]float64, rTrue)
	p := make([]float64, rTrue)
	for i := 0; i < rTrue; i++ {
		t[i] = yTrue.At(i, 0)
		p[i] = yPred.At(i, 0)
	}
	return t, p, nil
}

func residuals(t, p []float64) []float64 {
	r := make([]float64, len(t))
	floats.SubTo(r, t, p)
	return r
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	r := residuals(t, p)
	return floats.Dot(r, r) / float64(len(r)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(t, p, 1) / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrueが定数の場合、scikit-learnと同様に完全一致なら1、それ以外は0を返す。
// グリッドサーチの分割で目的変数が定数になってもエラーにしないため。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	mean := stat.Mean(t, nil)
	var tss float64
	for _, v := range t {
		tss += (v - mean) * (v - mean)
	}
	r := residuals(t, p)
	rss := floats.Dot(r, r)

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrueが0の要素は除外する。
func MAPE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	validCount := 0
	for i, v := range t {
		if v != 0 {
			sum += math.Abs(v-p[i]) / math.Abs(v)
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	varTrue := popVariance(t)
	varDiff := popVariance(residuals(t, p))
	if varTrue == 0 {
		if varDiff == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - varDiff/varTrue, nil
}

func popVariance(x []float64) float64 {
	return stat.PopVariance(x, nil)
}

// RegressionReport bundles the regression metrics logged for a fitted model.
type RegressionReport struct {
	R2                float64 `json:"r2"`
	MSE               float64 `json:"mse"`
	RMSE              float64 `json:"rmse"`
	MAE               float64 `json:"mae"`
	ExplainedVariance float64 `json:"explained_variance"`
}

// Evaluate computes every metric of RegressionReport.
func Evaluate(yTrue, yPred mat.Matrix) (RegressionReport, error) {
	var rep RegressionReport
	var err error

	if rep.R2, err = R2Score(yTrue, yPred); err != nil {
		return rep, err
	}
	if rep.MSE, err = MSE(yTrue, yPred); err != nil {
		return rep, err
	}
	rep.RMSE = math.Sqrt(rep.MSE)
	if rep.MAE, err = MAE(yTrue, yPred); err != nil {
		return rep, err
	}
	if rep.ExplainedVariance, err = ExplainedVarianceScore(yTrue, yPred); err != nil {
		return rep, err
	}
	return rep, nil
}

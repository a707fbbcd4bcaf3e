package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/metrics"
)

// R2 predicts X with p and returns the coefficient of determination against y.
// Regressors implement Score with it.
func R2(p Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

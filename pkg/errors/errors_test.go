package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "regpipe: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "regpipe: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			// スタックトレースの存在確認
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 7, 1)

	assert.Equal(t, "regpipe: Predict: expected 10 features, got 7", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 7, dimErr.Got)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	assert.Equal(t, "regpipe: LinearRegression.Predict called before Fit", err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("n_neighbors", "must be positive", 0)

	assert.Equal(t, "regpipe: invalid n_neighbors: must be positive (got 0)", err.Error())

	var valErr *ValidationError
	require.True(t, As(err, &valErr))
	assert.Equal(t, "n_neighbors", valErr.ParamName)
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("AdaBoostRegressor", 12, "estimator error >= 0.5")

	assert.Equal(t, "AdaBoostRegressor stopped after 12 iterations: estimator error >= 0.5", warn.Error())
}

func TestWarnUsesHandler(t *testing.T) {
	var got []string
	prev := SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(prev)

	Warn(NewConvergenceWarning("X", 1, ""))
	Warn(NewImputationWarning(2, 0))

	require.Len(t, got, 2)
	assert.Equal(t, "X stopped after 1 iterations", got[0])
	assert.Equal(t, "column 2 has no observed values, imputing 0", got[1])
}

func TestWarnDefaultHandler(t *testing.T) {
	prev := SetWarningHandler(nil)
	defer SetWarningHandler(prev)

	assert.NotPanics(t, func() {
		Warn(NewFitFailedWarning("n_neighbors=9", New("n_samples = 8")))
	})
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrSingularMatrix, "in LinearRegression.Predict")

	assert.True(t, Is(wrapped, ErrSingularMatrix))
	assert.Contains(t, wrapped.Error(), "in LinearRegression.Predict")

	wrappedf := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)
	assert.True(t, Is(wrappedf, ErrEmptyData))
	assert.Contains(t, wrappedf.Error(), "in Predict: expected 10, got 5")
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	assert.Contains(t, err3.Error(), "base error")
	assert.Contains(t, fmt.Sprintf("%+v", err3), "errors_test.go")
}

func TestHints(t *testing.T) {
	err := WithHint(New("score too low"), "add more training data")
	assert.True(t, strings.Contains(FlattenHints(err), "add more training data"))
}

func TestCheckMatrix(t *testing.T) {
	ok := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.NoError(t, CheckMatrix("transform", ok, 2, 2, -1))

	bad := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, math.Inf(1)})
	err := CheckMatrix("transform", bad, 2, 2, -1)
	require.Error(t, err)

	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Len(t, numErr.Values, 1)

	assert.Error(t, CheckScalar("score", math.Inf(-1), 3))
	assert.NoError(t, CheckScalar("score", 0.5, 3))
}

package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// CheckXY validates a training pair and returns the sample and feature counts.
// y must be a single column with as many rows as X.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewValueError(op, "X and y must not be nil")
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, nil
}

// Column copies column j of m into a new slice.
func Column(m mat.Matrix, j int) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// Rows copies m into a slice of row slices. Tree and neighbour searches
// index rows far more often than columns.
func Rows(m mat.Matrix) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	backing := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		r := backing[i*cols : (i+1)*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			r[j] = m.At(i, j)
		}
		out[i] = r
	}
	return out
}

// ColumnVector wraps values as an n×1 matrix.
func ColumnVector(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}

// Package model_selection provides scikit-learn style data splitting,
// parameter grids and exhaustive grid search with K-fold cross-validation.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter.
// Without shuffling, fold i tests on the i-th contiguous block of rows and the
// first n%k folds get one extra row.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for nSamples rows.
func (kf *KFold) Split(nSamples int) ([]CVFold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	start := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		end := start + testSize

		test := make([]int, testSize)
		copy(test, indices[start:end])

		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)

		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
		start = end
	}
	return folds, nil
}

// TrainTestSplit returns a seeded random partition of nSamples row indices.
// The test partition has ceil(testSize*n) rows; both partitions follow the
// permutation order. Identical arguments always yield identical partitions.
func TrainTestSplit(nSamples int, testSize float64, seed int) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"the resulting train or test set would be empty")
	}

	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	perm := r.Perm(nSamples)
	return perm[nTest:], perm[:nTest], nil
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

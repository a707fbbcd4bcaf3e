// Package ensemble provides tree ensembles for regression: bagged random
// forests, gradient boosting and AdaBoost.R2. All members are grown with
// tree.Builder, sequentially and from explicitly seeded generators.
package ensemble

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

func newRand(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// childRand derives an independent stream for one ensemble member.
func childRand(r *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(r.Uint64(), r.Uint64()))
}

func allSamples(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// meanImportances averages per-tree importances and renormalises.
func meanImportances(trees []*tree.Tree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	total := 0.0
	for _, t := range trees {
		for j, v := range t.FeatureImportances() {
			out[j] += v
			total += v
		}
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

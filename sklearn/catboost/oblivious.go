package catboost

import "math"

// ObliviousTree is a symmetric tree: level d tests the same feature and
// border in every node, so a sample's leaf is the bit pattern of its
// answers.
type ObliviousTree struct {
	Features   []int
	Borders    []float64
	LeafValues []float64
}

// Depth is the number of levels.
func (t *ObliviousTree) Depth() int {
	return len(t.Features)
}

// LeafIndex returns the leaf x falls into. Bit d is set when x is right of
// the level-d border.
func (t *ObliviousTree) LeafIndex(x []float64) int {
	idx := 0
	for d, f := range t.Features {
		if x[f] > t.Borders[d] {
			idx |= 1 << d
		}
	}
	return idx
}

// Predict returns the leaf value for x.
func (t *ObliviousTree) Predict(x []float64) float64 {
	return t.LeafValues[t.LeafIndex(x)]
}

// levelSplit is the chosen (feature, border bin) of one level.
type levelSplit struct {
	feature int
	bin     int
	score   float64
}

// obliviousBuilder grows one oblivious tree on quantized features.
type obliviousBuilder struct {
	q       *quantizer
	bins    [][]uint16
	grad    []float64
	hess    []float64
	depth   int
	l2      float64
	lr      float64
	samples []int
}

func (b *obliviousBuilder) score(g, h float64) float64 {
	if h+b.l2 <= 0 {
		return 0
	}
	return g * g / (h + b.l2)
}

// build adds levels greedily while some border improves the score
// Σ_leaves G²/(H+λ), then sets Newton leaf values -G/(H+λ) scaled by the
// learning rate.
func (b *obliviousBuilder) build() *ObliviousTree {
	t := &ObliviousTree{}
	leafOf := make([]int, len(b.bins))

	var G, H float64
	for _, i := range b.samples {
		G += b.grad[i]
		H += b.hess[i]
	}
	current := b.score(G, H)

	for level := 0; level < b.depth; level++ {
		nLeaves := 1 << level
		best, ok := b.bestLevelSplit(leafOf, nLeaves)
		if !ok || best.score <= current+1e-12 {
			break
		}
		border := b.q.borders[best.feature][best.bin]
		t.Features = append(t.Features, best.feature)
		t.Borders = append(t.Borders, border)
		for _, i := range b.samples {
			if int(b.bins[i][best.feature]) > best.bin {
				leafOf[i] |= 1 << level
			}
		}
		current = best.score
	}

	nLeaves := 1 << len(t.Features)
	sumG := make([]float64, nLeaves)
	sumH := make([]float64, nLeaves)
	for _, i := range b.samples {
		sumG[leafOf[i]] += b.grad[i]
		sumH[leafOf[i]] += b.hess[i]
	}
	t.LeafValues = make([]float64, nLeaves)
	for l := range t.LeafValues {
		if sumH[l]+b.l2 > 0 {
			t.LeafValues[l] = -b.lr * sumG[l] / (sumH[l] + b.l2)
		}
	}
	return t
}

func (b *obliviousBuilder) bestLevelSplit(leafOf []int, nLeaves int) (levelSplit, bool) {
	best := levelSplit{score: math.Inf(-1)}
	found := false

	for f, borders := range b.q.borders {
		nb := len(borders)
		if nb == 0 {
			continue
		}
		width := nb + 1
		histG := make([]float64, nLeaves*width)
		histH := make([]float64, nLeaves*width)
		for _, i := range b.samples {
			k := leafOf[i]*width + int(b.bins[i][f])
			histG[k] += b.grad[i]
			histH[k] += b.hess[i]
		}

		totG := make([]float64, nLeaves)
		totH := make([]float64, nLeaves)
		for l := 0; l < nLeaves; l++ {
			for k := 0; k < width; k++ {
				totG[l] += histG[l*width+k]
				totH[l] += histH[l*width+k]
			}
		}

		// cumulative left sums per leaf while moving the border right
		leftG := make([]float64, nLeaves)
		leftH := make([]float64, nLeaves)
		for border := 0; border < nb; border++ {
			s := 0.0
			for l := 0; l < nLeaves; l++ {
				leftG[l] += histG[l*width+border]
				leftH[l] += histH[l*width+border]
				s += b.score(leftG[l], leftH[l]) + b.score(totG[l]-leftG[l], totH[l]-leftH[l])
			}
			if s > best.score {
				best = levelSplit{feature: f, bin: border, score: s}
				found = true
			}
		}
	}
	return best, found
}

// Package tree provides CART regression trees. The Builder is shared with
// the ensemble package, which grows many trees on resampled rows.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// Split criteria, named as in scikit-learn.
const (
	CriterionSquaredError  = "squared_error"
	CriterionFriedmanMSE   = "friedman_mse"
	CriterionAbsoluteError = "absolute_error"
	CriterionPoisson       = "poisson"
)

// Criteria lists the supported split criteria.
var Criteria = []string{CriterionSquaredError, CriterionFriedmanMSE, CriterionAbsoluteError, CriterionPoisson}

// Node is one node of a Tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
	Gain      float64
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Left == -1 && n.Right == -1
}

// Tree is a fitted regression tree stored as a flat node slice; Nodes[0] is the root.
type Tree struct {
	Nodes     []Node
	NFeatures int
	Depth     int
}

// Apply returns the index of the leaf x falls into. Values equal to a
// threshold go left.
func (t *Tree) Apply(x []float64) int {
	id := 0
	for {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return id
		}
		if x[n.Feature] <= n.Threshold {
			id = n.Left
		} else {
			id = n.Right
		}
	}
}

// PredictRow returns the value of the leaf x falls into.
func (t *Tree) PredictRow(x []float64) float64 {
	return t.Nodes[t.Apply(x)].Value
}

// NumLeaves counts the leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// FeatureImportances returns the total gain per feature normalised to sum to one.
func (t *Tree) FeatureImportances() []float64 {
	imp := make([]float64, t.NFeatures)
	total := 0.0
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if !n.IsLeaf() && n.Gain > 0 {
			imp[n.Feature] += n.Gain
			total += n.Gain
		}
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// Builder grows a Tree with exhaustive best-split search on exact thresholds.
type Builder struct {
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features tried per split, 0 means all

	// Rng draws the candidate features when MaxFeatures is set. It may be nil
	// otherwise.
	Rng *rand.Rand
}

// NewBuilder returns a Builder with scikit-learn's defaults.
func NewBuilder(criterion string) *Builder {
	return &Builder{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Validate checks the builder settings.
func (b *Builder) Validate() error {
	if !validCriterion(b.Criterion) {
		return errors.NewValidationError("criterion", "unsupported split criterion", b.Criterion)
	}
	if b.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", b.MaxDepth)
	}
	if b.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", b.MinSamplesSplit)
	}
	if b.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", b.MinSamplesLeaf)
	}
	if b.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", b.MaxFeatures)
	}
	return nil
}

func validCriterion(c string) bool {
	for _, k := range Criteria {
		if c == k {
			return true
		}
	}
	return false
}

// Build grows a tree on the rows listed in samples. samples may contain
// duplicates, which is how bootstrap and weighted resampling are expressed.
func (b *Builder) Build(X [][]float64, y []float64, samples []int) (*Tree, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 || len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "tree.Builder.Build")
	}
	if b.Criterion == CriterionPoisson {
		sum := 0.0
		for _, i := range samples {
			if y[i] < 0 {
				return nil, errors.NewValueError("tree.Builder.Build",
					"some value(s) of y are negative which is not allowed for Poisson regression")
			}
			sum += y[i]
		}
		if sum <= 0 {
			return nil, errors.NewValueError("tree.Builder.Build",
				"sum of y is not positive which is necessary for Poisson regression")
		}
	}

	g := &grower{
		b:         b,
		X:         X,
		y:         y,
		nFeatures: len(X[0]),
		tree:      &Tree{NFeatures: len(X[0])},
	}
	idx := append([]int(nil), samples...)
	g.grow(idx, 0)
	return g.tree, nil
}

type grower struct {
	b         *Builder
	X         [][]float64
	y         []float64
	nFeatures int
	tree      *Tree

	// scratch buffers reused across nodes
	order []int
	ys    []float64
	scan  scanner
}

type split struct {
	feature   int
	threshold float64
	pos       int // number of samples going left
	score     float64
}

func (g *grower) grow(idx []int, depth int) int {
	id := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{
		Left:     -1,
		Right:    -1,
		Value:    g.leafValue(idx),
		NSamples: len(idx),
	})
	if depth > g.tree.Depth {
		g.tree.Depth = depth
	}

	if !g.splittable(idx, depth) {
		return id
	}
	best, ok := g.bestSplit(idx)
	if !ok {
		return id
	}

	// the stable sort reproduces the order the split was scored on
	g.sortBy(idx, best.feature)
	left := append([]int(nil), idx[:best.pos]...)
	right := append([]int(nil), idx[best.pos:]...)

	parentLoss := g.loss(idx)
	gain := parentLoss - g.loss(left) - g.loss(right)

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)

	n := &g.tree.Nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	n.Gain = gain
	return id
}

func (g *grower) splittable(idx []int, depth int) bool {
	b := g.b
	if b.MaxDepth > 0 && depth >= b.MaxDepth {
		return false
	}
	if len(idx) < b.MinSamplesSplit || len(idx) < 2*b.MinSamplesLeaf {
		return false
	}
	first := g.y[idx[0]]
	for _, i := range idx[1:] {
		if g.y[i] != first {
			return true
		}
	}
	return false
}

func (g *grower) candidateFeatures() []int {
	if g.b.MaxFeatures > 0 && g.b.MaxFeatures < g.nFeatures && g.b.Rng != nil {
		return g.b.Rng.Perm(g.nFeatures)[:g.b.MaxFeatures]
	}
	features := make([]int, g.nFeatures)
	for i := range features {
		features[i] = i
	}
	return features
}

func (g *grower) sortBy(idx []int, feature int) {
	sort.SliceStable(idx, func(a, b int) bool {
		return g.X[idx[a]][feature] < g.X[idx[b]][feature]
	})
}

func (g *grower) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := g.b.MinSamplesLeaf
	best := split{score: math.Inf(-1)}
	found := false

	if cap(g.order) < n {
		g.order = make([]int, n)
		g.ys = make([]float64, n)
	}
	order := g.order[:n]
	ys := g.ys[:n]

	for _, f := range g.candidateFeatures() {
		copy(order, idx)
		g.sortBy(order, f)
		if g.X[order[0]][f] == g.X[order[n-1]][f] {
			continue
		}
		for k, i := range order {
			ys[k] = g.y[i]
		}
		g.scan.reset(g.b.Criterion, ys)

		for p := minLeaf; p <= n-minLeaf; p++ {
			lo := g.X[order[p-1]][f]
			hi := g.X[order[p]][f]
			if lo == hi {
				continue
			}
			score, ok := g.scan.score(p)
			if !ok || score <= best.score {
				continue
			}
			threshold := lo/2 + hi/2
			if threshold >= hi || math.IsInf(threshold, 0) {
				threshold = lo
			}
			best = split{feature: f, threshold: threshold, pos: p, score: score}
			found = true
		}
	}
	return best, found
}

func (g *grower) leafValue(idx []int) float64 {
	if g.b.Criterion == CriterionAbsoluteError {
		vals := make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = g.y[i]
		}
		return median(vals)
	}
	sum := 0.0
	for _, i := range idx {
		sum += g.y[i]
	}
	return sum / float64(len(idx))
}

// loss is the node loss used for feature importances: squared error,
// absolute error or half Poisson deviance, summed over the node.
func (g *grower) loss(idx []int) float64 {
	v := g.leafValue(idx)
	total := 0.0
	for _, i := range idx {
		yi := g.y[i]
		switch g.b.Criterion {
		case CriterionAbsoluteError:
			total += math.Abs(yi - v)
		case CriterionPoisson:
			if yi > 0 {
				total += yi * math.Log(yi/v)
			}
			total += v - yi
		default:
			total += (yi - v) * (yi - v)
		}
	}
	return total
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

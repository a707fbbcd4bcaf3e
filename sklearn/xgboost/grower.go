package xgboost

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/regpipe/sklearn/tree"
)

// kRtEps is the smallest loss change accepted for a split.
const kRtEps = 1e-6

// treeParams are the regularisation settings used by one grower.
type treeParams struct {
	eta            float64
	maxDepth       int
	minChildWeight float64
	lambda         float64
	alpha          float64
	gamma          float64
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

// calcGain is the structure score G²/(H+λ) with L1 shrinkage on G.
func (p *treeParams) calcGain(g, h float64) float64 {
	if h < p.minChildWeight || h <= 0 {
		return 0
	}
	t := thresholdL1(g, p.alpha)
	return t * t / (h + p.lambda)
}

// calcWeight is the optimal leaf weight -G/(H+λ).
func (p *treeParams) calcWeight(g, h float64) float64 {
	if h < p.minChildWeight || h <= 0 {
		return 0
	}
	return -thresholdL1(g, p.alpha) / (h + p.lambda)
}

// grower builds one depth-wise tree with the exact greedy algorithm.
type grower struct {
	p        *treeParams
	X        [][]float64
	grad     []float64
	hess     []float64
	features []int

	nodes []tree.Node
	order []int
}

type candidate struct {
	feature   int
	threshold float64
	lossChg   float64
}

func (g *grower) build(samples []int, nFeatures int) *tree.Tree {
	g.grow(samples, 0)
	t := &tree.Tree{Nodes: g.nodes, NFeatures: nFeatures}
	prune(t, g.p.gamma)
	return t
}

func (g *grower) sums(idx []int) (G, H float64) {
	for _, i := range idx {
		G += g.grad[i]
		H += g.hess[i]
	}
	return G, H
}

func (g *grower) grow(idx []int, depth int) int {
	G, H := g.sums(idx)
	id := len(g.nodes)
	g.nodes = append(g.nodes, tree.Node{
		Left:     -1,
		Right:    -1,
		Value:    g.p.eta * g.p.calcWeight(G, H),
		NSamples: len(idx),
	})
	if (g.p.maxDepth > 0 && depth >= g.p.maxDepth) || len(idx) < 2 {
		return id
	}

	best, ok := g.findSplit(idx, G, H)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if g.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)

	n := &g.nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	n.Gain = best.lossChg
	return id
}

func (g *grower) findSplit(idx []int, G, H float64) (candidate, bool) {
	n := len(idx)
	if cap(g.order) < n {
		g.order = make([]int, n)
	}
	order := g.order[:n]
	rootGain := g.p.calcGain(G, H)

	best := candidate{lossChg: kRtEps}
	found := false
	for _, f := range g.features {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return g.X[order[a]][f] < g.X[order[b]][f] })

		var GL, HL float64
		for k := 0; k < n-1; k++ {
			i := order[k]
			GL += g.grad[i]
			HL += g.hess[i]
			lo := g.X[i][f]
			hi := g.X[order[k+1]][f]
			if lo == hi {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < g.p.minChildWeight || HR < g.p.minChildWeight {
				continue
			}
			chg := g.p.calcGain(GL, HL) + g.p.calcGain(GR, HR) - rootGain
			if chg > best.lossChg {
				threshold := (lo + hi) * 0.5
				if threshold >= hi || math.IsInf(threshold, 0) {
					threshold = lo
				}
				best = candidate{feature: f, threshold: threshold, lossChg: chg}
				found = true
			}
		}
	}
	return best, found
}

// prune collapses, bottom-up, splits whose children are leaves and whose
// loss change is below gamma, then drops the unreachable nodes.
func prune(t *tree.Tree, gamma float64) {
	if gamma <= 0 {
		t.Depth = depthOf(t, 0)
		return
	}
	var walk func(id int) bool
	walk = func(id int) bool {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return true
		}
		l := walk(n.Left)
		r := walk(n.Right)
		if l && r && n.Gain < gamma {
			n.Left, n.Right = -1, -1
			n.Gain = 0
			return true
		}
		return false
	}
	walk(0)

	var nodes []tree.Node
	var copyNode func(id int) int
	copyNode = func(id int) int {
		n := t.Nodes[id]
		newID := len(nodes)
		nodes = append(nodes, n)
		if !n.IsLeaf() {
			l := copyNode(n.Left)
			r := copyNode(n.Right)
			nodes[newID].Left = l
			nodes[newID].Right = r
		}
		return newID
	}
	copyNode(0)
	t.Nodes = nodes
	t.Depth = depthOf(t, 0)
}

func depthOf(t *tree.Tree, id int) int {
	n := &t.Nodes[id]
	if n.IsLeaf() {
		return 0
	}
	return 1 + max(depthOf(t, n.Left), depthOf(t, n.Right))
}

package tree

import (
	"container/heap"
	"math"
)

// scanner scores every split position of a node whose targets are ordered
// by the candidate feature. Higher scores are better; the score of position
// p describes the split ys[:p] | ys[p:].
type scanner struct {
	criterion string
	n         int
	prefix    []float64
	total     float64

	// absolute error only: sum of absolute deviations from the median of
	// ys[:p] (left) and ys[p:] (right)
	sadLeft  []float64
	sadRight []float64
}

func (s *scanner) reset(criterion string, ys []float64) {
	s.criterion = criterion
	s.n = len(ys)
	s.prefix = growSlice(s.prefix, s.n+1)
	s.prefix[0] = 0
	for i, v := range ys {
		s.prefix[i+1] = s.prefix[i] + v
	}
	s.total = s.prefix[s.n]

	if criterion != CriterionAbsoluteError {
		return
	}
	s.sadLeft = growSlice(s.sadLeft, s.n+1)
	s.sadRight = growSlice(s.sadRight, s.n+1)

	var rm runningMedian
	s.sadLeft[0] = 0
	for i, v := range ys {
		rm.push(v)
		s.sadLeft[i+1] = rm.sad()
	}
	rm = runningMedian{}
	s.sadRight[s.n] = 0
	for i := s.n - 1; i >= 0; i-- {
		rm.push(ys[i])
		s.sadRight[i] = rm.sad()
	}
}

func (s *scanner) score(p int) (float64, bool) {
	nl := float64(p)
	nr := float64(s.n - p)
	sl := s.prefix[p]
	sr := s.total - sl

	switch s.criterion {
	case CriterionFriedmanMSE:
		diff := nr*sl - nl*sr
		return diff * diff / (nl * nr), true
	case CriterionAbsoluteError:
		return -(s.sadLeft[p] + s.sadRight[p]), true
	case CriterionPoisson:
		const eps = 1e-12
		if sl <= eps || sr <= eps {
			return 0, false
		}
		return sl*math.Log(sl/nl) + sr*math.Log(sr/nr), true
	default:
		return sl*sl/nl + sr*sr/nr, true
	}
}

func growSlice(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

// runningMedian keeps the lower half in a max-heap and the upper half in a
// min-heap so the sum of absolute deviations from the median is O(1).
type runningMedian struct {
	lo    maxHeap
	hi    minHeap
	sumLo float64
	sumHi float64
}

func (r *runningMedian) push(v float64) {
	if r.lo.Len() == 0 || v <= r.lo.FloatHeap[0] {
		heap.Push(&r.lo, v)
		r.sumLo += v
	} else {
		heap.Push(&r.hi, v)
		r.sumHi += v
	}
	// keep len(lo) == len(hi) or len(hi)+1
	if r.lo.Len() > r.hi.Len()+1 {
		x := heap.Pop(&r.lo).(float64)
		r.sumLo -= x
		heap.Push(&r.hi, x)
		r.sumHi += x
	} else if r.hi.Len() > r.lo.Len() {
		x := heap.Pop(&r.hi).(float64)
		r.sumHi -= x
		heap.Push(&r.lo, x)
		r.sumLo += x
	}
}

func (r *runningMedian) sad() float64 {
	if r.lo.Len() == 0 {
		return 0
	}
	m := r.lo.FloatHeap[0]
	return m*float64(r.lo.Len()) - r.sumLo + r.sumHi - m*float64(r.hi.Len())
}

// FloatHeap is the shared backing of minHeap and maxHeap.
type FloatHeap []float64

func (h FloatHeap) Len() int      { return len(h) }
func (h FloatHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *FloatHeap) Push(x any)   { *h = append(*h, x.(float64)) }
func (h *FloatHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

type minHeap struct{ FloatHeap }

func (h minHeap) Less(i, j int) bool { return h.FloatHeap[i] < h.FloatHeap[j] }

type maxHeap struct{ FloatHeap }

func (h maxHeap) Less(i, j int) bool { return h.FloatHeap[i] > h.FloatHeap[j] }

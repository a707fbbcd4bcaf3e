package catboost

import (
	"sort"
)

// Borders picks at most borderCount split borders for one feature. With few
// distinct values every midpoint is a border; otherwise borders are placed at
// equal-frequency quantiles. A value x lies right of border b when x > b.
func Borders(values []float64, borderCount int) []float64 {
	if len(values) == 0 || borderCount <= 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			unique = append(unique, sorted[i])
		}
	}
	if len(unique) < 2 {
		return nil
	}

	if len(unique)-1 <= borderCount {
		out := make([]float64, len(unique)-1)
		for i := range out {
			out[i] = (unique[i] + unique[i+1]) / 2
		}
		return out
	}

	n := len(sorted)
	out := make([]float64, 0, borderCount)
	for i := 1; i <= borderCount; i++ {
		k := (n - 1) * i / (borderCount + 1)
		// split between sorted[k] and the next larger value
		j := sort.Search(n, func(m int) bool { return sorted[m] > sorted[k] })
		if j == n {
			continue
		}
		b := (sorted[k] + sorted[j]) / 2
		if len(out) == 0 || b > out[len(out)-1] {
			out = append(out, b)
		}
	}
	return out
}

// quantizer maps raw feature values to bin indices: the bin of x is the
// number of borders strictly below x.
type quantizer struct {
	borders [][]float64
}

func newQuantizer(X [][]float64, nFeatures, borderCount int) *quantizer {
	q := &quantizer{borders: make([][]float64, nFeatures)}
	col := make([]float64, len(X))
	for f := 0; f < nFeatures; f++ {
		for i, row := range X {
			col[i] = row[f]
		}
		q.borders[f] = Borders(col, borderCount)
	}
	return q
}

func (q *quantizer) bin(f int, x float64) uint16 {
	return uint16(sort.SearchFloat64s(q.borders[f], x))
}

func (q *quantizer) binAll(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(X))
	for i, row := range X {
		b := make([]uint16, len(row))
		for f, v := range row {
			b[f] = q.bin(f, v)
		}
		out[i] = b
	}
	return out
}

package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// OneHotEncoder expands categorical columns into indicator columns, one per
// category seen in Fit. Categories are sorted per column.
type OneHotEncoder struct {
	// HandleUnknown is "ignore" (all-zero row block) or "error".
	HandleUnknown string
	Categories    [][]string
	Fitted        bool
}

// NewOneHotEncoder creates an encoder with handle_unknown=ignore.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{HandleUnknown: "ignore"}
}

// Fit learns the categories of every column. columns[j] holds all values of column j.
func (e *OneHotEncoder) Fit(columns [][]string) error {
	if len(columns) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.HandleUnknown != "ignore" && e.HandleUnknown != "error" {
		return errors.NewValidationError("handle_unknown", "must be 'ignore' or 'error'", e.HandleUnknown)
	}

	e.Categories = make([][]string, len(columns))
	for j, col := range columns {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	e.Fitted = true
	return nil
}

// NFeaturesOut is the number of indicator columns produced by Transform.
func (e *OneHotEncoder) NFeaturesOut() int {
	n := 0
	for _, c := range e.Categories {
		n += len(c)
	}
	return n
}

// Transform encodes columns into an n×NFeaturesOut matrix.
func (e *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if !e.Fitted {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(columns) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Categories), len(columns), 1)
	}
	rows := len(columns[0])
	width := e.NFeaturesOut()
	if rows == 0 || width == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, width, nil)
	offset := 0
	for j, col := range columns {
		cats := e.Categories[j]
		for i, v := range col {
			k := sort.SearchStrings(cats, v)
			if k < len(cats) && cats[k] == v {
				out.Set(i, offset+k, 1)
				continue
			}
			if e.HandleUnknown == "error" {
				return nil, errors.NewValueError("OneHotEncoder.Transform", "unknown category "+v)
			}
		}
		offset += len(cats)
	}
	return out, nil
}

// FeatureNames returns "<column>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames(inputNames []string) []string {
	names := make([]string, 0, e.NFeaturesOut())
	for j, cats := range e.Categories {
		prefix := ""
		if j < len(inputNames) {
			prefix = inputNames[j]
		}
		for _, c := range cats {
			names = append(names, prefix+"_"+c)
		}
	}
	return names
}

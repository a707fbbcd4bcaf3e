package model_selection

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// ParamGrid maps hyperparameter names to candidate values.
// An empty grid means "fit once with defaults".
type ParamGrid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size is the number of combinations.
func (g ParamGrid) Size() int {
	n := 1
	for _, vs := range g {
		n *= len(vs)
	}
	return n
}

// Validate rejects parameters without candidate values.
func (g ParamGrid) Validate() error {
	for _, k := range g.Keys() {
		if len(g[k]) == 0 {
			return errors.NewValidationError(k, "parameter grid has no candidate values", g[k])
		}
	}
	return nil
}

// Combinations expands the cartesian product. Keys are sorted and the last
// key varies fastest, so the order matches scikit-learn's ParameterGrid.
// An empty grid yields a single empty combination; a grid with an empty
// value list yields none.
func (g ParamGrid) Combinations() []map[string]interface{} {
	if g.Size() == 0 {
		return nil
	}
	keys := g.Keys()
	combos := make([]map[string]interface{}, 0, g.Size())

	idx := make([]int, len(keys))
	for {
		combo := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			combo[k] = g[k][idx[i]]
		}
		combos = append(combos, combo)

		// odometer increment from the last key
		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return combos
		}
	}
}

// FormatParams renders params as "k=v, k=v" in sorted key order.
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, params[k])
	}
	return out
}

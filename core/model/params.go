package model

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// ParamSetter applies one hyperparameter value.
type ParamSetter func(value interface{}) error

// ApplyParams dispatches params to setters in sorted key order.
// Unknown keys fail with a ValidationError naming the estimator.
func ApplyParams(estimator string, params map[string]interface{}, setters map[string]ParamSetter) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := setters[k]
		if !ok {
			return errors.NewValidationError(k, "unknown parameter for "+estimator, params[k])
		}
		if err := set(params[k]); err != nil {
			return err
		}
	}
	return nil
}

// IntParam converts YAML/JSON style numbers to int. Floats must be integral.
func IntParam(name string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int(n), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", v)
}

// FloatParam converts any numeric value to float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", v)
}

// StringParam requires a string value.
func StringParam(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "expected a string", v)
	}
	return s, nil
}

// BoolParam requires a bool value.
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "expected a bool", v)
	}
	return b, nil
}

// PositiveInt returns a setter storing a strictly positive int into dst.
func PositiveInt(name string, dst *int) ParamSetter {
	return func(v interface{}) error {
		n, err := IntParam(name, v)
		if err != nil {
			return err
		}
		if n <= 0 {
			return errors.NewValidationError(name, "must be positive", v)
		}
		*dst = n
		return nil
	}
}

// NonNegativeInt returns a setter storing an int >= 0 into dst.
func NonNegativeInt(name string, dst *int) ParamSetter {
	return func(v interface{}) error {
		n, err := IntParam(name, v)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.NewValidationError(name, "must be non-negative", v)
		}
		*dst = n
		return nil
	}
}

// AnyInt returns a setter storing any int into dst.
func AnyInt(name string, dst *int) ParamSetter {
	return func(v interface{}) error {
		n, err := IntParam(name, v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// FloatIn returns a setter storing a float within [lo, hi] into dst.
// When openLo is true the lower bound is excluded.
func FloatIn(name string, dst *float64, lo, hi float64, openLo bool) ParamSetter {
	return func(v interface{}) error {
		f, err := FloatParam(name, v)
		if err != nil {
			return err
		}
		if math.IsNaN(f) || f < lo || f > hi || (openLo && f == lo) {
			return errors.NewValidationError(name, "out of range", v)
		}
		*dst = f
		return nil
	}
}

// OneOf returns a setter storing a string restricted to allowed into dst.
func OneOf(name string, dst *string, allowed ...string) ParamSetter {
	return func(v interface{}) error {
		s, err := StringParam(name, v)
		if err != nil {
			return err
		}
		for _, a := range allowed {
			if s == a {
				*dst = s
				return nil
			}
		}
		return errors.NewValidationError(name, "must be one of "+joinQuoted(allowed), v)
	}
}

// Bool returns a setter storing a bool into dst.
func Bool(name string, dst *bool) ParamSetter {
	return func(v interface{}) error {
		b, err := BoolParam(name, v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func joinQuoted(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += "'" + s + "'"
	}
	return out
}

// Package errors is the error vocabulary of regpipe. Estimator errors
// (NotFittedError, DimensionError, ValidationError, ValueError, ModelError)
// carry a cockroachdb/errors stack trace; pipeline failures are StageErrors;
// non-fatal conditions are reported with Warn.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Sentinels shared by estimators and stages.
var (
	ErrEmptyData      = New("empty data")
	ErrSingularMatrix = New("singular matrix")
)

// NotFittedError: 未学習の推定器に Predict や Transform が呼ばれた。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("regpipe: %s.%s called before Fit", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch. Axis 0 counts rows, 1 features.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("regpipe: %s: expected %d %s, got %d", e.Op, e.Expected, e.axisName(), e.Got)
}

func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("axis", e.axisName())
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError names the parameter or config key that was rejected.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("regpipe: invalid %s: %s (got %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is an argument that is well formed but unusable.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return "regpipe: " + e.Op + ": " + e.Message
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError はモデル内部の失敗。Err に原因のセンチネルを持つ。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	msg := "regpipe: " + e.Op + ": " + e.Kind
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Err }

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// Forwarders to cockroachdb/errors.

func Is(err, target error) bool                     { return errors.Is(err, target) }
func As(err error, target interface{}) bool         { return errors.As(err, target) }
func New(message string) error                      { return errors.New(message) }
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }
func Wrap(err error, message string) error          { return errors.Wrap(err, message) }
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
func WithStack(err error) error             { return errors.WithStack(err) }
func WithHint(err error, hint string) error { return errors.WithHint(err, hint) }
func FlattenHints(err error) string         { return errors.FlattenHints(err) }

package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic caught at an estimator or stage boundary.
type PanicError struct {
	Operation  string
	PanicValue interface{}
	// StackTrace is the goroutine stack captured inside the deferred recover.
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap exposes the panic value when it was an error, so Is and As see it.
func (e *PanicError) Unwrap() error {
	err, _ := e.PanicValue.(error)
	return err
}

// String includes the captured stack.
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// MarshalZerologObject はzerologのイベントにパニック情報を追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.PanicValue)).
		Str("type", "PanicError")
}

// NewPanicError records v as a panic raised in operation.
func NewPanicError(operation string, v interface{}) *PanicError {
	return &PanicError{Operation: operation, PanicValue: v, StackTrace: string(debug.Stack())}
}

// Recover turns a panic into the named error result of the deferring
// function:
//
//	func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
//	    ...
//	}
//
// An error already stored in *err stays in the chain.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err == nil {
		*err = NewPanicError(operation, r)
		return
	}
	*err = errors.Wrapf(*err, "panic in %s after error: %v", operation, r)
}

// SafeExecute calls fn, converting a panic into a PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}

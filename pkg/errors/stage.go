package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Kind discriminates pipeline failures so callers can react differently.
type Kind int

const (
	// KindUnknown is reported for errors that did not cross a stage boundary.
	KindUnknown Kind = iota
	// KindInputNotFound means the source dataset does not exist.
	KindInputNotFound
	// KindInvalidInput means the data or configuration cannot be processed.
	KindInvalidInput
	// KindFitFailure covers errors raised while fitting or scoring estimators.
	KindFitFailure
	// KindQualityBelowThreshold means no candidate reached the acceptance score.
	KindQualityBelowThreshold
	// KindSerialization covers encoding or decoding of persisted objects.
	KindSerialization
	// KindIO covers other filesystem failures.
	KindIO
)

// Sentinels matching each Kind, usable with Is.
var (
	ErrInputNotFound         = New("input not found")
	ErrInvalidInput          = New("invalid input")
	ErrFitFailure            = New("fit failure")
	ErrQualityBelowThreshold = New("no adequate model")
	ErrSerialization         = New("serialization failure")
	ErrIO                    = New("i/o failure")
)

func (k Kind) String() string {
	switch k {
	case KindInputNotFound:
		return "input_not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindFitFailure:
		return "fit_failure"
	case KindQualityBelowThreshold:
		return "quality_below_threshold"
	case KindSerialization:
		return "serialization_failure"
	case KindIO:
		return "io_failure"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInputNotFound:
		return ErrInputNotFound
	case KindInvalidInput:
		return ErrInvalidInput
	case KindFitFailure:
		return ErrFitFailure
	case KindQualityBelowThreshold:
		return ErrQualityBelowThreshold
	case KindSerialization:
		return ErrSerialization
	case KindIO:
		return ErrIO
	default:
		return nil
	}
}

// StageError is the error returned at the boundary of every pipeline stage.
// It carries the stage name, the failure kind and the original cause.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("regpipe: %s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("regpipe: %s: %s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's Kind.
func (e *StageError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *StageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("kind", e.Kind.String()).
		Str("type", "StageError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewStageError wraps err into a StageError with a stack trace.
// An err that already is a StageError is returned unchanged so the
// innermost stage and kind win.
func NewStageError(stage string, kind Kind, err error) error {
	var existing *StageError
	if err != nil && errors.As(err, &existing) {
		return err
	}
	return errors.WithStack(&StageError{Stage: stage, Kind: kind, Err: err})
}

// KindOf returns the Kind of the first StageError in err's chain.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// StageOf returns the stage name of the first StageError in err's chain.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

package errors

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は処理を止めずに報告される error 値。pkg/log が読み込まれると
// 構造化ログへ流れ、それまでは stderr に JSON 一行で出力される。
var (
	warnMu      sync.RWMutex
	warnHandler = defaultWarnHandler
)

func defaultWarnHandler(w error) {
	zl := zerolog.New(os.Stderr)
	ev := zl.Warn().Str("warning.type", fmt.Sprintf("%T", w))
	if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
		ev = ev.Object("detail", obj)
	}
	ev.Msg(w.Error())
}

// SetWarningHandler installs h for Warn and returns the handler it replaced.
// A nil h restores the stderr default.
func SetWarningHandler(h func(w error)) (previous func(w error)) {
	if h == nil {
		h = defaultWarnHandler
	}
	warnMu.Lock()
	defer warnMu.Unlock()
	previous, warnHandler = warnHandler, h
	return previous
}

// Warn reports w through the installed handler.
func Warn(w error) {
	warnMu.RLock()
	h := warnHandler
	warnMu.RUnlock()
	h(w)
}

// ConvergenceWarning はブースティングが予定より早く打ち切られたことを示す。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	msg := fmt.Sprintf("%s stopped after %d iterations", w.Algorithm, w.Iterations)
	if w.Message == "" {
		return msg
	}
	return msg + ": " + w.Message
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// ImputationWarning is raised when a numeric column has no observed value
// to learn a statistic from and Fill is used instead.
type ImputationWarning struct {
	Column int
	Fill   float64
}

func (w *ImputationWarning) Error() string {
	return fmt.Sprintf("column %d has no observed values, imputing %g", w.Column, w.Fill)
}

func (w *ImputationWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("column", w.Column).Float64("fill", w.Fill)
}

func NewImputationWarning(column int, fill float64) *ImputationWarning {
	return &ImputationWarning{Column: column, Fill: fill}
}

// FitFailedWarning: グリッドサーチの1組み合わせが学習に失敗した。
// その組み合わせのスコアは NaN になり、最下位として扱われる。
type FitFailedWarning struct {
	Params string
	Err    error
}

func (w *FitFailedWarning) Error() string {
	return fmt.Sprintf("fit failed for %s, score set to NaN: %v", w.Params, w.Err)
}

func (w *FitFailedWarning) Unwrap() error { return w.Err }

func (w *FitFailedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("params", w.Params).Str("cause", fmt.Sprint(w.Err))
}

func NewFitFailedWarning(params string, err error) *FitFailedWarning {
	return &FitFailedWarning{Params: params, Err: err}
}

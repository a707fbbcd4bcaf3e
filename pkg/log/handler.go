package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	regerrors "github.com/YuminosukeSato/regpipe/pkg/errors"
)

// HintAttrKey carries user-facing hints attached with errors.WithHint.
const HintAttrKey = "hint"

// ErrFmtHandler decorates records that carry an ErrAttr. It adds the
// cockroachdb stack trace, any hints, and the pipeline stage and failure
// kind when the error crossed a stage boundary.
type ErrFmtHandler struct {
	next slog.Handler
}

// WrapByErrFmtHandler wraps next with an ErrFmtHandler.
func WrapByErrFmtHandler(next slog.Handler) slog.Handler {
	return &ErrFmtHandler{next: next}
}

func (h *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := recordError(r); err != nil {
		r.AddAttrs(errorAttrs(err)...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithGroup(g)}
}

// recordError は ErrAttrKey 属性に入っている error を返す
func recordError(r slog.Record) error {
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		found, _ = attr.Value.Any().(error)
		return false
	})
	return found
}

func errorAttrs(err error) []slog.Attr {
	var attrs []slog.Attr
	if st := extractStacktrace(err); st != "" {
		attrs = append(attrs, slog.String(StacktraceAttrKey, st))
	}
	if hint := errors.FlattenHints(err); hint != "" {
		attrs = append(attrs, slog.String(HintAttrKey, hint))
	}
	if stage := regerrors.StageOf(err); stage != "" {
		attrs = append(attrs,
			slog.String(StageKey, stage),
			slog.String(ErrorTypeKey, regerrors.KindOf(err).String()),
		)
	}
	return attrs
}

// extractStacktrace returns the stack recorded by the outermost
// cockroachdb/errors wrapper, or "" when err carries none.
func extractStacktrace(err error) string {
	if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
		return details[0]
	}
	return ""
}

package log

import (
	"io"
	"log/slog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// SetupLogger points both front ends at w: the zerolog provider behind
// GetLogger and the slog default. An unknown level falls back to info with
// a warning.
func SetupLogger(w io.Writer, loglevel string) {
	level, err := ParseLevel(loglevel)
	SetProvider(NewZerologProvider(w, level))
	slog.SetDefault(slog.New(WrapByErrFmtHandler(newJSONHandler(w, slog.Level(level)))))
	if err != nil {
		GetLogger().Warn("falling back to info level", "requested", loglevel)
	}
}

// newJSONHandler writes "severity" and "message" in place of slog's level and msg keys.
func newJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	})
}

// ToLogLevel maps a level name to its slog.Level, info when unknown.
func ToLogLevel(level string) slog.Level {
	l, _ := ParseLevel(level)
	return slog.Level(l)
}

// ErrAttr passes err to slog under ErrAttrKey.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	regerrors "github.com/YuminosukeSato/regpipe/pkg/errors"
)

// ZerologProvider is the default LoggerProvider. Every logger it hands out
// shares the provider's level, so SetLevel also affects loggers obtained earlier.
type ZerologProvider struct {
	base  zerolog.Logger
	level atomic.Int64
}

// NewZerologProvider returns a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	p := &ZerologProvider{
		base: zerolog.New(w).With().Timestamp().Logger(),
	}
	p.level.Store(int64(level))
	return p
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{provider: p, zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{provider: p, zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

func (p *ZerologProvider) enabled(level Level) bool {
	return int64(level) >= p.level.Load()
}

type zerologLogger struct {
	provider *ZerologProvider
	zl       zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	if err, rest := splitError(fields); err != nil {
		ctx = ctx.AnErr(ErrAttrKey, err)
		fields = rest
	}
	return &zerologLogger{provider: l.provider, zl: ctx.Fields(pairs(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.provider.enabled(level)
}

func (l *zerologLogger) emit(level Level, ev *zerolog.Event, msg string, fields []any) {
	if !l.provider.enabled(level) {
		return
	}
	if err, rest := splitError(fields); err != nil {
		ev = ev.AnErr(ErrAttrKey, err)
		if st := extractStacktrace(err); st != "" && level >= LevelError {
			ev = ev.Str(StacktraceAttrKey, st)
		}
		fields = rest
	}
	ev.Fields(pairs(fields)).Msg(msg)
}

// splitError peels off a leading error value, the convention used by Logger.Error.
func splitError(fields []any) (error, []any) {
	if len(fields) > 0 && len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}

func pairs(fields []any) map[string]any {
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			m[key] = err.Error()
			continue
		}
		m[key] = fields[i+1]
	}
	return m
}

// グローバルプロバイダ
var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

func init() {
	regerrors.SetWarningHandler(warnFromErrors)
}

// warnFromErrors routes errors.Warn through the current provider.
func warnFromErrors(w error) {
	fields := []any{WarningTypeKey, fmt.Sprintf("%T", w)}
	if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
		fields = append(fields, "detail", obj)
	}
	GetLoggerWithName("warnings").Warn(w.Error(), fields...)
}

// SetProvider replaces the global provider and returns the previous one.
func SetProvider(p LoggerProvider) LoggerProvider {
	providerMu.Lock()
	defer providerMu.Unlock()
	prev := provider
	provider = p
	return prev
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger of the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the minimum level of the global provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}

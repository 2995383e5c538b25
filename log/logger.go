package log

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

// LevelAlignedString returns the five character column the terminal handler prints.
func LevelAlignedString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO "
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT "
	default:
		return "?????"
	}
}

// Logger writes module tagged records. Crit exits the process after logging.
type Logger interface {
	With(kv ...any) Logger
	Write(level slog.Level, module, msg string, kv ...any)
	Enabled(ctx context.Context, level slog.Level) bool

	Trace(module, msg string, kv ...any)
	Debug(module, msg string, kv ...any)
	Info(module, msg string, kv ...any)
	Warn(module, msg string, kv ...any)
	Error(module, msg string, kv ...any)
	Crit(module, msg string, kv ...any)
}

type logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) With(kv ...any) Logger {
	return &logger{inner: l.inner.With(kv...)}
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

// Write records the caller of the package level helper, two frames up.
func (l *logger) Write(level slog.Level, module, msg string, kv ...any) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	r.Add(kv...)
	_ = l.inner.Handler().Handle(ctx, r)
}

func (l *logger) Trace(module, msg string, kv ...any) { l.Write(LevelTrace, module, msg, kv...) }
func (l *logger) Debug(module, msg string, kv ...any) { l.Write(LevelDebug, module, msg, kv...) }
func (l *logger) Info(module, msg string, kv ...any)  { l.Write(LevelInfo, module, msg, kv...) }
func (l *logger) Warn(module, msg string, kv ...any)  { l.Write(LevelWarn, module, msg, kv...) }
func (l *logger) Error(module, msg string, kv ...any) { l.Write(LevelError, module, msg, kv...) }

func (l *logger) Crit(module, msg string, kv ...any) {
	l.Write(LevelCrit, module, msg, kv...)
	os.Exit(1)
}

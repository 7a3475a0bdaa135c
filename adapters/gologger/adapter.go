package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// SlogProvider hands out glog loggers backed by a slog handler. Each logger
// carries its component name under the "logger" attribute.
type SlogProvider struct {
	base *slog.Logger
}

// NewSlogProvider writes JSON or text records at or above level to w.
// Unknown levels fall back to info.
func NewSlogProvider(w io.Writer, level string, format string) *SlogProvider {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &SlogProvider{base: slog.New(handler)}
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.base == nil {
		return glog.Nop()
	}
	base := p.base
	if name = strings.TrimSpace(name); name != "" {
		base = base.With("logger", name)
	}
	return &slogLogger{base: base, ctx: context.Background()}
}

// LevelTrace sits below slog's debug level.
const LevelTrace = slog.Level(-8)

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogLogger struct {
	base *slog.Logger
	ctx  context.Context
}

func (l *slogLogger) Trace(msg string, args ...any) { l.base.Log(l.ctx, LevelTrace, msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.base.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.base.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.base.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.base.ErrorContext(l.ctx, msg, args...) }

// Fatal logs at error level. Exiting is left to the caller.
func (l *slogLogger) Fatal(msg string, args ...any) {
	l.base.ErrorContext(l.ctx, msg, append(args, "fatal", true)...)
}

func (l *slogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &slogLogger{base: l.base, ctx: ctx}
}

var (
	_ glog.LoggerProvider = (*SlogProvider)(nil)
	_ glog.Logger         = (*slogLogger)(nil)
)

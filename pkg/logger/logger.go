// Package logger provides a structured, levelled logger built on log/slog.
//
// WithCtx returns a logger with the request ID already attached, so every
// log line from a handler is correlated:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("query submitted", "query_id", id)
//	// → time=... level=INFO msg="query submitted" request_id=a1b2c3d4 query_id=...
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/datajunction/djqs/config"
)

var L *slog.Logger

func init() {
	L = slog.New(consoleHandler(config.AppEnv()))
	slog.SetDefault(L)
}

func consoleHandler(env string) slog.Handler {
	switch env {
	case "production", "prod":
		// structured JSON for log aggregators
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// Attach fans every record out to extra in addition to the console, and
// installs the result as the default logger.
func Attach(extra ...slog.Handler) {
	handlers := append([]slog.Handler{consoleHandler(config.AppEnv())}, extra...)
	L = slog.New(NewMultiHandler(handlers...))
	slog.SetDefault(L)
}

// ctxKey is the unexported key used to store a per-request *slog.Logger.
type ctxKey struct{}

// WithCtx returns the request-scoped logger stored in ctx by the Logger
// middleware, or the base logger when there is none.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

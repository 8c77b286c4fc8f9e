package logger

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(os.Getenv("ENVIRONMENT"), nil))
}

// New builds a logger for env. Production gets JSON at info level on stdout, every other
// environment gets text at debug level on stderr. A non-nil w replaces the output.
func New(env string, w io.Writer) *slog.Logger {
	if env == "production" {
		if w == nil {
			w = os.Stdout
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Default returns the process logger.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process logger and slog's default. Nil is ignored.
func SetDefault(l *slog.Logger) {
	if l == nil {
		return
	}
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// ErrorErr logs msg at error level with err under the "error" key.
func ErrorErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	Default().Error(msg, args...)
}

// FatalErr logs like ErrorErr and exits the process.
func FatalErr(err error, msg string, args ...any) {
	ErrorErr(err, msg, args...)
	os.Exit(1)
}

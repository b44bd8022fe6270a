package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	rootLogger *slog.Logger
	setup      sync.Once
	level      = new(slog.LevelVar) // Info by default
)

// Setup configures the process-wide logger on first use and returns it.
func Setup() *slog.Logger {
	setup.Do(func() {
		rootLogger = New(os.Stderr)
		slog.SetDefault(rootLogger)
	})
	return rootLogger
}

// New builds a text logger writing to w that honors the shared level.
func New(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if len(os.Getenv("INVOCATION_ID")) > 0 {
		// systemd journal adds its own timestamps
		log.Default().SetFlags(0)
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = ""
				a.Value = slog.AnyValue(nil)
			}
			return a
		}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetLevel adjusts the level of every logger built by this package. Unknown
// names leave the level unchanged and return false.
func SetLevel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info", "":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return false
	}
	return true
}

type loggerKey struct{}

// NewContext adds the logger to the context.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext retrieves a logger from the context. If there is none,
// it returns the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return Setup()
}

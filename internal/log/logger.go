package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Options controls the global logger.
type Options struct {
	Level  string    // DEBUG | INFO | WARN | ERROR, case-insensitive
	Format string    // json (default) | text
	Writer io.Writer // defaults to os.Stdout
}

// Setup initializes the global JSON logger on stdout.
// logic: default to INFO. If level is invalid, fallback to INFO.
func Setup(level string) {
	SetupWithOptions(Options{Level: level})
}

// SetupWithOptions initializes the global logger once. Later calls are ignored.
func SetupWithOptions(opts Options) {
	once.Do(func() {
		logger = newLogger(opts)
		slog.SetDefault(logger)
	})
}

func newLogger(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, hopts)
	} else {
		handler = slog.NewJSONHandler(w, hopts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, falling back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithEngine returns a logger with the engine field set.
func WithEngine(name string) *slog.Logger {
	return Get().With(slog.String("engine", name))
}

// WithCommand returns a logger with the command_id field set.
func WithCommand(id string) *slog.Logger {
	return Get().With(slog.String("command_id", id))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

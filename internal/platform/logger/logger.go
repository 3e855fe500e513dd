package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/phrazzld/taskmanager/internal/config"
)

// TimeFormat is used by the text format.
const TimeFormat = "2006-01-02 15:04:05"

// level backs every logger built by Setup so SetLevel takes effect at runtime.
var level = new(slog.LevelVar)

// Setup initializes and configures the application's logging system based on
// the provided configuration and sets the result as the slog default.
//
// Output goes to cfg.File when set (opened for append, directories created)
// and to stdout otherwise. The returned closer releases the file; it is a
// no-op for stdout.
func Setup(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = f, f
	}

	logger := New(out, cfg.Format, cfg.File == "")
	SetLevel(logger, cfg.Level)

	slog.SetDefault(logger)
	return logger, closer, nil
}

// New builds a logger writing to w in the given format ("json" or "text")
// at the shared level. color only affects the text format.
func New(w io.Writer, format string, color bool) *slog.Logger {
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: TimeFormat,
			NoColor:    !color,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// SetLevel changes the level of every logger built by this package. An
// unknown level is reported through log and replaced by info.
func SetLevel(log *slog.Logger, name string) {
	lvl, ok := ParseLevel(name)
	if !ok && log != nil {
		log.Warn("invalid log level configured, using default level",
			slog.String("configured_level", name),
			slog.String("default_level", "info"))
	}
	level.Set(lvl)
}

// Level returns the current shared level.
func Level() slog.Level {
	return level.Level()
}

// ParseLevel maps a level name (case-insensitive) to a slog level. It
// returns info and false for unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

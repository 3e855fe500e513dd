package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger.SetLevel(nil, "info")
	log := logger.New(&buf, "json", false)

	log.Debug("hidden")
	log.Info("visible", slog.String("component", "test"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestNewTextWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger.SetLevel(nil, "info")
	log := logger.New(&buf, "text", false)

	log.Warn("disk low", slog.Int("free_mb", 12))

	out := buf.String()
	assert.Contains(t, out, "disk low")
	assert.Contains(t, out, "free_mb=12")
	assert.NotContains(t, out, "\x1b[", "no ANSI escapes when color is off")
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger.SetLevel(nil, "info")
	log := logger.New(&buf, "json", false)
	t.Cleanup(func() { logger.SetLevel(nil, "info") })

	log.Debug("before")
	assert.Empty(t, buf.String())

	logger.SetLevel(nil, "debug")
	assert.Equal(t, slog.LevelDebug, logger.Level())
	log.Debug("after")
	assert.Contains(t, buf.String(), "after")
}

func TestSetLevelInvalidWarns(t *testing.T) {
	var warnings bytes.Buffer
	warnLog := slog.New(slog.NewJSONHandler(&warnings, nil))
	t.Cleanup(func() { logger.SetLevel(nil, "info") })

	logger.SetLevel(warnLog, "loud")

	assert.Equal(t, slog.LevelInfo, logger.Level())
	assert.Contains(t, warnings.String(), "invalid log level configured")
	assert.Contains(t, warnings.String(), "loud")
}

func TestSetupWritesToFile(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(original)
		logger.SetLevel(nil, "info")
	})

	path := filepath.Join(t.TempDir(), "logs", "taskmanager.log")
	log, closer, err := logger.Setup(config.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	log.Debug("to file")
	slog.Info("via default")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), "via default", "Setup must install the default logger")
}

func TestContextHelpers(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	scoped := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx := context.Background()
	assert.Same(t, fallback, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, slog.Default(), logger.FromContext(ctx))

	ctx = logger.WithLogger(ctx, scoped)
	assert.Same(t, scoped, logger.FromContext(ctx))
	assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))

	//nolint:staticcheck // nil context is tolerated
	assert.Same(t, fallback, logger.FromContextOrDefault(nil, fallback))
}

package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestNewSlog_NilFallsBackToDefault(t *testing.T) {
	logger := NewSlog(nil)
	require.NotNil(t, logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelDebug)

	logger.Debug("debug message", "lease_token", "0")
	logger.Info("info message", "owner", "host-1")
	logger.Warn("warn message", "group", "default")
	logger.Error("error message", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "lease_token=0")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "owner=host-1")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "group=default")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=timeout")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
}

func TestWith_SlogLogger(t *testing.T) {
	base, buf := newBufferedSlog(slog.LevelInfo)

	logger := With(base, "lease_token", "3F-7F")
	logger.Info("batch processed", "size", 10)

	output := buf.String()
	assert.Contains(t, output, "lease_token=3F-7F")
	assert.Contains(t, output, "size=10")
}

type recordingLogger struct {
	NopLogger
	calls [][]any
}

func (r *recordingLogger) Info(_ string, keysAndValues ...any) {
	r.calls = append(r.calls, keysAndValues)
}

func TestWith_GenericLogger(t *testing.T) {
	rec := &recordingLogger{}

	logger := With(With(rec, "owner", "host-1"), "lease_token", "0")
	logger.Info("acquired", "attempt", 1)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []any{"owner", "host-1", "lease_token", "0", "attempt", 1}, rec.calls[0])
}

func TestWith_NilAndEmpty(t *testing.T) {
	assert.IsType(t, &NopLogger{}, With(nil, "k", "v"))

	rec := &recordingLogger{}
	assert.Same(t, rec, With(rec))
}

func TestFormatKeyValues(t *testing.T) {
	assert.Empty(t, formatKeyValues(nil))
	assert.Equal(t, "a=1 b=2", formatKeyValues([]any{"a", 1, "b", 2}))
	assert.Equal(t, "a=1 b=<missing>", formatKeyValues([]any{"a", 1, "b"}))
}

package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	require.NotNil(t, logger)

	// All levels accept calls without output or panic.
	logger.Debug("debug", "k", "v")
	logger.Info("info")
	logger.Warn("warn", "k", 1)
	logger.Error("error", "err", assert.AnError)
}

func TestSlogAdapterForwards(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))

	adapter.Info("hello", "session", "s-1")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "session=s-1")
}

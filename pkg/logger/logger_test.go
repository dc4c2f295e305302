package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/koopa0/system-design/item-cache/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

// TestNew_RequestID 請求 ID 應出現在每筆日誌
func TestNew_RequestID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "debug", "json", false).With("component", "test")

	ctx := logger.WithRequestID(context.Background(), "req-123")
	l.InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "warn", "text", false)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "info", "json", false)

	logger.LogError(context.Background(), l, "store failed", errors.New("boom"), "item_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(7), entry["item_id"])
	assert.Contains(t, entry["file"], "logger_test.go")
}

func TestRequestID_Empty(t *testing.T) {
	assert.Empty(t, logger.RequestID(context.Background()))
}

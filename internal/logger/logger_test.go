package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meenmo/hedgeassign/config"
	"github.com/meenmo/hedgeassign/internal/logger"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want zapcore.Level
	}{
		{name: "defaults", cfg: config.DefaultConfig.Log, want: zapcore.InfoLevel},
		{name: "debug json", cfg: config.LogConfig{Level: "DEBUG", Encoding: "json"}, want: zapcore.DebugLevel},
		{name: "bad level falls back", cfg: config.LogConfig{Level: "loud", Encoding: "console", Sampling: true}, want: zapcore.InfoLevel},
		{name: "empty encoding", cfg: config.LogConfig{Level: "warn"}, want: zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.New(tt.cfg, &bytes.Buffer{})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(config.LogConfig{Level: "info", Encoding: "json", DisableCaller: true}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("solved", zap.String("status", "Optimal"), zap.Float64("delta", 0.05))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "solved", rec["msg"])
	assert.Equal(t, "Optimal", rec["status"])
	assert.Equal(t, 0.05, rec["delta"])
	assert.NotContains(t, rec, "caller")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(config.LogConfig{Level: "debug", Encoding: "console"}, &buf)
	require.NoError(t, err)

	log.Named("cbc").Debug("running", zap.String("path", "cbc"))
	require.NoError(t, log.Sync())
	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "cbc\trunning")
	assert.Contains(t, out, `{"path": "cbc"}`)
	assert.Contains(t, out, "logger_test.go")
}

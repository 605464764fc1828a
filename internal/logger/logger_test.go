package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestHelpersBeforeInitialize(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("debug", WithUserID("u1"))
		Info("info", WithNotificationID("n1"))
		Warn("warn", WithTopic("realtime:notifications:p1"))
		WarnWithErr("warn", errors.New("boom"))
		ErrorWithErr("error", nil, WithEpoch(3))
	})
}

func TestInitializeWritesJSONFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "notifier.log")

	require.NoError(t, InitializeWithConsole("debug", logFile, io.Discard))
	Info("toast shown", WithNotificationID("n-42"), WithTable("notifications"))
	require.NoError(t, Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"notification_id":"n-42"`)
	assert.Contains(t, string(data), `"table":"notifications"`)
}

package bridge

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	// Arrange
	for _, key := range []string{"LNDKIT_CALL_TIMEOUT", "LNDKIT_LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	// Act
	opts, err := LoadOptions()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, DefaultCallTimeout, opts.CallTimeout)
	assert.Equal(t, "info", opts.LogLevel)
}

func TestLoadOptionsFromEnvironment(t *testing.T) {
	// Arrange
	t.Setenv("LNDKIT_CALL_TIMEOUT", "5s")
	t.Setenv("LNDKIT_LOG_LEVEL", "debug")

	// Act
	opts, err := LoadOptions()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, opts.CallTimeout)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.True(t, opts.logger().Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadOptionsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
	}{
		{name: "not a duration", timeout: "soon"},
		{name: "negative", timeout: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LNDKIT_CALL_TIMEOUT", tt.timeout)
			_, err := LoadOptions()
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestLoggerHonoursLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{level: "debug", enabled: slog.LevelDebug},
		{level: "info", enabled: slog.LevelInfo, disabled: slog.LevelDebug},
		{level: "warn", enabled: slog.LevelWarn, disabled: slog.LevelInfo},
		{level: "error", enabled: slog.LevelError, disabled: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			// Arrange
			opts := &Options{LogLevel: tt.level}

			// Act
			h := opts.logger().Handler()

			// Assert
			assert.True(t, h.Enabled(context.Background(), tt.enabled))
			if tt.level != "debug" {
				assert.False(t, h.Enabled(context.Background(), tt.disabled))
			}
		})
	}
}

func TestLoggerPrefersExplicitLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	opts := &Options{LogLevel: "debug", Logger: logger}
	assert.Same(t, logger, opts.logger())
}

func TestNewWithNilOptionsUsesDefaults(t *testing.T) {
	b := New(nil)
	assert.Equal(t, DefaultCallTimeout, b.timeout)
	assert.Same(t, GlobalRegistry(), b.registry)
	assert.Zero(t, b.Outstanding())
}

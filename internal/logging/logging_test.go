package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerSilentByDefault(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(New(&buf, slog.LevelInfo))
	t.Cleanup(func() { SetLogger(nil) })

	Logger().Debug("hidden")
	Logger().Info("swapchain rebuilt", "generation", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "swapchain rebuilt")
	assert.Contains(t, out, "generation=2")
}

func TestLevelFromFlags(t *testing.T) {
	tests := []struct {
		vv, v, q bool
		want     slog.Level
	}{
		{want: slog.LevelWarn},
		{q: true, want: slog.LevelError},
		{v: true, want: slog.LevelInfo},
		{vv: true, want: slog.LevelDebug},
		{vv: true, v: true, q: true, want: slog.LevelDebug},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromFlags(tt.vv, tt.v, tt.q))
	}
}

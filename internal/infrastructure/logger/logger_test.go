package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "production config", cfg: ProductionConfig()},
		{name: "nil config", cfg: nil},
		{name: "stderr without time format", cfg: &Config{Level: "debug", Format: "json", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("report generated")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"report generated"`)
}

func TestNew_UnwritableFileOutput(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewForEnvironment(t *testing.T) {
	l, err := NewForEnvironment("production")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

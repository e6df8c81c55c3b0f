package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create console logger", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Console: true})
		require.NoError(t, err)
		defer l.Close()

		assert.NotNil(t, l)
	})

	t.Run("should fall back to info on invalid level", func(t *testing.T) {
		l, err := New(Config{Level: "bogus", Console: true})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
	})

	t.Run("should create log file and directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "logs", "molehunt.log")

		l, err := New(Config{Level: "info", File: logFile})
		require.NoError(t, err)

		zl := l.GetZerolog()
		zl.Info().Msg("hello")
		require.NoError(t, l.Close())

		info, err := os.Stat(logFile)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
}

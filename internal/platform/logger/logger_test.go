package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, "info", "json", false)
		require.NoError(t, err)
		log.Info("rendered", "countries", 3)
		assert.Contains(t, buf.String(), `"countries":3`)
	})

	t.Run("level filters debug", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, "warn", "text", false)
		require.NoError(t, err)
		log.Info("hidden")
		log.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("debug flag wins", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, "error", "text", true)
		require.NoError(t, err)
		log.Debug("trace")
		assert.Contains(t, buf.String(), "trace")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "info", "xml", false)
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

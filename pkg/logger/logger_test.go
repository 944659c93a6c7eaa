package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, Init(path))
	defer Close()
	defer SetVerbose(false)

	Info("session %s created", "abc")
	Debug("hidden %d", 1)
	SetVerbose(true)
	Debug("visible %d", 2)
	Warn("careful")
	Error("broken: %v", "x")
	WithFields(logrus.Fields{"step": 3}).Info("step done")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "session abc created")
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "broken: x")
	assert.Contains(t, out, "step=3")
}

func TestLogger_NoopBeforeInit(t *testing.T) {
	Close()

	// must not panic
	Info("nothing")
	Debug("nothing")
	WithFields(logrus.Fields{"a": 1}).Info("nothing")

	assert.Equal(t, io.Discard, GetWriter())
}

func TestLogger_InitBadPath(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "dir", "runner.log"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to create log file"))
}

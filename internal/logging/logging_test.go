package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestNew_AppendsToEventFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("earlier line\n"), 0o644))

	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", File: path, Output: &buf})
	require.NoError(t, err)

	Component(log, "dispatch").WithField("pin", 13).Info("pressed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "earlier line\n")
	assert.Contains(t, string(data), "component=dispatch")
	assert.Contains(t, string(data), "pin=13")
	assert.Contains(t, buf.String(), "pressed")
}

func TestNew_CreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.log")
	_, closer, err := New(Options{File: path, Output: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}

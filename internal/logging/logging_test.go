package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedOutput(t *testing.T) {
	require.NoError(t, Init(Options{Level: "debug", Format: "text", Buffer: true}))

	slog.Info("before the dashboard")

	var pane bytes.Buffer
	require.NoError(t, SetOutput(&pane))
	assert.Contains(t, pane.String(), "before the dashboard")

	slog.Info("live line")
	assert.Contains(t, pane.String(), "live line")

	BufferOutput()
	slog.Info("held back")
	assert.NotContains(t, pane.String(), "held back")

	require.NoError(t, SetOutput(&pane))
	assert.Contains(t, pane.String(), "held back")
}

func TestFileLoggingJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	require.NoError(t, Init(Options{Level: "info", Format: "json", File: path}))
	slog.Info("job done", "job", "abc")
	require.NoError(t, Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"job done"`)
	assert.Contains(t, string(content), `"job":"abc"`)
}

func TestInitBadFile(t *testing.T) {
	err := Init(Options{File: filepath.Join(t.TempDir(), "missing", "bridge.log")})
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(Options{Level: "warn", Buffer: true}))

	var pane bytes.Buffer
	require.NoError(t, SetOutput(&pane))

	slog.Info("quiet")
	assert.Empty(t, pane.String())

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, Level())
	slog.Debug("loud")
	assert.Contains(t, pane.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestWriterReportsTargetErrors(t *testing.T) {
	w := &bufferingTeeWriter{buffer: &bytes.Buffer{}, target: failingWriter{}}

	n, err := w.Write([]byte("line"))
	assert.Equal(t, 4, n)
	assert.EqualError(t, err, "write failed")
}

func TestSentryDisabledWithoutDSN(t *testing.T) {
	assert.False(t, InitSentry("", "test"))
	assert.False(t, SentryEnabled())

	// capturing while disabled is a no-op
	CaptureError(errors.New("boom"), "test", nil)
	Reporter("test")(errors.New("boom"))
}

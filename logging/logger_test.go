package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*ZerologAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("agent.model.start", "provider", "mock")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "agent.model.start", entry["msg"])
	assert.Equal(t, "mock", entry["provider"])
}

func TestNew_Zerolog(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelWarn, Backend: "zerolog", Output: &buf})

	l.Info("hidden")
	l.Error("tool.call.error", "tool", "search", "error", errors.New("boom"), "attempt", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tool.call.error", entry["message"])
	assert.Equal(t, "search", entry["tool"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "error", entry["level"])
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := With(New(&Config{Backend: "zerolog", Output: &buf}), "thread_id", "t-1")
	l.Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "t-1", entry["thread_id"])
	assert.Equal(t, "v", entry["k"])

	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "a", 1))
}

func TestContext(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, FromContext(context.Background()))

	l := NewDefaultSlogLogger()
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}

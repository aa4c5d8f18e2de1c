package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordRun("completed", 2)
	m.RecordModelCall("mock", "success", 10*time.Millisecond)
	m.RecordToolCall("search", false, time.Millisecond)
	m.RecordToolCall("search", true, time.Millisecond)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.RecordThreadBusy()
	m.RecordThreadCreated()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoopRunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("mock", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThreadBusyRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThreadsCreatedTotal))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("failed", 1)
		m.RecordModelCall("mock", "error", time.Second)
		m.RecordToolCall("search", true, time.Second)
		m.StreamOpened()
		m.StreamClosed()
		m.RecordThreadBusy()
		m.RecordThreadCreated()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordToolCall("search", false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "agentloop_tool_calls_total")
}

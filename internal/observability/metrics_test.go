package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafeNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTurn("simple", time.Millisecond)
		m.RecordTurnError("timeout")
		m.IncTurnsActive()
		m.DecTurnsActive()
		m.RecordGuardrailBlocked()
		m.RecordSpecialistCall("data_discovery", time.Millisecond)
		m.RecordSpecialistError("data_discovery")
		m.RecordHandoff("report_writer")
		m.RecordToolCall("sql_query", time.Millisecond)
		m.RecordToolError("sql_query")
		m.RecordToolDedupHit("sql_query")
		m.RecordLLMCall("claude-haiku-4-5", "simple", time.Millisecond)
		m.RecordLLMTokens("claude-haiku-4-5", 10, 20)
		m.RecordLLMError("claude-haiku-4-5")
		m.RecordSessionCreated()
		m.SetSessionsActive(3)
		m.RecordEventPublished("content")
		m.RecordEventDropped("content")
	})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))
	assert.Nil(t, NewMetrics(&MetricsConfig{Enabled: false}))
}

func TestMetricsRecordAndScrape(t *testing.T) {
	m := NewMetrics(&MetricsConfig{Enabled: true})
	require.NotNil(t, m)

	m.RecordTurn("complex", 1500*time.Millisecond)
	m.RecordToolCall("sql_query", 25*time.Millisecond)
	m.RecordLLMTokens("claude-sonnet-4-5", 100, 250)
	m.RecordSessionCreated()
	m.SetSessionsActive(2)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "insightloop_turn_total")
	assert.Contains(t, body, "insightloop_tool_calls_total")
	assert.Contains(t, body, "insightloop_session_created_total")
}

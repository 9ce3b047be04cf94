package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerWithoutPrometheusAddrDisablesMetricsServer(t *testing.T) {
	m, err := NewManager(context.Background(), Config{ServiceName: "engine-test"}, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.Tracer())
	assert.Nil(t, m.Metrics())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerWithPrometheusAddrServesMetrics(t *testing.T) {
	m, err := NewManager(context.Background(), Config{
		ServiceName:          "engine-test",
		PrometheusListenAddr: "127.0.0.1:0",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, m.Metrics())

	m.Metrics().RecordSessionCreated()
	time.Sleep(10 * time.Millisecond)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestNilManagerShutdownIsSafe(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.Shutdown(context.Background()))
}

package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerDisabledReturnsNil(t *testing.T) {
	tr, err := NewTracer(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = NewTracer(context.Background(), &TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestNewTracerStdoutExporterDefault(t *testing.T) {
	tr, err := NewTracer(context.Background(), &TracingConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, tr)
	defer tr.Shutdown(context.Background())

	ctx, span := tr.Start(context.Background(), "test-span")
	require.NotNil(t, span)
	span.End()
	assert.NotNil(t, ctx)
}

func TestNilTracerMethodsAreSafeNoOps(t *testing.T) {
	var tr *Tracer
	assert.NotPanics(t, func() {
		ctx, span := tr.Start(context.Background(), "noop")
		tr.RecordError(span, assert.AnError)
		_ = tr.Shutdown(ctx)
	})
}

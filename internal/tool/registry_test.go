package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDescriptor() Descriptor {
	return Descriptor{
		Name:             "echo",
		HumanDescription: "Echoes its input argument back.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"text"},
			Properties: map[string]*ParameterSchema{
				"text": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			return Result{Success: true, Summary: "echoed", Data: args["text"]}, nil
		},
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor()))
	err := r.Register(echoDescriptor())
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestInvokeMissingRequiredArgument(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor()))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{}, &Context{})
	var invalid *ErrInvalidArguments
	assert.ErrorAs(t, err, &invalid)
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "nope", nil, &Context{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestInvokeSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor()))

	res, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"}, &Context{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Data)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestInvokeHandlerErrorBecomesFailedResult(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			return Result{}, errors.New("downstream unavailable")
		},
	}))

	res, err := r.Invoke(context.Background(), "boom", map[string]any{}, &Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Summary, "downstream unavailable")
}

func TestInvokePanicBecomesFailedResult(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name: "panicky",
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			panic("kaboom")
		},
	}))

	res, err := r.Invoke(context.Background(), "panicky", map[string]any{}, &Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
}

func TestListForSubsetCapabilities(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "a", CapabilitySet: []string{"sql"}}))
	require.NoError(t, r.Register(Descriptor{Name: "b", CapabilitySet: []string{"sql", "network"}}))

	out := r.ListFor([]string{"sql"})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Name)
}

package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	values map[string]any
}

func (f *fakeEnv) Get(key string) (any, bool) { v, ok := f.values[key]; return v, ok }
func (f *fakeEnv) Add(key string, value any, metadata map[string]any) {
	if f.values == nil {
		f.values = map[string]any{}
	}
	f.values[key] = value
}
func (f *fakeEnv) Find(pattern string) []string { return nil }

func TestCitationFindsSupportingExcerpt(t *testing.T) {
	env := &fakeEnv{values: map[string]any{
		"sql_query.result": "the shipping delay was the most common complaint across reviews",
	}}
	d := NewCitationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"claim":       "shipping delay is a common complaint",
		"source_keys": []any{"sql_query.result"},
	}, &Context{Environment: env})
	require.NoError(t, err)
	assert.True(t, res.Success)
	data := res.Data.(map[string]any)
	citations := data["citations"].([]Citation)
	require.Len(t, citations, 1)
	assert.Equal(t, "sql_query.result", citations[0].SourceKey)
}

func TestCitationNoMatch(t *testing.T) {
	env := &fakeEnv{values: map[string]any{"a": "completely unrelated text"}}
	d := NewCitationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"claim":       "battery life is poor",
		"source_keys": []any{"a"},
	}, &Context{Environment: env})
	require.NoError(t, err)
	assert.True(t, res.Success)
	data := res.Data.(map[string]any)
	assert.Empty(t, data["citations"])
}

func TestCitationRequiresClaimAndKeys(t *testing.T) {
	d := NewCitationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{}, &Context{Environment: &fakeEnv{}})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

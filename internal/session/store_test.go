package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateGetAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.CreateSession(ctx, "", "user-1", map[string]any{"flag": true})
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())

	require.NoError(t, store.AppendMessage(ctx, s.ID(), Message{Role: RoleUser, Content: "hi"}))

	got, err := store.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Len(t, got.History(0), 1)
	assert.Equal(t, "user-1", got.UserID())
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionResumptionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s, err := store.CreateSession(ctx, "sess-1", "user-1", nil)
	require.NoError(t, err)

	env := NewEnvironment()
	env.Add("dataset_data.sales", "small-table-stub", nil)
	require.NoError(t, s.SaveEnvironment(env, 1000))

	restored, err := s.RestoreEnvironment()
	require.NoError(t, err)
	val, ok := restored.Get("dataset_data.sales")
	require.True(t, ok)
	assert.Equal(t, "small-table-stub", val)
}

func TestUpdateMessageAndSaveSteps(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s, err := store.CreateSession(ctx, "sess-3", "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, s.ID(), Message{ID: "msg-1", Role: RoleAssistant, Content: ""}))
	require.NoError(t, store.UpdateMessage(ctx, s.ID(), "msg-1", "final answer", time.Now()))

	history := s.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, "final answer", history[0].Content)
	require.NotNil(t, history[0].CompletedAt)

	require.NoError(t, store.SaveSteps(ctx, s.ID(), "msg-1", []StepRecord{{ID: "n1", Kind: "tool", Status: "completed"}}))
	assert.Len(t, s.Steps("msg-1"), 1)

	err = store.UpdateMessage(ctx, s.ID(), "nope", "x", time.Now())
	assert.Error(t, err)
}

func TestRestoreEnvironmentWithNoPriorSnapshotIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s, err := store.CreateSession(ctx, "sess-2", "user-1", nil)
	require.NoError(t, err)

	env, err := s.RestoreEnvironment()
	require.NoError(t, err)
	assert.Empty(t, env.Keys())
}

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCompleteNodeUpdatesCurrentParent(t *testing.T) {
	tr := New("summarize sentiment", "sess-1")
	assert.Equal(t, RootNodeID, tr.CurrentParent())

	id, err := tr.StartNode("sentiment_analysis", KindAgent, "", "user query", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, id, tr.CurrentParent())

	require.NoError(t, tr.CompleteNode(id, "done", nil, nil))
	assert.Equal(t, RootNodeID, tr.CurrentParent())

	node, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, node.Status)
	assert.False(t, node.EndedAt.IsZero())
	assert.GreaterOrEqual(t, node.DurationMs, int64(0))
}

func TestStartNodeUnknownParentFails(t *testing.T) {
	tr := New("q", "sess-1")
	_, err := tr.StartNode("x", KindTool, "does-not-exist", "", nil, nil)
	assert.Error(t, err)
}

func TestFailNodeDoesNotFailAncestor(t *testing.T) {
	tr := New("q", "sess-1")
	agentID, err := tr.StartNode("coordinator", KindAgent, "", "", nil, nil)
	require.NoError(t, err)
	toolID, err := tr.StartNode("semantic_search", KindTool, agentID, "", nil, nil)
	require.NoError(t, err)

	require.NoError(t, tr.FailNode(toolID, "connection refused", nil))

	toolNode, _ := tr.Get(toolID)
	assert.Equal(t, StatusFailed, toolNode.Status)

	agentNode, _ := tr.Get(agentID)
	assert.Equal(t, StatusRunning, agentNode.Status)
}

func TestDepthBound(t *testing.T) {
	tr := New("q", "sess-1")
	parent := ""
	for i := 0; i < 5; i++ {
		id, err := tr.StartNode("step", KindAgent, parent, "", nil, nil)
		require.NoError(t, err)
		require.NoError(t, tr.CompleteNode(id, "", nil, nil))
		parent = id
	}
	assert.Equal(t, 5, tr.Depth())
}

func TestStepRecordsExcludesRootAndPending(t *testing.T) {
	tr := New("q", "sess-1")
	id, err := tr.StartNode("tool_x", KindTool, "", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.CompleteNode(id, "ok", nil, nil))

	records := tr.StepRecords()
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
}

func TestToDictRoundTripsChildren(t *testing.T) {
	tr := New("q", "sess-1")
	id, err := tr.StartNode("tool_x", KindTool, "", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.CompleteNode(id, "ok", nil, nil))

	dict := tr.ToDict()
	require.Len(t, dict.Children, 1)
	assert.Equal(t, id, dict.Children[0].ID)
	assert.NotNil(t, dict.Children[0].EndedAt)
}

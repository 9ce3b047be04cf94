package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReplaceLogsHistory(t *testing.T) {
	env := NewEnvironment()
	env.Add("scalar.count", 1, nil)
	env.Add("scalar.count", 2, nil)

	hist := env.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "add", hist[0].Action)
	assert.Equal(t, "replace", hist[1].Action)

	val, ok := env.Get("scalar.count")
	require.True(t, ok)
	assert.Equal(t, 2.0, toFloat(val))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return -1
	}
}

func TestRemoveLogsAndReportsExistence(t *testing.T) {
	env := NewEnvironment()
	env.Add("dataset_data.sales", "x", nil)

	assert.True(t, env.Remove("dataset_data.sales"))
	assert.False(t, env.Remove("dataset_data.sales"))

	_, ok := env.Get("dataset_data.sales")
	assert.False(t, ok)

	hist := env.History()
	assert.Equal(t, "remove", hist[len(hist)-1].Action)
}

func TestFindGlobPattern(t *testing.T) {
	env := NewEnvironment()
	env.Add("dataset_data.sales_2024", "a", nil)
	env.Add("dataset_data.sales_2023", "b", nil)
	env.Add("clustering.reviews", "c", nil)

	matches := env.Find("dataset_data.*")
	assert.ElementsMatch(t, []string{"dataset_data.sales_2024", "dataset_data.sales_2023"}, matches)

	exact := env.Find("clustering.reviews")
	assert.Equal(t, []string{"clustering.reviews"}, exact)
}

func TestClearIsLogged(t *testing.T) {
	env := NewEnvironment()
	env.Add("k", "v", nil)
	env.Clear()

	assert.Empty(t, env.Keys())
	hist := env.History()
	assert.Equal(t, "clear", hist[len(hist)-1].Action)
}

func TestSnapshotLargeTableBecomesMetadataOnly(t *testing.T) {
	env := NewEnvironment()
	rows := make([]map[string]any, 1500)
	for i := range rows {
		rows[i] = map[string]any{"id": float64(i)}
	}
	env.AddValue("dataset_data.big", Value{Tag: TagTable, Table: &Table{Columns: []string{"id"}, Rows: rows}}, nil)

	snap, err := env.Snapshot(1000)
	require.NoError(t, err)

	restored, err := Restore(snap)
	require.NoError(t, err)

	v, ok := restored.GetValue("dataset_data.big")
	require.True(t, ok)
	assert.Equal(t, TagTableMetadata, v.Tag)
	assert.Equal(t, 1500, v.TableMetadata.Shape[0])
	assert.Len(t, v.TableMetadata.Sample, 5)
}

func TestSnapshotSmallTablePreservesRows(t *testing.T) {
	env := NewEnvironment()
	rows := []map[string]any{{"id": float64(1)}, {"id": float64(2)}}
	env.AddValue("dataset_data.small", Value{Tag: TagTable, Table: &Table{Columns: []string{"id"}, Rows: rows}}, nil)

	snap, err := env.Snapshot(1000)
	require.NoError(t, err)

	restored, err := Restore(snap)
	require.NoError(t, err)

	v, ok := restored.GetValue("dataset_data.small")
	require.True(t, ok)
	assert.Equal(t, TagTable, v.Tag)
	assert.Len(t, v.Table.Rows, 2)
}

func TestSnapshotDropsEmbeddingMatrix(t *testing.T) {
	env := NewEnvironment()
	env.AddValue("embedding.reviews", Value{Tag: TagEmbeddingMatrix, EmbeddingMatrix: [][]float64{{0.1, 0.2}}}, nil)

	snap, err := env.Snapshot(1000)
	require.NoError(t, err)
	assert.NotContains(t, snap, "embedding.reviews")
}

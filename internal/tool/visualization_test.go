package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsArg() []any {
	return []any{
		map[string]any{"category": "shipping", "count": 42},
		map[string]any{"category": "quality", "count": 17},
	}
}

func TestVisualizationTableConfig(t *testing.T) {
	d := NewVisualizationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"data": rowsArg(), "chart_type": "table",
	}, &Context{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	data := res.Data.(map[string]any)
	config := data["config"].(map[string]any)
	assert.Equal(t, "table", config["type"])
	assert.Equal(t, 2, config["totalRows"])
}

func TestVisualizationBarChartAutoDetectsAxes(t *testing.T) {
	d := NewVisualizationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"data": rowsArg(), "chart_type": "bar",
	}, &Context{})
	require.NoError(t, err)
	config := res.Data.(map[string]any)["config"].(map[string]any)
	assert.Equal(t, "bar", config["type"])
	chartData := config["data"].(map[string]any)
	assert.Len(t, chartData["labels"], 2)
}

func TestVisualizationPieChartGeneratesColors(t *testing.T) {
	d := NewVisualizationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"data": rowsArg(), "chart_type": "pie", "x_axis": "category", "y_axis": "count",
	}, &Context{})
	require.NoError(t, err)
	config := res.Data.(map[string]any)["config"].(map[string]any)
	chartData := config["data"].(map[string]any)
	dataset := chartData["datasets"].([]any)[0].(map[string]any)
	assert.Len(t, dataset["backgroundColor"], 2)
}

func TestVisualizationRejectsEmptyData(t *testing.T) {
	d := NewVisualizationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"data": []any{}, "chart_type": "bar",
	}, &Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestVisualizationRejectsUnknownChartType(t *testing.T) {
	d := NewVisualizationDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"data": rowsArg(), "chart_type": "scatter",
	}, &Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

package tool

import (
	"context"
	"fmt"
)

var chartColors = []string{
	"rgba(255, 99, 132, 0.7)", "rgba(54, 162, 235, 0.7)", "rgba(255, 206, 86, 0.7)",
	"rgba(75, 192, 192, 0.7)", "rgba(153, 102, 255, 0.7)", "rgba(255, 159, 64, 0.7)",
	"rgba(199, 199, 199, 0.7)", "rgba(83, 102, 255, 0.7)", "rgba(255, 99, 255, 0.7)",
	"rgba(99, 255, 132, 0.7)",
}

func generateColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = chartColors[i%len(chartColors)]
	}
	return colors
}

// NewVisualizationDescriptor builds the visualization tool, directly
// ported from original_source's VisualizationTool: it does not render a
// chart, it emits a Chart.js-shaped JSON config (bar/line/pie/table)
// that a frontend can render directly from the report_writer's output.
func NewVisualizationDescriptor() Descriptor {
	return Descriptor{
		Name: "visualization",
		HumanDescription: "Generate chart or table configurations for data (bar, line, pie, table). " +
			"Does not render — returns a JSON config a frontend can draw with Chart.js or similar.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"data", "chart_type"},
			Properties: map[string]*ParameterSchema{
				"data":       {Type: "array", Description: "List of data point objects to visualize."},
				"chart_type": {Type: "string", Enum: stringsToAny([]string{"bar", "line", "pie", "table"}), Description: "Type of visualization."},
				"x_axis":     {Type: "string", Description: "Column for the X axis (bar/line/pie charts)."},
				"y_axis":     {Type: "string", Description: "Column for the Y axis (bar/line/pie charts)."},
				"title":      {Type: "string", Description: "Chart title."},
				"labels":     {Type: "object", Description: "Custom axis labels, keyed by column name."},
			},
		},
		CapabilitySet: []string{"visualization"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			rawRows, _ := args["data"].([]any)
			if len(rawRows) == 0 {
				return Result{Success: false, Summary: "data array is empty"}, nil
			}
			rows := make([]map[string]any, 0, len(rawRows))
			for _, r := range rawRows {
				if m, ok := r.(map[string]any); ok {
					rows = append(rows, m)
				}
			}

			chartType, _ := args["chart_type"].(string)
			title, _ := args["title"].(string)
			xAxis, _ := args["x_axis"].(string)
			yAxis, _ := args["y_axis"].(string)
			labels, _ := args["labels"].(map[string]any)

			var config map[string]any
			switch chartType {
			case "table":
				config = tableConfig(rows, title)
			case "bar":
				config = seriesConfig("bar", rows, xAxis, yAxis, title, labels)
			case "line":
				config = seriesConfig("line", rows, xAxis, yAxis, title, labels)
			case "pie":
				config = pieConfig(rows, xAxis, yAxis, title)
			default:
				return Result{Success: false, Summary: fmt.Sprintf("unsupported chart type: %q", chartType)}, nil
			}

			return Result{
				Success:  true,
				Summary:  fmt.Sprintf("generated %s visualization with %d data points", chartType, len(rows)),
				Data:     map[string]any{"config": config, "chart_type": chartType},
				Metadata: map[string]any{"chart_type": chartType, "data_points": len(rows)},
			}, nil
		},
	}
}

func tableConfig(rows []map[string]any, title string) map[string]any {
	var columns []string
	if len(rows) > 0 {
		for k := range rows[0] {
			columns = append(columns, k)
		}
	}
	if title == "" {
		title = "Data Table"
	}
	return map[string]any{
		"type":      "table",
		"title":     title,
		"columns":   columns,
		"rows":      rows,
		"totalRows": len(rows),
	}
}

func resolveAxes(rows []map[string]any, xAxis, yAxis string) (string, string) {
	if xAxis != "" && yAxis != "" {
		return xAxis, yAxis
	}
	var keys []string
	for k := range rows[0] {
		keys = append(keys, k)
	}
	if xAxis == "" && len(keys) > 0 {
		xAxis = keys[0]
	}
	if yAxis == "" {
		if len(keys) > 1 {
			yAxis = keys[1]
		} else {
			yAxis = xAxis
		}
	}
	return xAxis, yAxis
}

func axisLabel(labels map[string]any, column string) string {
	if labels != nil {
		if v, ok := labels[column].(string); ok && v != "" {
			return v
		}
	}
	return column
}

func seriesConfig(kind string, rows []map[string]any, xAxis, yAxis, title string, labels map[string]any) map[string]any {
	xAxis, yAxis = resolveAxes(rows, xAxis, yAxis)

	chartLabels := make([]string, len(rows))
	chartValues := make([]any, len(rows))
	for i, row := range rows {
		chartLabels[i] = fmt.Sprintf("%v", row[xAxis])
		chartValues[i] = row[yAxis]
	}

	dataset := map[string]any{
		"label": axisLabel(labels, yAxis),
		"data":  chartValues,
	}
	if title == "" {
		if kind == "bar" {
			title = fmt.Sprintf("%s by %s", yAxis, xAxis)
		} else {
			title = fmt.Sprintf("%s over %s", yAxis, xAxis)
		}
	}
	if kind == "bar" {
		dataset["backgroundColor"] = "rgba(54, 162, 235, 0.5)"
		dataset["borderColor"] = "rgba(54, 162, 235, 1)"
		dataset["borderWidth"] = 1
	} else {
		dataset["fill"] = false
		dataset["borderColor"] = "rgb(75, 192, 192)"
		dataset["tension"] = 0.1
	}

	return map[string]any{
		"type":  kind,
		"title": title,
		"data": map[string]any{
			"labels":   chartLabels,
			"datasets": []any{dataset},
		},
		"options": map[string]any{
			"scales": map[string]any{
				"y": map[string]any{"beginAtZero": true, "title": map[string]any{"display": true, "text": axisLabel(labels, yAxis)}},
				"x": map[string]any{"title": map[string]any{"display": true, "text": axisLabel(labels, xAxis)}},
			},
		},
	}
}

func pieConfig(rows []map[string]any, xAxis, yAxis, title string) map[string]any {
	xAxis, yAxis = resolveAxes(rows, xAxis, yAxis)

	chartLabels := make([]string, len(rows))
	chartValues := make([]any, len(rows))
	for i, row := range rows {
		chartLabels[i] = fmt.Sprintf("%v", row[xAxis])
		chartValues[i] = row[yAxis]
	}
	if title == "" {
		title = fmt.Sprintf("Distribution of %s", yAxis)
	}

	return map[string]any{
		"type":  "pie",
		"title": title,
		"data": map[string]any{
			"labels": chartLabels,
			"datasets": []any{map[string]any{
				"data":            chartValues,
				"backgroundColor": generateColors(len(rows)),
				"borderWidth":     1,
			}},
		},
		"options": map[string]any{
			"plugins": map[string]any{
				"legend": map[string]any{"display": true, "position": "right"},
			},
		},
	}
}

package llm

import (
	"testing"

	"github.com/insightloop/engine/internal/tool"
	"github.com/stretchr/testify/assert"
)

func TestToAnthropicMessagesSplitsSystem(t *testing.T) {
	system, msgs := toAnthropicMessages([]Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	})

	assert.Equal(t, "be terse", system)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "user", msgs[0].Role)
		assert.Equal(t, "assistant", msgs[1].Role)
	}
}

func TestToAnthropicToolsCarriesSchema(t *testing.T) {
	defs := []ToolDefinition{
		{
			Name:        "run_sql",
			Description: "run a sql query",
			Parameters: &tool.ParameterSchema{
				Type:     "object",
				Required: []string{"query"},
				Properties: map[string]*tool.ParameterSchema{
					"query": {Type: "string"},
				},
			},
		},
	}

	tools := toAnthropicTools(defs)
	if assert.Len(t, tools, 1) {
		assert.Equal(t, "run_sql", tools[0].Name)
		assert.Equal(t, "object", tools[0].InputSchema.Type)
		assert.Contains(t, tools[0].InputSchema.Required, "query")
	}
}

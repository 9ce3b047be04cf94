package llm

import (
	"testing"

	"github.com/insightloop/engine/internal/tool"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestGenaiTypeMapping(t *testing.T) {
	assert.Equal(t, genai.TypeString, genaiType("string"))
	assert.Equal(t, genai.TypeObject, genaiType("object"))
	assert.Equal(t, genai.TypeUnspecified, genaiType("bogus"))
}

func TestToGenaiSchemaRecursesNestedProperties(t *testing.T) {
	schema := &tool.ParameterSchema{
		Type:     "object",
		Required: []string{"filters"},
		Properties: map[string]*tool.ParameterSchema{
			"filters": {
				Type:  "array",
				Items: &tool.ParameterSchema{Type: "string"},
			},
		},
	}

	out := toGenaiSchema(schema)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, genai.TypeArray, out.Properties["filters"].Type)
	assert.Equal(t, genai.TypeString, out.Properties["filters"].Items.Type)
}

func TestSystemInstructionConcatenatesSystemMessages(t *testing.T) {
	content := systemInstruction([]Message{
		{Role: RoleSystem, Content: "rule one"},
		{Role: RoleUser, Content: "ignored"},
		{Role: RoleSystem, Content: "rule two"},
	})

	if assert.NotNil(t, content) {
		assert.Contains(t, content.Parts[0].Text, "rule one")
		assert.Contains(t, content.Parts[0].Text, "rule two")
	}
}

func TestSystemInstructionNilWhenAbsent(t *testing.T) {
	assert.Nil(t, systemInstruction([]Message{{Role: RoleUser, Content: "hi"}}))
}

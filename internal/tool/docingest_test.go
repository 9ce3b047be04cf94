package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
}

func TestNewDocumentIngestDescriptorDeclaresSchema(t *testing.T) {
	d := NewDocumentIngestDescriptor()
	assert.Equal(t, "document_ingest", d.Name)
	assert.ElementsMatch(t, []string{"path", "output_key"}, d.ParameterSchema.Required)
}

package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFloat32VectorConvertsJSONNumberSlice(t *testing.T) {
	v, err := toFloat32Vector([]any{float64(1), float64(2), float64(3)})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestToFloat32VectorConvertsFloat64Slice(t *testing.T) {
	v, err := toFloat32Vector([]float64{0.5, 1.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1.5}, v)
}

func TestToFloat32VectorRejectsUnsupportedType(t *testing.T) {
	_, err := toFloat32Vector("not a vector")
	assert.Error(t, err)
}

func TestVectorSearchDescriptorDeclaresRequiredParameters(t *testing.T) {
	d := NewVectorSearchDescriptor(nil)
	assert.Equal(t, "vector_search", d.Name)
	assert.ElementsMatch(t, []string{"collection", "embedding_key"}, d.ParameterSchema.Required)
	assert.Contains(t, d.CapabilitySet, "vector_search")
}

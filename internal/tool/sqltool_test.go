package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReadOnlyQuery(t *testing.T) {
	assert.True(t, isReadOnlyQuery("select * from reviews"))
	assert.True(t, isReadOnlyQuery("  WITH t AS (select 1) select * from t"))
	assert.False(t, isReadOnlyQuery("DELETE FROM reviews"))
	assert.False(t, isReadOnlyQuery("update reviews set x=1"))
}

func TestNormalizeSQLValueConvertsBytes(t *testing.T) {
	assert.Equal(t, "hello", normalizeSQLValue([]byte("hello")))
	assert.Equal(t, 5, normalizeSQLValue(5))
}

func TestOpenSQLDataSourceRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLDataSource("oracle", "dsn")
	assert.Error(t, err)
}

func TestNewSQLQueryDescriptorDeclaresSchema(t *testing.T) {
	d := NewSQLQueryDescriptor(nil, 100)
	assert.Equal(t, "sql_query", d.Name)
	assert.Contains(t, d.ParameterSchema.Required, "query")
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dbsentry/security"
)

func newReportCache(t *testing.T) *security.SchemaCache {
	t.Helper()

	columns := map[string][]security.Column{
		"users": {
			{Name: "id", Type: "int", Key: "PRI"},
			{Name: "email", Type: "varchar(255)", Key: "UNI"},
			{Name: "bio", Type: "text", Nullable: true},
		},
		"orders": {
			{Name: "id", Type: "int", Key: "PRI"},
			{Name: "user_id", Type: "int", Key: "MUL"},
		},
	}
	fks := map[string][]security.ForeignKey{
		"orders": {
			{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	rowCounts := map[string]int64{"users": 42, "orders": 7}

	validator := security.NewValidator(security.Strict, zap.NewNop())
	cache := security.NewSchemaCache(validator, zap.NewNop())
	err := cache.Load([]string{"users", "orders"},
		func(table string) ([]security.Column, error) { return columns[table], nil },
		func(table string) ([]security.ForeignKey, error) { return fks[table], nil },
		func(table string) (int64, error) { return rowCounts[table], nil })
	require.NoError(t, err)
	return cache
}

func TestGenerateSchemaMermaid(t *testing.T) {
	diagram, err := generateSchemaMermaid(newReportCache(t))
	require.NoError(t, err)

	assert.True(t, len(diagram) > 0)
	assert.Contains(t, diagram, "erDiagram")
	assert.Contains(t, diagram, "    users {")
	assert.Contains(t, diagram, "    orders {")
	assert.Contains(t, diagram, "        int id PK \"NOT NULL\"")
	assert.Contains(t, diagram, "        varchar email UK \"NOT NULL\"")
	assert.Contains(t, diagram, "        text bio")
	assert.Contains(t, diagram, "        int user_id FK \"NOT NULL\"")
	assert.Contains(t, diagram, "    users ||--o{ orders : has")
}

func TestGenerateSchemaMermaid_NotLoaded(t *testing.T) {
	validator := security.NewValidator(security.Strict, zap.NewNop())
	cache := security.NewSchemaCache(validator, zap.NewNop())

	_, err := generateSchemaMermaid(cache)
	require.Error(t, err)
}

func TestGenerateTablesSummary(t *testing.T) {
	summary, err := generateTablesSummary(newReportCache(t))
	require.NoError(t, err)

	assert.Contains(t, summary, "| Table | Rows | Columns | Foreign Keys |")
	assert.Contains(t, summary, "| `users` | 42 | 3 | 0 |")
	assert.Contains(t, summary, "| `orders` | 7 | 2 | 1 |")
	assert.Contains(t, summary, "**2 tables, 49 rows, 5 columns, 1 foreign keys**")
}

func TestGenerateTablesSummary_UnknownRowCount(t *testing.T) {
	validator := security.NewValidator(security.Strict, zap.NewNop())
	cache := security.NewSchemaCache(validator, zap.NewNop())
	err := cache.Load([]string{"logs"},
		func(string) ([]security.Column, error) {
			return []security.Column{{Name: "id", Type: "int"}}, nil
		},
		nil,
		func(string) (int64, error) { return 0, assert.AnError })
	require.NoError(t, err)

	summary, err := generateTablesSummary(cache)
	require.NoError(t, err)
	assert.Contains(t, summary, "| `logs` | ? | 1 | 0 |")
	assert.Contains(t, summary, "**1 tables, 0 rows, 1 columns, 0 foreign keys**")
}

func TestMermaidType(t *testing.T) {
	assert.Equal(t, "varchar", mermaidType("VARCHAR(255)"))
	assert.Equal(t, "timestamp", mermaidType("timestamp with time zone"))
	assert.Equal(t, "int", mermaidType("int"))
	assert.Equal(t, "unknown", mermaidType(""))
}

package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedTestCache(t *testing.T) *SchemaCache {
	t.Helper()
	cache := NewSchemaCache(newTestValidator(), nil)

	columns := map[string][]Column{
		"users": {
			{Name: "id", Type: "int", Key: "PRI"},
			{Name: "name", Type: "varchar", Nullable: true},
			{Name: "email", Type: "varchar"},
		},
		"orders": {
			{Name: "id", Type: "int", Key: "PRI"},
			{Name: "total", Type: "decimal"},
		},
	}
	fks := map[string][]ForeignKey{
		"orders": {{Column: "userid", ReferencedTable: "users", ReferencedColumn: "id"}},
	}

	err := cache.Load([]string{"users", "orders", "products"},
		func(table string) ([]Column, error) {
			if cols, ok := columns[table]; ok {
				return cols, nil
			}
			return nil, errors.New("introspection failed")
		},
		func(table string) ([]ForeignKey, error) {
			return fks[table], nil
		},
		func(table string) (int64, error) {
			if table == "orders" {
				return 0, errors.New("count failed")
			}
			return 3, nil
		})
	require.NoError(t, err)
	return cache
}

func TestSchemaCache_NotLoaded(t *testing.T) {
	cache := NewSchemaCache(newTestValidator(), nil)

	assert.False(t, cache.Loaded())
	assert.Equal(t, KindSchemaCacheNotLoaded, KindOf(cache.ValidateTable("users")))
	assert.Equal(t, KindSchemaCacheNotLoaded, KindOf(cache.ValidateColumn("users", "id")))
}

func TestSchemaCache_ValidateTable(t *testing.T) {
	cache := loadedTestCache(t)

	assert.True(t, cache.Loaded())
	assert.NoError(t, cache.ValidateTable("users"))

	err := cache.ValidateTable("hackers")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindTableNotWhitelisted, ve.Kind)
	assert.Equal(t, []string{"orders", "products", "users"}, ve.Available)
}

func TestSchemaCache_ValidateColumn(t *testing.T) {
	cache := loadedTestCache(t)

	assert.NoError(t, cache.ValidateColumn("users", "email"))

	err := cache.ValidateColumn("users", "password")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindColumnNotWhitelisted, ve.Kind)
	assert.Equal(t, []string{"email", "id", "name"}, ve.Available)

	// Unknown table fails the table check first.
	assert.Equal(t, KindTableNotWhitelisted, KindOf(cache.ValidateColumn("hackers", "id")))
}

func TestSchemaCache_DegradedTable(t *testing.T) {
	// products failed column introspection during Load: the table stays
	// whitelisted with an empty column set instead of aborting the load.
	cache := loadedTestCache(t)

	assert.NoError(t, cache.ValidateTable("products"))
	assert.Equal(t, KindColumnNotWhitelisted, KindOf(cache.ValidateColumn("products", "sku")))

	cols, err := cache.Columns("products")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestSchemaCache_ColumnsNotFound(t *testing.T) {
	// An inconsistent snapshot (table whitelisted, column set missing)
	// reports TableColumnsNotFound rather than panicking.
	cache := NewSchemaCache(newTestValidator(), nil)
	cache.loaded = true
	cache.tables = map[string]struct{}{"users": {}}
	cache.columns = map[string]map[string]struct{}{}

	assert.Equal(t, KindTableColumnsNotFound, KindOf(cache.ValidateColumn("users", "id")))
}

func TestSchemaCache_SchemaMetadata(t *testing.T) {
	cache := loadedTestCache(t)

	schema, err := cache.Schema("orders")
	require.NoError(t, err)
	assert.Len(t, schema.Columns, 2)
	require.Len(t, schema.ForeignKeys, 1)
	assert.Equal(t, "users", schema.ForeignKeys[0].ReferencedTable)

	_, err = cache.Schema("hackers")
	assert.Equal(t, KindTableNotWhitelisted, KindOf(err))
}

func TestSchemaCache_RowCounts(t *testing.T) {
	cache := loadedTestCache(t)

	schema, err := cache.Schema("users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), schema.RowCount)

	// A failed count degrades to -1 instead of failing the load.
	schema, err = cache.Schema("orders")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), schema.RowCount)
}

func TestSchemaCache_Invalidate(t *testing.T) {
	cache := loadedTestCache(t)
	cache.Invalidate()

	assert.False(t, cache.Loaded())
	assert.Equal(t, KindSchemaCacheNotLoaded, KindOf(cache.ValidateTable("users")))
	assert.Empty(t, cache.Tables())
}

func TestSchemaCache_ReloadReplacesSnapshot(t *testing.T) {
	cache := loadedTestCache(t)

	err := cache.Load([]string{"invoices"},
		func(string) ([]Column, error) {
			return []Column{{Name: "id", Type: "int"}}, nil
		}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"invoices"}, cache.Tables())
	assert.Equal(t, KindTableNotWhitelisted, KindOf(cache.ValidateTable("users")))
}

func TestSchemaCache_DangerousTableNameRejectedDespiteWhitelist(t *testing.T) {
	cache := NewSchemaCache(newTestValidator(), nil)
	err := cache.Load([]string{"users; DROP TABLE users;"},
		func(string) ([]Column, error) { return nil, nil }, nil, nil)
	require.NoError(t, err)

	// Whitelisted but lexically unsafe: the structural checks still reject.
	assert.Equal(t, KindDangerousIdentifierPattern,
		KindOf(cache.ValidateTable("users; DROP TABLE users;")))
}

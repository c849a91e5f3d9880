package security

import (
	"sync"

	"go.uber.org/zap"
)

// Column describes one column of an introspected table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key,omitempty"`
	Default  string `json:"default,omitempty"`
	Extra    string `json:"extra,omitempty"`
}

// ForeignKey describes one foreign-key edge of an introspected table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// TableSchema is the cached metadata for a single table. RowCount is the
// table's row count at load time, or -1 when counting failed or was not
// requested.
type TableSchema struct {
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	RowCount    int64        `json:"row_count"`
}

// SchemaCache is a per-connection whitelist of table and column names,
// plus the cached schema metadata behind them. Identifiers are rejected
// when they reference objects the connected database does not have, even
// if they are lexically safe.
//
// One cache is owned by one connection. Load and Invalidate are writes
// that replace the whole snapshot atomically; ValidateTable and
// ValidateColumn are read-only and may run concurrently once a snapshot
// is loaded.
type SchemaCache struct {
	mu        sync.RWMutex
	validator *Validator
	logger    *zap.Logger

	loaded  bool
	tables  map[string]struct{}
	columns map[string]map[string]struct{}
	schemas map[string]TableSchema
}

// NewSchemaCache returns an empty, not-loaded cache. validator must not be
// nil; logger may be.
func NewSchemaCache(validator *Validator, logger *zap.Logger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaCache{validator: validator, logger: logger}
}

// Load replaces the snapshot with the given table list, pulling columns,
// foreign keys and row counts for each table through the supplied
// introspection callbacks. A table whose column listing fails degrades to
// an empty column set with a logged warning instead of aborting the whole
// load; a failed or skipped row count is recorded as -1.
func (c *SchemaCache) Load(
	tables []string,
	columnsOf func(table string) ([]Column, error),
	foreignKeysOf func(table string) ([]ForeignKey, error),
	rowCountOf func(table string) (int64, error),
) error {
	tableSet := make(map[string]struct{}, len(tables))
	columnSets := make(map[string]map[string]struct{}, len(tables))
	schemas := make(map[string]TableSchema, len(tables))

	for _, table := range tables {
		tableSet[table] = struct{}{}

		cols, err := columnsOf(table)
		if err != nil {
			c.logger.Warn("failed to load table schema, recording empty column set",
				zap.String("table", table), zap.Error(err))
			columnSets[table] = map[string]struct{}{}
			continue
		}

		colSet := make(map[string]struct{}, len(cols))
		for _, col := range cols {
			colSet[col.Name] = struct{}{}
		}
		columnSets[table] = colSet

		schema := TableSchema{Columns: cols, RowCount: -1}
		if foreignKeysOf != nil {
			fks, err := foreignKeysOf(table)
			if err != nil {
				c.logger.Warn("failed to load foreign keys",
					zap.String("table", table), zap.Error(err))
			} else {
				schema.ForeignKeys = fks
			}
		}
		if rowCountOf != nil {
			count, err := rowCountOf(table)
			if err != nil {
				c.logger.Warn("failed to count rows",
					zap.String("table", table), zap.Error(err))
			} else {
				schema.RowCount = count
			}
		}
		schemas[table] = schema
	}

	c.mu.Lock()
	c.tables = tableSet
	c.columns = columnSets
	c.schemas = schemas
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("schema cache loaded", zap.Int("tables", len(tables)))
	return nil
}

// ValidateTable checks that name refers to a whitelisted table and passes
// the structural identifier rules.
func (c *SchemaCache) ValidateTable(name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateTableLocked(name)
}

func (c *SchemaCache) validateTableLocked(name string) error {
	if !c.loaded {
		return newError(KindSchemaCacheNotLoaded, "schema cache is not loaded, call Load first")
	}
	if _, ok := c.tables[name]; !ok {
		err := newError(KindTableNotWhitelisted, "table %q is not whitelisted", name)
		err.Identifier = name
		err.Available = sortedKeys(c.tables)
		return err
	}
	return c.validator.ValidateIdentifier(name, nil)
}

// ValidateColumn checks the table first, then that column exists in the
// table's whitelisted column set and passes the structural rules.
func (c *SchemaCache) ValidateColumn(table, column string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.validateTableLocked(table); err != nil {
		return err
	}

	colSet, ok := c.columns[table]
	if !ok {
		err := newError(KindTableColumnsNotFound, "no column information recorded for table %q", table)
		err.Identifier = table
		return err
	}
	if _, ok := colSet[column]; !ok {
		err := newError(KindColumnNotWhitelisted, "table %q has no column %q", table, column)
		err.Identifier = column
		err.Available = sortedKeys(colSet)
		return err
	}
	return c.validator.ValidateIdentifier(column, nil)
}

// Schema returns the cached metadata for a whitelisted table.
func (c *SchemaCache) Schema(table string) (TableSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.validateTableLocked(table); err != nil {
		return TableSchema{}, err
	}
	return c.schemas[table], nil
}

// Snapshot returns a copy of all cached table metadata keyed by table
// name. Unlike Schema it applies no identifier checks: the names came from
// the database itself, and report generators render them as-is.
func (c *SchemaCache) Snapshot() map[string]TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]TableSchema, len(c.schemas))
	for name, schema := range c.schemas {
		snapshot[name] = schema
	}
	return snapshot
}

// Tables returns the whitelisted table names, sorted.
func (c *SchemaCache) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.tables)
}

// Columns returns the whitelisted column names of a table, sorted.
func (c *SchemaCache) Columns(table string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.validateTableLocked(table); err != nil {
		return nil, err
	}
	return sortedKeys(c.columns[table]), nil
}

// Loaded reports whether a snapshot is currently loaded.
func (c *SchemaCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Invalidate clears the snapshot and marks the cache not-loaded. Called on
// disconnect and on explicit refresh.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.tables = nil
	c.columns = nil
	c.schemas = nil
	c.mu.Unlock()

	c.logger.Info("schema cache invalidated")
}

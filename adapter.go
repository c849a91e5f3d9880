package main

import (
	"context"
	"database/sql"

	"dbsentry/security"
)

// DBAdapter defines the contract for database-specific behavior.
// Each supported database (MySQL, PostgreSQL, SQLite) implements this
// interface. Adapters only build queries and scan rows; query safety is
// decided by the security package before anything reaches them.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "mysql", "postgres", "sqlite").
	DriverName() string

	// ServerName returns the MCP server name for this adapter.
	ServerName() string

	// URIScheme returns the resource URI scheme (e.g., "mysql", "postgres", "sqlite").
	URIScheme() string

	// Dialect returns the security dialect whose dangerous-keyword set and
	// identifier quoting style apply to this database.
	Dialect() security.Dialect

	// BuildDSN constructs a DSN from the loaded configuration.
	BuildDSN(cfg *Config) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// EnforceReadOnly configures the database connection for read-only access.
	EnforceReadOnly(ctx context.Context, db *sql.DB) error

	// ListTablesQuery returns the SQL query and arguments to list all tables.
	ListTablesQuery(databaseName string) (string, []any)

	// ColumnsQuery returns the SQL query and arguments to read column info for a table.
	ColumnsQuery(databaseName, tableName string) (string, []any)

	// ScanColumnRow scans a single row from the columns query result.
	ScanColumnRow(rows *sql.Rows) (security.Column, error)

	// ForeignKeysQuery returns the SQL query and arguments to read the
	// foreign keys of a table.
	ForeignKeysQuery(databaseName, tableName string) (string, []any)

	// RowCountQuery returns the SQL query and arguments to count the rows
	// of a table. tableName must already be whitelisted: it is embedded
	// into the query.
	RowCountQuery(databaseName, tableName string) (string, []any)

	// ScanForeignKeyRow scans a single row from the foreign-keys query result.
	ScanForeignKeyRow(rows *sql.Rows) (security.ForeignKey, error)
}

// adapterFor maps a configured database type to its adapter.
func adapterFor(dbType string) (DBAdapter, bool) {
	switch dbType {
	case "mysql":
		return &MySQLAdapter{}, true
	case "postgres", "postgresql":
		return &PostgresAdapter{}, true
	case "sqlite":
		return &SQLiteAdapter{}, true
	default:
		return nil, false
	}
}

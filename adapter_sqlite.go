package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dbsentry/security"
)

// SQLiteAdapter implements DBAdapter for SQLite databases.
type SQLiteAdapter struct{}

func (a *SQLiteAdapter) DriverName() string { return "sqlite" }
func (a *SQLiteAdapter) ServerName() string { return "sqlite-readonly-mcp-server" }
func (a *SQLiteAdapter) URIScheme() string  { return "sqlite" }

func (a *SQLiteAdapter) Dialect() security.Dialect { return security.SQLite }

func (a *SQLiteAdapter) BuildDSN(cfg *Config) (string, error) {
	// Enforce read-only mode via DSN parameter.
	dbPath := cfg.Path
	if !strings.Contains(dbPath, "?") {
		return dbPath + "?mode=ro", nil
	}
	if !strings.Contains(dbPath, "mode=") {
		return dbPath + "&mode=ro", nil
	}
	return dbPath, nil
}

func (a *SQLiteAdapter) DatabaseName(dsn string) string {
	// DSN is a file path, possibly with ?mode=ro
	path := dsn
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	name = strings.TrimSuffix(name, ".db")
	name = strings.TrimSuffix(name, ".sqlite")
	name = strings.TrimSuffix(name, ".sqlite3")
	return name
}

func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	// Read-only is primarily enforced via ?mode=ro in the DSN.
	// PRAGMA query_only provides defense-in-depth.
	_, err := db.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

func (a *SQLiteAdapter) ListTablesQuery(databaseName string) (string, []any) {
	// SQLite has no information_schema. databaseName is ignored (one DB per file).
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
		nil
}

func (a *SQLiteAdapter) ColumnsQuery(databaseName, tableName string) (string, []any) {
	// PRAGMA table_info cannot use ? placeholders, so we embed the table name safely.
	return fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(tableName, "'", "''")),
		nil
}

func (a *SQLiteAdapter) ScanColumnRow(rows *sql.Rows) (security.Column, error) {
	// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
	var cid int
	var name, colType string
	var notNull, pk int
	var dfltValue sql.NullString

	if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
		return security.Column{}, err
	}

	col := security.Column{
		Name:     name,
		Type:     colType,
		Nullable: notNull == 0,
		Default:  dfltValue.String,
	}
	if pk > 0 {
		col.Key = "PRI"
	}
	return col, nil
}

func (a *SQLiteAdapter) ForeignKeysQuery(databaseName, tableName string) (string, []any) {
	return fmt.Sprintf("PRAGMA foreign_key_list('%s')", strings.ReplaceAll(tableName, "'", "''")),
		nil
}

func (a *SQLiteAdapter) RowCountQuery(databaseName, tableName string) (string, []any) {
	return fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, strings.ReplaceAll(tableName, `"`, `""`)),
		nil
}

func (a *SQLiteAdapter) ScanForeignKeyRow(rows *sql.Rows) (security.ForeignKey, error) {
	// PRAGMA foreign_key_list returns:
	// id, seq, table, from, to, on_update, on_delete, match
	var id, seq int
	var refTable, from string
	var to sql.NullString
	var onUpdate, onDelete, match string

	if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
		return security.ForeignKey{}, err
	}
	return security.ForeignKey{
		Column:           from,
		ReferencedTable:  refTable,
		ReferencedColumn: to.String,
	}, nil
}

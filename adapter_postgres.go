package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"dbsentry/security"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases.
type PostgresAdapter struct{}

func (a *PostgresAdapter) DriverName() string { return "postgres" }
func (a *PostgresAdapter) ServerName() string { return "postgres-readonly-mcp-server" }
func (a *PostgresAdapter) URIScheme() string  { return "postgres" }

func (a *PostgresAdapter) Dialect() security.Dialect { return security.PostgreSQL }

func (a *PostgresAdapter) BuildDSN(cfg *Config) (string, error) {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.PathEscape(cfg.User), url.PathEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode), nil
}

func (a *PostgresAdapter) DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (a *PostgresAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = $1
		ORDER BY table_name`, []any{databaseName}
}

func (a *PostgresAdapter) ColumnsQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = 'public' AND table_name = $2
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *PostgresAdapter) ScanColumnRow(rows *sql.Rows) (security.Column, error) {
	var colName, dataType, isNullable string
	var colDefault sql.NullString

	if err := rows.Scan(&colName, &dataType, &isNullable, &colDefault); err != nil {
		return security.Column{}, err
	}

	return security.Column{
		Name:     colName,
		Type:     dataType,
		Nullable: isNullable == "YES",
		Default:  colDefault.String,
	}, nil
}

func (a *PostgresAdapter) ForeignKeysQuery(databaseName, tableName string) (string, []any) {
	return `SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = 'public' AND tc.table_name = $1`, []any{tableName}
}

func (a *PostgresAdapter) RowCountQuery(databaseName, tableName string) (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", security.SafeQuote(tableName, security.PostgreSQL)),
		nil
}

func (a *PostgresAdapter) ScanForeignKeyRow(rows *sql.Rows) (security.ForeignKey, error) {
	var column, refTable, refColumn string
	if err := rows.Scan(&column, &refTable, &refColumn); err != nil {
		return security.ForeignKey{}, err
	}
	return security.ForeignKey{
		Column:           column,
		ReferencedTable:  refTable,
		ReferencedColumn: refColumn,
	}, nil
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dbsentry/security"
)

// MySQLAdapter implements DBAdapter for MySQL databases.
type MySQLAdapter struct{}

func (a *MySQLAdapter) DriverName() string { return "mysql" }
func (a *MySQLAdapter) ServerName() string { return "mysql-readonly-mcp-server" }
func (a *MySQLAdapter) URIScheme() string  { return "mysql" }

func (a *MySQLAdapter) Dialect() security.Dialect { return security.MySQL }

func (a *MySQLAdapter) BuildDSN(cfg *Config) (string, error) {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Charset), nil
}

func (a *MySQLAdapter) DatabaseName(dsn string) string {
	// DSN format: user:password@tcp(host:port)/dbname?params
	parts := strings.Split(dsn, "/")
	if len(parts) < 2 {
		return ""
	}
	dbPart := parts[len(parts)-1]
	if idx := strings.Index(dbPart, "?"); idx != -1 {
		dbPart = dbPart[:idx]
	}
	return dbPart
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (a *MySQLAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name`,
		[]any{databaseName}
}

func (a *MySQLAdapter) ColumnsQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *MySQLAdapter) ScanColumnRow(rows *sql.Rows) (security.Column, error) {
	var colName, dataType, isNullable, colKey string
	var colDefault, extra sql.NullString

	if err := rows.Scan(&colName, &dataType, &isNullable, &colKey, &colDefault, &extra); err != nil {
		return security.Column{}, err
	}

	return security.Column{
		Name:     colName,
		Type:     dataType,
		Nullable: isNullable == "YES",
		Key:      colKey,
		Default:  colDefault.String,
		Extra:    extra.String,
	}, nil
}

func (a *MySQLAdapter) ForeignKeysQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *MySQLAdapter) RowCountQuery(databaseName, tableName string) (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", security.SafeQuote(tableName, security.MySQL)),
		nil
}

func (a *MySQLAdapter) ScanForeignKeyRow(rows *sql.Rows) (security.ForeignKey, error) {
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

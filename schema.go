package main

import (
	"context"
	"fmt"

	"dbsentry/security"
)

// loadSchemaCache introspects the connected database and replaces the
// schema whitelist snapshot. All I/O happens here; the cache itself only
// consumes the in-memory results.
func (s *MCPServer) loadSchemaCache(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	tables, err := s.listTables(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	return s.schemaCache.Load(tables,
		func(table string) ([]security.Column, error) {
			return s.readColumns(loadCtx, table)
		},
		func(table string) ([]security.ForeignKey, error) {
			return s.readForeignKeys(loadCtx, table)
		},
		func(table string) (int64, error) {
			return s.readRowCount(loadCtx, table)
		})
}

func (s *MCPServer) listTables(ctx context.Context) ([]string, error) {
	query, args := s.adapter.ListTablesQuery(s.databaseName)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *MCPServer) readRowCount(ctx context.Context, table string) (int64, error) {
	query, args := s.adapter.RowCountQuery(s.databaseName, table)
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *MCPServer) readColumns(ctx context.Context, table string) ([]security.Column, error) {
	query, args := s.adapter.ColumnsQuery(s.databaseName, table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []security.Column
	for rows.Next() {
		col, err := s.adapter.ScanColumnRow(rows)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (s *MCPServer) readForeignKeys(ctx context.Context, table string) ([]security.ForeignKey, error) {
	query, args := s.adapter.ForeignKeysQuery(s.databaseName, table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []security.ForeignKey
	for rows.Next() {
		fk, err := s.adapter.ScanForeignKeyRow(rows)
		if err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

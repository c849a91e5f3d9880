package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dbsentry/security"
)

// Text report generators over the cached schema snapshot. These render
// whatever the database reported; they never touch the live connection.

// generateSchemaMermaid renders the snapshot as a Mermaid ERD.
func generateSchemaMermaid(cache *security.SchemaCache) (string, error) {
	if !cache.Loaded() {
		return "", fmt.Errorf("schema cache is not loaded")
	}

	snapshot := cache.Snapshot()
	tables := sortedTableNames(snapshot)

	lines := []string{"erDiagram"}
	for _, table := range tables {
		lines = append(lines, fmt.Sprintf("    %s {", table))
		for _, col := range snapshot[table].Columns {
			entry := fmt.Sprintf("        %s %s", mermaidType(col.Type), col.Name)
			switch col.Key {
			case "PRI":
				entry += " PK"
			case "UNI":
				entry += " UK"
			case "MUL":
				entry += " FK"
			}
			if !col.Nullable {
				entry += " \"NOT NULL\""
			}
			lines = append(lines, entry)
		}
		lines = append(lines, "    }")
	}

	for _, table := range tables {
		for _, fk := range snapshot[table].ForeignKeys {
			lines = append(lines, fmt.Sprintf("    %s ||--o{ %s : has", fk.ReferencedTable, table))
		}
	}

	return strings.Join(lines, "\n"), nil
}

// generateTablesSummary renders a Markdown overview of every table with
// row counts, column counts and foreign-key fan-out.
func generateTablesSummary(cache *security.SchemaCache) (string, error) {
	if !cache.Loaded() {
		return "", fmt.Errorf("schema cache is not loaded")
	}

	snapshot := cache.Snapshot()
	tables := sortedTableNames(snapshot)

	var b strings.Builder
	b.WriteString("# Tables\n\n")
	b.WriteString("| Table | Rows | Columns | Foreign Keys |\n")
	b.WriteString("| --- | --- | --- | --- |\n")

	var totalRows int64
	totalColumns := 0
	totalFKs := 0
	for _, table := range tables {
		schema := snapshot[table]
		fmt.Fprintf(&b, "| `%s` | %s | %d | %d |\n",
			table, rowCountCell(schema.RowCount), len(schema.Columns), len(schema.ForeignKeys))
		if schema.RowCount >= 0 {
			totalRows += schema.RowCount
		}
		totalColumns += len(schema.Columns)
		totalFKs += len(schema.ForeignKeys)
	}

	fmt.Fprintf(&b, "\n**%d tables, %d rows, %d columns, %d foreign keys**\n",
		len(tables), totalRows, totalColumns, totalFKs)
	return b.String(), nil
}

// rowCountCell renders a row count, with -1 meaning the count is unknown.
func rowCountCell(n int64) string {
	if n < 0 {
		return "?"
	}
	return strconv.FormatInt(n, 10)
}

// mermaidType squeezes a SQL type into a single Mermaid-safe token.
func mermaidType(sqlType string) string {
	t := strings.ToLower(sqlType)
	if idx := strings.IndexAny(t, " ("); idx != -1 {
		t = t[:idx]
	}
	if t == "" {
		return "unknown"
	}
	return t
}

func sortedTableNames(snapshot map[string]security.TableSchema) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

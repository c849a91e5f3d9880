package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dbsentry/security"
)

func (s *MCPServer) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	s.initialized = true

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    s.adapter.ServerName(),
			Version: ServerVersion,
		},
	}, nil
}

func (s *MCPServer) handleListTools() (*ListToolsResult, *Error) {
	noArgs := InputSchema{Type: "object", Properties: map[string]Property{}, Required: []string{}}

	return &ListToolsResult{
		Tools: []Tool{
			{
				Name:        "query",
				Description: "Execute a read-only SQL query (single SELECT statement only)",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"sql": {
							Type:        "string",
							Description: "The SELECT query to execute",
						},
					},
					Required: []string{"sql"},
				},
			},
			{
				Name:        "get_schema",
				Description: "Return tables, columns and foreign keys of the connected database",
				InputSchema: noArgs,
			},
			{
				Name:        "get_sample_data",
				Description: "Return a few rows from a whitelisted table",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table": {
							Type:        "string",
							Description: "Table name (must exist in the schema whitelist)",
						},
						"limit": {
							Type:        "number",
							Description: "Maximum number of rows to return",
						},
					},
					Required: []string{"table"},
				},
			},
			{
				Name:        "schema_mermaid",
				Description: "Render the database schema as a Mermaid ERD diagram",
				InputSchema: noArgs,
			},
			{
				Name:        "tables_summary",
				Description: "Render a Markdown summary of all tables",
				InputSchema: noArgs,
			},
			{
				Name:        "refresh_schema",
				Description: "Invalidate and reload the schema whitelist cache",
				InputSchema: noArgs,
			},
		},
	}, nil
}

func (s *MCPServer) handleCallTool(params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	switch callParams.Name {
	case "query":
		return s.executeQuery(callParams.Arguments)
	case "get_schema":
		return s.getSchema()
	case "get_sample_data":
		return s.getSampleData(callParams.Arguments)
	case "schema_mermaid":
		return s.schemaMermaid()
	case "tables_summary":
		return s.tablesSummary()
	case "refresh_schema":
		return s.refreshSchema()
	default:
		return nil, &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
		}
	}
}

func toolError(format string, args ...any) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolText(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

func (s *MCPServer) executeQuery(args map[string]any) (*CallToolResult, *Error) {
	sqlQuery, ok := args["sql"].(string)
	if !ok || sqlQuery == "" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Missing or invalid 'sql' parameter",
		}
	}

	// The one gate between user input and the database.
	if err := s.validator.ValidateQuery(sqlQuery, s.adapter.Dialect()); err != nil {
		s.logger.Info("query rejected",
			zap.String("kind", string(security.KindOf(err))),
			zap.Error(err))
		return toolError("Query rejected: %v", err), nil
	}

	return s.runSelect(sqlQuery)
}

// runSelect executes an already-validated SELECT and formats the rows as JSON.
func (s *MCPServer) runSelect(sqlQuery string) (*CallToolResult, *Error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return toolError("Query error: %v", err), nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return toolError("Failed to get columns: %v", err), nil
	}

	var results []map[string]any
	rowCount := 0
	for rows.Next() {
		if rowCount >= s.cfg.MaxRows {
			results = append(results, map[string]any{
				"_warning": fmt.Sprintf("Result truncated at %d rows", s.cfg.MaxRows),
			})
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return toolError("Failed to scan row %d: %v", rowCount+1, err), nil
		}

		row := make(map[string]any)
		for i, col := range columns {
			val := values[i]
			// Convert []byte to string for JSON serialization
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
		rowCount++
	}

	if err := rows.Err(); err != nil {
		return toolError("Row iteration error: %v", err), nil
	}

	resultJSON, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return toolError("Failed to marshal results: %v", err), nil
	}

	return toolText(string(resultJSON)), nil
}

func (s *MCPServer) getSchema() (*CallToolResult, *Error) {
	if !s.schemaCache.Loaded() {
		if err := s.loadSchemaCache(s.ctx); err != nil {
			return toolError("Failed to load schema: %v", err), nil
		}
	}

	schemaJSON, err := json.MarshalIndent(s.schemaCache.Snapshot(), "", "  ")
	if err != nil {
		return toolError("Failed to marshal schema: %v", err), nil
	}
	return toolText(string(schemaJSON)), nil
}

func (s *MCPServer) getSampleData(args map[string]any) (*CallToolResult, *Error) {
	table, ok := args["table"].(string)
	if !ok || table == "" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Missing or invalid 'table' parameter",
		}
	}

	limit := s.cfg.SampleLimit
	if raw, ok := args["limit"].(float64); ok {
		limit = int(raw)
	}
	if limit < 1 || limit > s.cfg.MaxRows {
		return toolError("limit must be between 1 and %d", s.cfg.MaxRows), nil
	}

	// The table name is interpolated into generated SQL, so it goes
	// through the whitelist and the structural identifier checks first.
	if err := s.schemaCache.ValidateTable(table); err != nil {
		s.logger.Info("table rejected",
			zap.String("kind", string(security.KindOf(err))),
			zap.Error(err))
		return toolError("Table rejected: %v", err), nil
	}

	quoted := security.SafeQuote(table, s.adapter.Dialect())
	return s.runSelect(fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoted, limit))
}

func (s *MCPServer) schemaMermaid() (*CallToolResult, *Error) {
	diagram, err := generateSchemaMermaid(s.schemaCache)
	if err != nil {
		return toolError("Failed to generate diagram: %v", err), nil
	}
	return toolText(diagram), nil
}

func (s *MCPServer) tablesSummary() (*CallToolResult, *Error) {
	summary, err := generateTablesSummary(s.schemaCache)
	if err != nil {
		return toolError("Failed to generate summary: %v", err), nil
	}
	return toolText(summary), nil
}

func (s *MCPServer) refreshSchema() (*CallToolResult, *Error) {
	s.schemaCache.Invalidate()
	if err := s.loadSchemaCache(s.ctx); err != nil {
		return toolError("Failed to reload schema: %v", err), nil
	}
	return toolText(fmt.Sprintf("Schema cache reloaded: %d tables", len(s.schemaCache.Tables()))), nil
}

func (s *MCPServer) handleListResources() (*ListResourcesResult, *Error) {
	resources := []Resource{}
	for _, table := range s.schemaCache.Tables() {
		resources = append(resources, Resource{
			URI:      fmt.Sprintf("%s://%s/%s/schema", s.adapter.URIScheme(), s.databaseName, table),
			Name:     fmt.Sprintf("Schema for table '%s'", table),
			MimeType: "application/json",
		})
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *MCPServer) handleReadResource(params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	uri := readParams.URI
	prefix := s.adapter.URIScheme() + "://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI: must start with %s", prefix),
		}
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) < 3 || parts[2] != "schema" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI format: expected %sdbname/tablename/schema", prefix),
		}
	}
	tableName := parts[1]

	schema, ok := s.schemaCache.Snapshot()[tableName]
	if !ok {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Unknown table: %s", tableName),
		}
	}

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to marshal schema: %v", err),
		}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{
			{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(schemaJSON),
			},
		},
	}, nil
}

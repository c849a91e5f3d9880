package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dbsentry/security"
)

// newTestServer builds a server with a loaded schema cache but no database
// connection. Only handlers that never reach the connection are exercised.
func newTestServer(t *testing.T) *MCPServer {
	t.Helper()

	logger := zap.NewNop()
	return &MCPServer{
		adapter:      &MySQLAdapter{},
		cfg:          &Config{MaxRows: 100, SampleLimit: 5},
		logger:       logger,
		validator:    security.NewValidator(security.Strict, logger),
		schemaCache:  newReportCache(t),
		databaseName: "shop",
		ctx:          context.Background(),
	}
}

func TestHandleInitialize(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.handleInitialize(json.RawMessage(`{"protocolVersion":"2024-11-05"}`))
	require.Nil(t, rpcErr)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "mysql-readonly-mcp-server", result.ServerInfo.Name)
	assert.True(t, s.initialized)
}

func TestHandleListTools(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.handleListTools()
	require.Nil(t, rpcErr)

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"query", "get_schema", "get_sample_data",
		"schema_mermaid", "tables_summary", "refresh_schema",
	}, names)
}

func TestHandleCallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)

	_, rpcErr := s.handleCallTool(json.RawMessage(`{"name":"drop_everything"}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, MethodNotFound, rpcErr.Code)
}

func TestExecuteQuery_RejectsBeforeTouchingDatabase(t *testing.T) {
	s := newTestServer(t)

	// s.db is nil: a rejected query must never reach it.
	result, rpcErr := s.executeQuery(map[string]any{"sql": "DROP TABLE users"})
	require.Nil(t, rpcErr)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Query rejected")
	assert.Contains(t, result.Content[0].Text, "FORBIDDEN_VERB")
}

func TestExecuteQuery_MissingSQL(t *testing.T) {
	s := newTestServer(t)

	_, rpcErr := s.executeQuery(map[string]any{})
	require.NotNil(t, rpcErr)
	assert.Equal(t, InvalidParams, rpcErr.Code)
}

func TestGetSampleData_RejectsUnknownTable(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.getSampleData(map[string]any{"table": "secrets"})
	require.Nil(t, rpcErr)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Table rejected")
}

func TestGetSampleData_LimitBounds(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.getSampleData(map[string]any{"table": "users", "limit": float64(0)})
	require.Nil(t, rpcErr)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "limit must be between 1 and 100")

	result, rpcErr = s.getSampleData(map[string]any{"table": "users", "limit": float64(101)})
	require.Nil(t, rpcErr)
	require.True(t, result.IsError)
}

func TestGetSchema_FromLoadedCache(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.getSchema()
	require.Nil(t, rpcErr)
	require.False(t, result.IsError)

	var snapshot map[string]security.TableSchema
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &snapshot))
	assert.Len(t, snapshot, 2)
	assert.Len(t, snapshot["users"].Columns, 3)
	assert.Equal(t, "users", snapshot["orders"].ForeignKeys[0].ReferencedTable)
}

func TestSchemaMermaidTool(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.schemaMermaid()
	require.Nil(t, rpcErr)
	require.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "erDiagram")
}

func TestTablesSummaryTool(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.tablesSummary()
	require.Nil(t, rpcErr)
	require.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "| `orders` | 7 | 2 | 1 |")
}

func TestHandleListResources(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.handleListResources()
	require.Nil(t, rpcErr)
	require.Len(t, result.Resources, 2)

	uris := []string{result.Resources[0].URI, result.Resources[1].URI}
	assert.Contains(t, uris, "mysql://shop/users/schema")
	assert.Contains(t, uris, "mysql://shop/orders/schema")
}

func TestHandleReadResource(t *testing.T) {
	s := newTestServer(t)

	result, rpcErr := s.handleReadResource(json.RawMessage(`{"uri":"mysql://shop/users/schema"}`))
	require.Nil(t, rpcErr)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MimeType)

	var schema security.TableSchema
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &schema))
	assert.Len(t, schema.Columns, 3)
}

func TestHandleReadResource_InvalidURI(t *testing.T) {
	s := newTestServer(t)

	tests := []string{
		`{"uri":"postgres://shop/users/schema"}`,
		`{"uri":"mysql://shop/users"}`,
		`{"uri":"mysql://shop/missing/schema"}`,
	}
	for _, params := range tests {
		_, rpcErr := s.handleReadResource(json.RawMessage(params))
		require.NotNil(t, rpcErr)
		assert.Equal(t, InvalidParams, rpcErr.Code)
	}
}

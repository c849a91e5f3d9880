package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"dbsentry/security"
)

const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
)

// MCPServer handles MCP protocol over stdio. It owns one database
// connection and the schema whitelist cache bound to it.
type MCPServer struct {
	db           *sql.DB
	adapter      DBAdapter
	cfg          *Config
	logger       *zap.Logger
	validator    *security.Validator
	schemaCache  *security.SchemaCache
	databaseName string
	initialized  bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewMCPServer connects to the database through the adapter, enforces
// read-only mode and loads the schema whitelist cache.
func NewMCPServer(ctx context.Context, adapter DBAdapter, cfg *Config, logger *zap.Logger) (*MCPServer, error) {
	dsn, err := adapter.BuildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}

	db, err := sql.Open(adapter.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, pingCancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := adapter.EnforceReadOnly(ctx, db); err != nil {
		logger.Warn("could not set read-only mode", zap.Error(err))
	}

	validator := security.NewValidator(security.Strict, logger)
	serverCtx, serverCancel := context.WithCancel(ctx)

	s := &MCPServer{
		db:           db,
		adapter:      adapter,
		cfg:          cfg,
		logger:       logger,
		validator:    validator,
		schemaCache:  security.NewSchemaCache(validator, logger),
		databaseName: adapter.DatabaseName(dsn),
		ctx:          serverCtx,
		cancel:       serverCancel,
	}

	if err := s.loadSchemaCache(ctx); err != nil {
		logger.Warn("initial schema cache load failed", zap.Error(err))
	}

	return s, nil
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *MCPServer) Run() error {
	reader := bufio.NewReader(os.Stdin)

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		response := s.handleMessage([]byte(line))
		if response != nil {
			responseBytes, err := json.Marshal(response)
			if err != nil {
				s.logger.Error("failed to marshal response", zap.Error(err))
				continue
			}
			fmt.Println(string(responseBytes))
		}
	}
}

func (s *MCPServer) handleMessage(data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &Error{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	return s.handleRequest(&req)
}

func (s *MCPServer) handleRequest(req *JSONRPCRequest) *JSONRPCResponse {
	var result any
	var err *Error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized":
		// Notification, no response needed
		return nil
	case "tools/list":
		result, err = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(req.Params)
	case "resources/list":
		result, err = s.handleListResources()
	case "resources/read":
		result, err = s.handleReadResource(req.Params)
	case "ping":
		result = map[string]any{}
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   err,
	}
}

// Shutdown gracefully shuts down the server
func (s *MCPServer) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Close releases all resources. The schema cache dies with the connection.
func (s *MCPServer) Close() error {
	s.Shutdown()
	s.schemaCache.Invalidate()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	var dbType string
	var debug bool

	rootCmd := &cobra.Command{
		Use:          "dbsentry",
		Short:        "Read-only database MCP server with SQL security validation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dbType, debug)
		},
	}
	rootCmd.Flags().StringVar(&dbType, "db-type", "", "database type: mysql, postgres or sqlite (overrides MCP_DB_TYPE)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(dbType string, debug bool) error {
	if dbType != "" {
		os.Setenv("MCP_DB_TYPE", dbType)
	}

	logger, err := newLogger(debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		return err
	}

	adapter, ok := adapterFor(cfg.DBType)
	if !ok {
		err := fmt.Errorf("unsupported database type: %s", cfg.DBType)
		logger.Error("configuration error", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	server, err := NewMCPServer(ctx, adapter, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return err
	}
	defer server.Close()

	logger.Info("server started in read-only mode",
		zap.String("server", adapter.ServerName()),
		zap.String("database", server.databaseName))

	if err := server.Run(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("server shutdown gracefully")
			return nil
		}
		logger.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

// newLogger builds a stderr-only logger: stdout carries the MCP protocol.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

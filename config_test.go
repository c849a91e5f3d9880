package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_SQLite(t *testing.T) {
	t.Setenv("MCP_DB_TYPE", "sqlite")
	t.Setenv("MCP_SQLITE_PATH", "/data/shop.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, "/data/shop.db", cfg.Path)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10000, cfg.MaxRows)
	assert.Equal(t, 5, cfg.SampleLimit)
}

func TestLoadConfig_MySQLDefaults(t *testing.T) {
	t.Setenv("MCP_DB_TYPE", "mysql")
	t.Setenv("MCP_MYSQL_HOST", "localhost")
	t.Setenv("MCP_MYSQL_USER", "reader")
	t.Setenv("MCP_MYSQL_PASSWORD", "secret")
	t.Setenv("MCP_MYSQL_DB", "shop")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "utf8mb4", cfg.Charset)
}

func TestLoadConfig_PostgresAliases(t *testing.T) {
	t.Setenv("MCP_DB_TYPE", "postgresql")
	t.Setenv("MCP_PG_HOST", "db.internal")
	t.Setenv("MCP_PG_USER", "reader")
	t.Setenv("MCP_PG_PASSWORD", "secret")
	t.Setenv("MCP_PG_DB", "shop")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "prefer", cfg.SSLMode)
}

func TestLoadConfig_MissingVars(t *testing.T) {
	t.Setenv("MCP_DB_TYPE", "mysql")
	t.Setenv("MCP_MYSQL_HOST", "localhost")
	t.Setenv("MCP_MYSQL_USER", "")
	t.Setenv("MCP_MYSQL_PASSWORD", "")
	t.Setenv("MCP_MYSQL_DB", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_MYSQL_DB")
	assert.Contains(t, err.Error(), "MCP_MYSQL_PASSWORD")
	assert.Contains(t, err.Error(), "MCP_MYSQL_USER")
	assert.NotContains(t, err.Error(), "MCP_MYSQL_HOST")
}

func TestLoadConfig_UnsupportedType(t *testing.T) {
	t.Setenv("MCP_DB_TYPE", "oracle")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

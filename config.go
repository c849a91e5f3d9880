package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything read from MCP_* environment variables.
type Config struct {
	DBType string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // PostgreSQL only
	Charset  string // MySQL only
	Path     string // SQLite only

	QueryTimeout time.Duration
	MaxRows      int
	SampleLimit  int
}

// LoadConfig reads the environment. Required connection variables that are
// missing are reported all at once.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MCP")
	v.AutomaticEnv()

	v.SetDefault("db_type", "mysql")
	v.SetDefault("query_timeout", "30s")
	v.SetDefault("max_rows", 10000)
	v.SetDefault("sample_limit", 5)

	cfg := &Config{
		DBType:       strings.ToLower(v.GetString("db_type")),
		QueryTimeout: v.GetDuration("query_timeout"),
		MaxRows:      v.GetInt("max_rows"),
		SampleLimit:  v.GetInt("sample_limit"),
	}

	var missing []string
	switch cfg.DBType {
	case "mysql":
		v.SetDefault("mysql_port", 3306)
		v.SetDefault("mysql_charset", "utf8mb4")
		cfg.Host = v.GetString("mysql_host")
		cfg.Port = v.GetInt("mysql_port")
		cfg.User = v.GetString("mysql_user")
		cfg.Password = v.GetString("mysql_password")
		cfg.Database = v.GetString("mysql_db")
		cfg.Charset = v.GetString("mysql_charset")
		missing = requireVars(map[string]string{
			"MCP_MYSQL_HOST":     cfg.Host,
			"MCP_MYSQL_USER":     cfg.User,
			"MCP_MYSQL_PASSWORD": cfg.Password,
			"MCP_MYSQL_DB":       cfg.Database,
		})
	case "postgres", "postgresql":
		cfg.DBType = "postgres"
		v.SetDefault("pg_port", 5432)
		v.SetDefault("pg_sslmode", "prefer")
		cfg.Host = v.GetString("pg_host")
		cfg.Port = v.GetInt("pg_port")
		cfg.User = v.GetString("pg_user")
		cfg.Password = v.GetString("pg_password")
		cfg.Database = v.GetString("pg_db")
		cfg.SSLMode = v.GetString("pg_sslmode")
		missing = requireVars(map[string]string{
			"MCP_PG_HOST":     cfg.Host,
			"MCP_PG_USER":     cfg.User,
			"MCP_PG_PASSWORD": cfg.Password,
			"MCP_PG_DB":       cfg.Database,
		})
	case "sqlite":
		cfg.Path = v.GetString("sqlite_path")
		missing = requireVars(map[string]string{
			"MCP_SQLITE_PATH": cfg.Path,
		})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	return cfg, nil
}

func requireVars(vars map[string]string) []string {
	var missing []string
	for name, value := range vars {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

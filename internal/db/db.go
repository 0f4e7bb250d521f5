package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const defaultDBName = "taskboard.db"

// Dialect names the SQL flavour of an open connection.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

type Config struct {
	Driver string
	// Path is the SQLite file. Empty means <workspace>/.taskboard/taskboard.db.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// DefaultPath returns the SQLite path used when none is configured.
func DefaultPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskboard", defaultDBName)
}

// Open opens the configured database. SQLite runs with foreign keys on and a
// single connection so that writers never race each other.
func Open(cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	switch dialect {
	case Postgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, "", fmt.Errorf("database.dsn is required for postgres")
		}
		conn, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("ping postgres: %w", err)
		}
		return conn, Postgres, nil
	default:
		path := cfg.Path
		if path == "" {
			path = DefaultPath(".")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, "", err
		}
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, "", err
		}
		conn.SetMaxOpenConns(1)
		return conn, SQLite, nil
	}
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"factcheck/backend/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Open connects to DATABASE_URL. Local files go through the embedded sqlite
// driver; libsql:// and http(s) URLs go to a remote libsql server.
func Open(cfg config.Config) (*sql.DB, error) {
	driver, dsn, err := buildDSN(cfg.DatabaseURL, cfg.DatabaseAuthToken)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection keeps :memory: databases coherent.
		database.SetMaxOpenConns(1)
	}

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return database, nil
}

func buildDSN(rawURL, authToken string) (driver, dsn string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	if strings.HasPrefix(rawURL, "file:") || rawURL == ":memory:" {
		return "sqlite", rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}
	switch parsed.Scheme {
	case "libsql", "http", "https", "ws", "wss":
	default:
		return "", "", fmt.Errorf("unsupported database url scheme %q", parsed.Scheme)
	}

	if parsed.Scheme == "libsql" {
		query := parsed.Query()
		if query.Get("authToken") == "" && strings.TrimSpace(authToken) != "" {
			query.Set("authToken", strings.TrimSpace(authToken))
			parsed.RawQuery = query.Encode()
		}
	}
	return "libsql", parsed.String(), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS checks (
  id TEXT PRIMARY KEY,
  content_type TEXT NOT NULL,
  input_excerpt TEXT NOT NULL,
  outcome TEXT NOT NULL,
  error_message TEXT NOT NULL DEFAULT '',
  reliability_score INTEGER,
  verdict_json TEXT,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_created_at ON checks (created_at DESC);
`

// Migrate creates the tables the service needs. It is idempotent.
func Migrate(ctx context.Context, database *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

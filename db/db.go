package db

import (
	"context"
	"database/sql"
	"fmt"
	"go-ledger/config"
	"go-ledger/logger"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

func connString(cfg config.DatabaseConfig, withPassword bool) string {
	connStr := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.SSLMode)
	if withPassword && cfg.Password != "" {
		connStr += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if cfg.Schema != "" {
		connStr += fmt.Sprintf(" search_path=%s", cfg.Schema)
	}
	return connStr
}

// WithSearchPath returns connStr with search_path set to schema. Both the
// URL and the key=value forms accepted by lib/pq are handled.
func WithSearchPath(connStr, schema string) (string, error) {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return "", fmt.Errorf("invalid connection URL: %w", err)
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimSpace(connStr + " search_path=" + schema), nil
}

// EnsureSchema creates schema when it does not exist yet.
func EnsureSchema(ctx context.Context, database *sql.DB, schema string) error {
	if _, err := database.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}

// Connect opens a pooled PostgreSQL handle and verifies it with a ping.
func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	logger.Log.WithField("connection", connString(cfg, false)).Info("Attempting to connect to the database")

	db, err := sql.Open("postgres", connString(cfg, true))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to open database connection")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err = db.Ping(); err != nil {
		logger.Log.WithError(err).Error("Failed to ping database")
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Schema != "" {
		if err := EnsureSchema(context.Background(), db, cfg.Schema); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Log.Info("Database connection established successfully")
	return db, nil
}

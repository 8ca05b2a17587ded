package repository

import (
	"context"
	"database/sql"
)

// Querier is the read surface shared by *sql.DB and *sql.Tx, so lookups can
// run either standalone or inside a caller's transaction snapshot.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Package store implements the Postgres-backed persistence layer for every
// entity in the data model: agents, metric series, metric points (split
// across an integer and a real physical table), log entries, and commands.
// Queries are hand-written SQL issued directly through pgx — there is no
// ORM layer and no code generator; this mirrors the direct-pgx idiom the
// rest of the fleet-management stack uses for its own stores.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every store method
// works unmodified inside or outside an explicit transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// psql builds PostgreSQL statements with dollar placeholders for every repository.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier lets child rows (requests, checklist items) load through the pool or inside
// the transaction that holds the task lock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

package db

import (
	"context"
	"database/sql"
)

// DBTX は *sql.DB / *sql.Tx の共通部分。
// 各ストアは個別コミットのクエリ単位でこれを使う。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// DBTX は *pgxpool.Pool と pgx.Tx が満たすクエリ実行インターフェース
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// classify は SQL エラーとそれ以外（接続断・タイムアウト）を区別する。
// サーバーが返したエラーはそのまま包み、到達できない場合は StoreUnavailableError にする。
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return &rag.StoreUnavailableError{Op: op, Err: err}
}

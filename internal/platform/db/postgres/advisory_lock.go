package postgres

import (
	"context"
	"fmt"
)

// AdvisoryLocker は pg_advisory_xact_lock で期間ごとの書き込みを直列化します。
// ロックはトランザクション終了時に解放されるため、fn は同じトランザクション内で実行されます。
type AdvisoryLocker struct {
	tx   *TransactionManager
	pool Queryer
}

// NewAdvisoryLocker は AdvisoryLocker を生成します。
func NewAdvisoryLocker(tx *TransactionManager, pool Queryer) *AdvisoryLocker {
	return &AdvisoryLocker{tx: tx, pool: pool}
}

// WithPeriodLock は key のアドバイザリロックを取得してから fn を実行します。
func (l *AdvisoryLocker) WithPeriodLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return l.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		exec := QueryerFromContext(txCtx, l.pool)
		if _, err := exec.Exec(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("postgres: advisory lock %s: %w", key, err)
		}
		return fn(txCtx)
	})
}

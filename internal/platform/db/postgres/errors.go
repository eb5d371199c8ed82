package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL のエラーコードです。
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
)

// ErrorCode は err に含まれる PostgreSQL のエラーコードと制約名を返します。
func ErrorCode(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	return pgErr.Code, pgErr.ConstraintName, true
}

// IsConcurrencyConflict は直列化失敗・デッドロック・ロック取得失敗のいずれかであれば true を返します。
func IsConcurrencyConflict(err error) bool {
	code, _, ok := ErrorCode(err)
	if !ok {
		return false
	}
	switch code {
	case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
		return true
	default:
		return false
	}
}

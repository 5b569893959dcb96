package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound は更新・削除の対象行が存在しないことを表すセンチネルエラー。
var ErrNotFound = errors.New("record not found")

// PostgreSQLのエラーコード
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqSerializationFail   = "40001"
	pqDeadlockDetected    = "40P01"
	pqLockNotAvailable    = "55P03"
)

// IsUniqueViolation は一意制約違反かどうかを判定する。
// サービス層で「既に存在します」系のエラーに変換するために使用する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

// IsForeignKeyViolation は外部キー制約違反かどうかを判定する。
// サービス層で「関連データが存在します」系のエラーに変換するために使用する。
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation
}

// IsTxContention は直列化失敗・デッドロック・ロック待ちタイムアウトかどうかを判定する。
// user.updatedの原子的更新はリトライせず、そのまま失敗として呼び出し元に返す。
func IsTxContention(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case pqSerializationFail, pqDeadlockDetected, pqLockNotAvailable:
		return true
	default:
		return false
	}
}

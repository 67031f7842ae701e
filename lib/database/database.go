package database

import (
	"errors"
	"strings"

	"github.com/getevo/evo/v2/lib/db"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL server error numbers the services react to.
const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlRowIsReferenced  = 1451
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// TxFunc runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxFunc func(fn func(tx *gorm.DB) error) error

// Default runs transactions on the application connection pool.
func Default() TxFunc {
	return func(fn func(tx *gorm.DB) error) error {
		return db.Transaction(fn)
	}
}

// From wraps an explicit gorm handle, used by tests and tools.
func From(conn *gorm.DB) TxFunc {
	return func(fn func(tx *gorm.DB) error) error {
		return conn.Transaction(fn)
	}
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKey reports unique constraint violations across drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	var msg = strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}

// IsForeignKeyViolation reports writes referencing a row that does not exist.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoReferencedRow || myErr.Number == mysqlRowIsReferenced
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// IsRetryable reports lock contention that is safe to retry as a whole transaction.
func IsRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlockDetected || myErr.Number == mysqlLockWaitTimeout
	}
	return false
}

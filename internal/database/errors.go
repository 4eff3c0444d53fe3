package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL server error numbers raised by the ledger schema
const (
	mysqlErrDupEntry        = 1062
	mysqlErrNoReferencedRow = 1452
	mysqlErrRowIsReferenced = 1451
	mysqlErrCheckViolated   = 3819
	mysqlErrSignal          = 1644
)

// IsUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint on either supported driver.
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDupEntry
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// IsConstraintViolation reports whether err was raised by any storage-level
// guard: unique, foreign key, check constraint or a guard trigger.
func IsConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDupEntry, mysqlErrNoReferencedRow, mysqlErrRowIsReferenced,
			mysqlErrCheckViolated, mysqlErrSignal:
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// extended result codes keep the primary code in the low byte
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

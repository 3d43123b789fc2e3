// Package sqlerr converts relational driver errors into the errs taxonomy.
//
// It understands the two drivers the repository opens: modernc.org/sqlite
// (extended result codes) and go-sql-driver/mysql (server error numbers).
// Integrity failures become *errs.ConstraintViolation; broken connections,
// busy databases and timeouts become *errs.BackendUnavailable.  A caller's
// own cancellation and sql.ErrNoRows pass through unchanged so callers can
// still match them directly.
package sqlerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iliyamo/moviestore/internal/errs"
)

// Constraint names reported in errs.ConstraintViolation.
const (
	Unique     = "unique"
	ForeignKey = "foreign_key"
	NotNull    = "not_null"
	Check      = "check"
	Other      = "other"
)

// Translate maps err from operation op.  It returns nil for nil.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, errs.ErrConstraint) || errors.Is(err, errs.ErrUnavailable) || errors.Is(err, errs.ErrValidation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return errs.Unavailable(errs.BackendRelational, op, err)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		return fromSQLite(op, se.Code(), err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return fromMySQL(op, me.Number, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return errs.Unavailable(errs.BackendRelational, op, err)
	}
	return err
}

func fromSQLite(op string, code int, err error) error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return violation(op, Unique, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return violation(op, ForeignKey, err)
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return violation(op, NotNull, err)
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return violation(op, Check, err)
	}
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return violation(op, Other, err)
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
		return errs.Unavailable(errs.BackendRelational, op, err)
	}
	return err
}

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
	mysqlBadNull         = 1048
	mysqlCheckViolated   = 3819
	mysqlLockWait        = 1205
	mysqlTooManyConns    = 1040
	mysqlServerShutdown  = 1053
)

func fromMySQL(op string, number uint16, err error) error {
	switch number {
	case mysqlDupEntry:
		return violation(op, Unique, err)
	case mysqlRowIsReferenced, mysqlNoReferencedRow:
		return violation(op, ForeignKey, err)
	case mysqlBadNull:
		return violation(op, NotNull, err)
	case mysqlCheckViolated:
		return violation(op, Check, err)
	case mysqlLockWait, mysqlTooManyConns, mysqlServerShutdown:
		return errs.Unavailable(errs.BackendRelational, op, err)
	}
	return err
}

func violation(op, constraint string, err error) error {
	return &errs.ConstraintViolation{Backend: errs.BackendRelational, Op: op, Constraint: constraint, Err: err}
}

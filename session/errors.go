package session

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/nazmi/sqlmodel/internal/errs"
)

var (
	// ErrNotFound is returned when a row is not found
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")

	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session is closed")
)

// ConvertDBError maps driver errors of postgres (pgx), sqlite and mysql to
// the constraint errors above. Unknown errors are returned unchanged.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return fmt.Errorf("%w: %s", ErrUniqueViolation, myErr.Message)
		case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, myErr.Message)
		case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
			return fmt.Errorf("%w: %s", ErrCheckViolation, myErr.Message)
		case 1048: // ER_BAD_NULL_ERROR
			return fmt.Errorf("%w: %s", ErrNotNullViolation, myErr.Message)
		}
	}
	return err
}

// storageError wraps a database error with the statement subject.
func storageError(model, msg string, err error) error {
	return &errs.Error{Kind: errs.KindStorage, Model: model, Message: msg, Cause: ConvertDBError(err)}
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

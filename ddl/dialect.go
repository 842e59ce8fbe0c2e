// Package ddl renders mapping tables as dialect-specific CREATE and DROP
// statements, and knows the SQL flavors the session can talk to.
package ddl

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

// Dialect is the per-database part of statement rendering.
type Dialect interface {
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the bind parameter for the 1-based position n.
	Placeholder(n int) string
	// ColumnType renders a column type.
	ColumnType(t mapping.SQLType) string
	// IdentityColumn renders an autoincrement column: its type and any
	// trailing clause.
	IdentityColumn(t mapping.SQLType) (typ, clause string)
	// NamedEnums reports whether enum types are created with CREATE TYPE.
	NamedEnums() bool
	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool
	// IndexIfNotExists reports whether CREATE INDEX accepts IF NOT EXISTS.
	IndexIfNotExists() bool
}

// Names accepted by Lookup.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MySQL    = "mysql"
)

// Lookup returns the dialect for a driver or dialect name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres, "postgresql", "pgx":
		return postgres{}, nil
	case SQLite, "sqlite3":
		return sqlite{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	}
	return nil, errs.Newf(errs.KindConfiguration, "unknown SQL dialect %q", name)
}

// DialectOf picks the dialect matching the driver behind db.
func DialectOf(db *sql.DB) (Dialect, error) {
	switch d := db.Driver().(type) {
	case *sqlite3.SQLiteDriver:
		return sqlite{}, nil
	case *stdlib.Driver:
		return postgres{}, nil
	case *mysql.MySQLDriver:
		return mysqlDialect{}, nil
	default:
		return nil, errs.Newf(errs.KindConfiguration, "cannot infer a SQL dialect for driver %T", d)
	}
}

func quoteWith(q, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// QuoteLiteral renders a string literal with single quotes doubled.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteLiterals(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteLiteral(v)
	}
	return strings.Join(quoted, ", ")
}

func numeric(t mapping.SQLType) string {
	if t.Precision > 0 {
		return fmt.Sprintf("NUMERIC(%d, %d)", t.Precision, t.Scale)
	}
	return "NUMERIC"
}

func enumWidth(values []string) int {
	width := 1
	for _, v := range values {
		width = max(width, len(v))
	}
	return width
}

type postgres struct{}

func (postgres) Name() string              { return Postgres }
func (postgres) Quote(ident string) string { return quoteWith(`"`, ident) }
func (postgres) Placeholder(n int) string  { return fmt.Sprintf("$%d", n) }
func (postgres) NamedEnums() bool          { return true }
func (postgres) SupportsReturning() bool   { return true }
func (postgres) IndexIfNotExists() bool    { return true }

func (postgres) ColumnType(t mapping.SQLType) string {
	switch t.Kind {
	case mapping.KindString:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR"
	case mapping.KindText:
		return "TEXT"
	case mapping.KindInteger:
		return "INTEGER"
	case mapping.KindBigInteger:
		return "BIGINT"
	case mapping.KindFloat:
		return "DOUBLE PRECISION"
	case mapping.KindNumeric:
		return numeric(t)
	case mapping.KindBoolean:
		return "BOOLEAN"
	case mapping.KindDateTime:
		return "TIMESTAMP WITH TIME ZONE"
	case mapping.KindDate:
		return "DATE"
	case mapping.KindTime:
		return "TIME"
	case mapping.KindInterval:
		return "INTERVAL"
	case mapping.KindUUID:
		return "UUID"
	case mapping.KindLargeBinary:
		return "BYTEA"
	case mapping.KindJSON:
		return "JSONB"
	case mapping.KindEnum:
		return quoteWith(`"`, t.EnumName)
	}
	return t.String()
}

func (d postgres) IdentityColumn(t mapping.SQLType) (string, string) {
	if t.Kind == mapping.KindBigInteger {
		return "BIGSERIAL", ""
	}
	return "SERIAL", ""
}

type sqlite struct{}

func (sqlite) Name() string              { return SQLite }
func (sqlite) Quote(ident string) string { return quoteWith(`"`, ident) }
func (sqlite) Placeholder(int) string    { return "?" }
func (sqlite) NamedEnums() bool          { return false }
func (sqlite) SupportsReturning() bool   { return true }
func (sqlite) IndexIfNotExists() bool    { return true }

func (sqlite) ColumnType(t mapping.SQLType) string {
	switch t.Kind {
	case mapping.KindString:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR"
	case mapping.KindText:
		return "TEXT"
	case mapping.KindInteger, mapping.KindInterval:
		return "INTEGER"
	case mapping.KindBigInteger:
		return "BIGINT"
	case mapping.KindFloat:
		return "FLOAT"
	case mapping.KindNumeric:
		return numeric(t)
	case mapping.KindBoolean:
		return "BOOLEAN"
	case mapping.KindDateTime:
		return "DATETIME"
	case mapping.KindDate:
		return "DATE"
	case mapping.KindTime:
		return "TIME"
	case mapping.KindUUID:
		return "CHAR(36)"
	case mapping.KindLargeBinary:
		return "BLOB"
	case mapping.KindJSON:
		return "JSON"
	case mapping.KindEnum:
		return fmt.Sprintf("VARCHAR(%d)", enumWidth(t.Values))
	}
	return t.String()
}

// IdentityColumn keeps INTEGER so the column aliases the rowid.
func (sqlite) IdentityColumn(mapping.SQLType) (string, string) {
	return "INTEGER", ""
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string              { return MySQL }
func (mysqlDialect) Quote(ident string) string { return quoteWith("`", ident) }
func (mysqlDialect) Placeholder(int) string    { return "?" }
func (mysqlDialect) NamedEnums() bool          { return false }
func (mysqlDialect) SupportsReturning() bool   { return false }
func (mysqlDialect) IndexIfNotExists() bool    { return false }

func (mysqlDialect) ColumnType(t mapping.SQLType) string {
	switch t.Kind {
	case mapping.KindString:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
		return "VARCHAR(255)"
	case mapping.KindText:
		return "TEXT"
	case mapping.KindInteger:
		return "INTEGER"
	case mapping.KindBigInteger, mapping.KindInterval:
		return "BIGINT"
	case mapping.KindFloat:
		return "DOUBLE"
	case mapping.KindNumeric:
		return numeric(t)
	case mapping.KindBoolean:
		return "BOOL"
	case mapping.KindDateTime:
		return "DATETIME(6)"
	case mapping.KindDate:
		return "DATE"
	case mapping.KindTime:
		return "TIME(6)"
	case mapping.KindUUID:
		return "CHAR(36)"
	case mapping.KindLargeBinary:
		return "BLOB"
	case mapping.KindJSON:
		return "JSON"
	case mapping.KindEnum:
		return "ENUM(" + quoteLiterals(t.Values) + ")"
	}
	return t.String()
}

func (d mysqlDialect) IdentityColumn(t mapping.SQLType) (string, string) {
	return d.ColumnType(t), "AUTO_INCREMENT"
}

package database

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
)

// Dialect renders the few statements that differ between SQLite and Postgres.
type Dialect struct {
	name     string
	bindType int
}

var (
	SQLite   = Dialect{name: "sqlite", bindType: sqlx.QUESTION}
	Postgres = Dialect{name: "postgres", bindType: sqlx.DOLLAR}
)

var _ core.Dialect = Dialect{} // interface compliance check

// DialectFor returns the dialect of the configured engine.
func DialectFor(conf *core.Config) Dialect {
	if conf.Database.IsSQLite() {
		return SQLite
	}
	return Postgres
}

func (d Dialect) Name() string { return d.name }

func (d Dialect) IsSQLite() bool { return d.name == SQLite.name }

// Rebind turns `?` placeholders into the engine's own.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}

// ILike is case-insensitive for Unicode on Postgres, for ASCII only on SQLite.
func (d Dialect) ILike(column string) string {
	if d.IsSQLite() {
		return column + " LIKE ?"
	}
	return column + " ILIKE ?"
}

func (d Dialect) Prefix(column string, n int) string {
	if d.IsSQLite() {
		return "SUBSTR(" + column + ", 1, " + strconv.Itoa(n) + ")"
	}
	return "LEFT(" + column + ", " + strconv.Itoa(n) + ")"
}

// Timestamp converts `t` to the value stored in TIMESTAMP columns.
// SQLite keeps text, so the layout must sort lexically.
func (d Dialect) Timestamp(t time.Time) interface{} {
	if d.IsSQLite() {
		return t.UTC().Format("2006-01-02 15:04:05.000000")
	}
	return t.UTC()
}

// ColumnsQuery lists the columns of the table bound to its single parameter,
// as (name, type, nullable) rows.
func (d Dialect) ColumnsQuery() string {
	if d.IsSQLite() {
		return `SELECT name, type, "notnull" = 0 AS nullable FROM pragma_table_info(?) ORDER BY cid`
	}
	return d.Rebind(`SELECT column_name AS name, data_type AS type, is_nullable = 'YES' AS nullable
		FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`)
}

func (d Dialect) AddColumn(table string, col student.ColumnDef) string {
	typ := col.Type
	switch col.Type {
	case "BOOLEAN":
		typ += " DEFAULT FALSE"
	case "TIMESTAMP":
		typ += " DEFAULT CURRENT_TIMESTAMP"
	}
	if d.IsSQLite() && col.Type == "TIMESTAMP" {
		// SQLite refuses non-constant defaults on ADD COLUMN
		typ = col.Type
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.Name, typ)
}

// ResetSequence restarts the id counter of `table`.
func (d Dialect) ResetSequence(table string) string {
	if d.IsSQLite() {
		return "DELETE FROM sqlite_sequence WHERE name = '" + table + "'"
	}
	return "ALTER SEQUENCE " + table + "_id_seq RESTART WITH 1"
}

// GooseDialect is the dialect name goose knows the engine by.
func (d Dialect) GooseDialect() string {
	if d.IsSQLite() {
		return "sqlite3"
	}
	return "postgres"
}

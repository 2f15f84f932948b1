package jdbc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/jmoiron/sqlx"
)

// sqlDialect is configured per vendor instead of being specialised by embedding
type sqlDialect struct {
	name        constants.DriverType
	bindType    int
	openQuote   string
	closeQuote  string
	currentTime string
	combine     func(d *sqlDialect, columns types.ColumnDateTime) string
	normalize   func(expr string) string
	bind        func(ts time.Time, loc *time.Location) any
}

func (d *sqlDialect) Name() constants.DriverType {
	return d.name
}

func (d *sqlDialect) BindType() int {
	return d.bindType
}

func (d *sqlDialect) QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, d.closeQuote, d.closeQuote+d.closeQuote)
	return d.openQuote + escaped + d.closeQuote
}

func (d *sqlDialect) QuoteTable(table types.TableID) string {
	parts := table.Parts()
	for i, part := range parts {
		parts[i] = d.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

func (d *sqlDialect) CombineDateTime(columns types.ColumnDateTime) string {
	return d.combine(d, columns)
}

func (d *sqlDialect) TimestampExpression(expr string) string {
	if d.normalize == nil {
		return expr
	}
	return d.normalize(expr)
}

func (d *sqlDialect) CurrentTimeQuery() string {
	return d.currentTime
}

func (d *sqlDialect) BindTimestamp(ts time.Time, loc *time.Location) any {
	if loc == nil {
		loc = time.UTC
	}
	if d.bind != nil {
		return d.bind(ts, loc)
	}
	return ts.In(loc)
}

func (d *sqlDialect) ExpressionBuilder() *ExpressionBuilder {
	return NewExpressionBuilder(d)
}

func (d *sqlDialect) PrepareStatement(ctx context.Context, conn *sqlx.Conn, query string) (*sqlx.Stmt, error) {
	stmt, err := conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	return stmt, nil
}

func (d *sqlDialect) String() string {
	return string(d.name)
}

func wallClock(layout string) func(ts time.Time, loc *time.Location) any {
	return func(ts time.Time, loc *time.Location) any {
		return ts.In(loc).Format(layout)
	}
}

const sqliteTimestampLayout = "2006-01-02 15:04:05.000"

// castConcat builds CAST(CAST(date AS VARCHAR) || ' ' || CAST(time AS VARCHAR) AS TIMESTAMP)
func castConcat(d *sqlDialect, c types.ColumnDateTime) string {
	return fmt.Sprintf("CAST(CAST(%s AS VARCHAR(10)) || ' ' || CAST(%s AS VARCHAR(18)) AS TIMESTAMP)",
		d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
}

var (
	GenericDialect Dialect = &sqlDialect{
		name:        constants.Generic,
		bindType:    sqlx.QUESTION,
		openQuote:   `"`,
		closeQuote:  `"`,
		currentTime: "SELECT CURRENT_TIMESTAMP",
		combine:     castConcat,
	}

	PostgresDialect Dialect = &sqlDialect{
		name:        constants.Postgres,
		bindType:    sqlx.DOLLAR,
		openQuote:   `"`,
		closeQuote:  `"`,
		currentTime: "SELECT CURRENT_TIMESTAMP",
		combine: func(d *sqlDialect, c types.ColumnDateTime) string {
			return fmt.Sprintf("(%s + %s)", d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
		},
	}

	MySQLDialect Dialect = &sqlDialect{
		name:        constants.MySQL,
		bindType:    sqlx.QUESTION,
		openQuote:   "`",
		closeQuote:  "`",
		currentTime: "SELECT UTC_TIMESTAMP(6)",
		combine: func(d *sqlDialect, c types.ColumnDateTime) string {
			return fmt.Sprintf("TIMESTAMP(%s, %s)", d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
		},
		// the driver formats time arguments in its own loc, bind the wall clock instead
		bind: wallClock("2006-01-02 15:04:05.999999"),
	}

	MSSQLDialect Dialect = &sqlDialect{
		name:        constants.MSSQL,
		bindType:    sqlx.AT,
		openQuote:   "[",
		closeQuote:  "]",
		currentTime: "SELECT SYSUTCDATETIME()",
		combine: func(d *sqlDialect, c types.ColumnDateTime) string {
			return fmt.Sprintf("CAST(CONCAT(CONVERT(VARCHAR(10), %s, 23), ' ', CONVERT(VARCHAR(16), %s, 121)) AS DATETIME2)",
				d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
		},
	}

	OracleDialect Dialect = &sqlDialect{
		name:        constants.Oracle,
		bindType:    sqlx.NAMED,
		openQuote:   `"`,
		closeQuote:  `"`,
		currentTime: "SELECT SYS_EXTRACT_UTC(SYSTIMESTAMP) FROM DUAL",
		combine: func(d *sqlDialect, c types.ColumnDateTime) string {
			return fmt.Sprintf("TO_TIMESTAMP(TO_CHAR(%s, 'YYYY-MM-DD') || ' ' || %s, 'YYYY-MM-DD HH24:MI:SS.FF')",
				d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
		},
	}

	SQLiteDialect Dialect = &sqlDialect{
		name:        constants.SQLite,
		bindType:    sqlx.QUESTION,
		openQuote:   `"`,
		closeQuote:  `"`,
		currentTime: "SELECT strftime('%Y-%m-%d %H:%M:%f', 'now')",
		combine: func(d *sqlDialect, c types.ColumnDateTime) string {
			return fmt.Sprintf("(%s || ' ' || %s)", d.QuoteIdentifier(c.Date.Name), d.QuoteIdentifier(c.Time.Name))
		},
		// timestamps are text in any ISO layout. strftime rewrites the column
		// into one layout with three fractional digits, rounded to the
		// millisecond, and converts zoned values to UTC.
		normalize: func(expr string) string {
			return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:%%f', %s)", expr)
		},
		bind: func(ts time.Time, loc *time.Location) any {
			return ts.In(loc).Round(time.Millisecond).Format(sqliteTimestampLayout)
		},
	}

	// CacheDialect targets InterSystems Caché / IRIS
	CacheDialect Dialect = &sqlDialect{
		name:        constants.Cache,
		bindType:    sqlx.QUESTION,
		openQuote:   `"`,
		closeQuote:  `"`,
		currentTime: "SELECT GETUTCDATE()",
		combine:     castConcat,
	}
)

func init() {
	Register(GenericDialect, string(constants.Generic))
	Register(PostgresDialect, string(constants.Postgres), "postgres", "pgx")
	Register(MySQLDialect, string(constants.MySQL), "mariadb")
	Register(MSSQLDialect, string(constants.MSSQL), "mssql")
	Register(OracleDialect, string(constants.Oracle), "godror")
	Register(SQLiteDialect, string(constants.SQLite), "sqlite3", "file")
	Register(CacheDialect, string(constants.Cache), "iris")
}

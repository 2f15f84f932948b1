package jdbc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/typeutils"
)

// Iterable is the cursor surface Reader walks
type Iterable interface {
	Next() bool
	Err() error
	Close() error
}

// Converter normalizes a raw driver value given the column's database type
type Converter func(value any, columnType string) (any, error)

type Reader[T Iterable] struct {
	query string
	args  []any
	ctx   context.Context

	exec func(ctx context.Context, query string, args ...any) (T, error)
}

func NewReader[T Iterable](ctx context.Context, query string,
	exec func(ctx context.Context, query string, args ...any) (T, error), args ...any) *Reader[T] {
	return &Reader[T]{
		query: query,
		ctx:   ctx,
		exec:  exec,
		args:  args,
	}
}

// Capture executes the query and calls onCapture for every row. The cursor is
// closed before returning.
func (o *Reader[T]) Capture(onCapture func(T) error) error {
	if strings.HasSuffix(strings.TrimSpace(o.query), ";") {
		return fmt.Errorf("query ends with ';': %s", o.query)
	}

	rows, err := o.exec(o.ctx, o.query, o.args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := onCapture(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Scanner is implemented by *sql.Rows and *sqlx.Rows
type Scanner interface {
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
	Scan(dest ...any) error
}

// MapScan scans the current row into a record. Text columns returned as raw
// bytes become strings, everything else is handed to converter when set.
func MapScan(rows Scanner, converter Converter) (types.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	scanValues := make([]any, len(columns))
	for i := range scanValues {
		scanValues[i] = new(any)
	}
	if err := rows.Scan(scanValues...); err != nil {
		return nil, err
	}

	record := make(types.Record, len(columns))
	for i, col := range columns {
		raw := *(scanValues[i].(*any))
		if converter == nil {
			record[col] = raw
			continue
		}
		conv, err := converter(raw, colTypes[i].DatabaseTypeName())
		if err != nil && !errors.Is(err, typeutils.ErrNullValue) {
			return nil, fmt.Errorf("failed to convert value for column %s: %s", col, err)
		}
		record[col] = conv
	}
	return record, nil
}

// DefaultConverter turns driver byte slices of textual columns into strings
func DefaultConverter(value any, columnType string) (any, error) {
	if value == nil {
		return nil, typeutils.ErrNullValue
	}
	raw, ok := value.([]byte)
	if !ok {
		return value, nil
	}
	switch strings.ToUpper(columnType) {
	case "BLOB", "BINARY", "VARBINARY", "BYTEA", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "IMAGE", "RAW":
		return raw, nil
	default:
		return string(raw), nil
	}
}

package types

import (
	"fmt"
	"strings"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
)

// ColumnID references a column of a table. Query mode queriers use a zero TableID.
type ColumnID struct {
	Table TableID
	Name  string
}

func NewColumnID(table TableID, name string) ColumnID {
	return ColumnID{Table: table, Name: name}
}

func (c ColumnID) String() string {
	if c.Table.IsZero() {
		return c.Name
	}
	return fmt.Sprintf("%s.%s", c.Table, c.Name)
}

// ColumnDateTime is one logical timestamp stored as a date column and a time column.
type ColumnDateTime struct {
	Date ColumnID
	Time ColumnID
}

// NewColumnDateTime parses "x|date|time[|...]". Segment 0 is reserved and
// ignored, segments 1 and 2 name the date and time columns.
func NewColumnDateTime(table TableID, encoded string) (ColumnDateTime, error) {
	segments := strings.Split(encoded, constants.DateTimeSeparator)
	if len(segments) < 3 {
		return ColumnDateTime{}, &ConfigError{
			Source: table.String(),
			Reason: fmt.Sprintf("datetime columns %q must have at least 3 %q separated segments (reserved|date|time), got %d", encoded, constants.DateTimeSeparator, len(segments)),
		}
	}

	dateName, timeName := strings.TrimSpace(segments[1]), strings.TrimSpace(segments[2])
	if dateName == "" || timeName == "" {
		return ColumnDateTime{}, &ConfigError{
			Source: table.String(),
			Reason: fmt.Sprintf("datetime columns %q has an empty date or time column name", encoded),
		}
	}

	logger.Debugf("table[%s] uses date column[%s] and time column[%s]", table, dateName, timeName)
	return ColumnDateTime{
		Date: NewColumnID(table, dateName),
		Time: NewColumnID(table, timeName),
	}, nil
}

func (c ColumnDateTime) String() string {
	return fmt.Sprintf("%s+%s", c.Date, c.Time)
}

type timestampColumnKind int

const (
	noTimestampColumns timestampColumnKind = iota
	multiColumn
	splitDateTime
)

// TimestampColumnStrategy selects how the timestamp watermark is read: one or
// more columns coalesced in order, or a date column combined with a time column.
// The zero value means no timestamp watermark.
type TimestampColumnStrategy struct {
	kind     timestampColumnKind
	columns  []ColumnID
	dateTime ColumnDateTime
}

func MultiColumn(columns ...ColumnID) TimestampColumnStrategy {
	if len(columns) == 0 {
		return TimestampColumnStrategy{}
	}
	return TimestampColumnStrategy{kind: multiColumn, columns: columns}
}

func SplitDateTime(columns ColumnDateTime) TimestampColumnStrategy {
	return TimestampColumnStrategy{kind: splitDateTime, dateTime: columns}
}

func (s TimestampColumnStrategy) IsZero() bool {
	return s.kind == noTimestampColumns
}

func (s TimestampColumnStrategy) IsSplit() bool {
	return s.kind == splitDateTime
}

// Columns returns the coalesced columns, nil for split and empty strategies
func (s TimestampColumnStrategy) Columns() []ColumnID {
	return s.columns
}

// DateTime returns the split columns and whether the strategy is split
func (s TimestampColumnStrategy) DateTime() (ColumnDateTime, bool) {
	return s.dateTime, s.kind == splitDateTime
}

func (s TimestampColumnStrategy) String() string {
	switch s.kind {
	case multiColumn:
		names := make([]string, len(s.columns))
		for i, c := range s.columns {
			names[i] = c.Name
		}
		return strings.Join(names, ",")
	case splitDateTime:
		return s.dateTime.String()
	default:
		return ""
	}
}

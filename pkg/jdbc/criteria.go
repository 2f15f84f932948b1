package jdbc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/typeutils"
)

// TimestampIncrementingCriteria turns a watermark into a WHERE / ORDER BY
// clause and extracts the next watermark out of result rows. It is shared by
// every timestamp column layout: single, coalesced and split date + time.
//
// With both an incrementing and a timestamp column the clause totally orders
// rows by (timestamp, incrementing), so resuming from any committed offset
// neither skips nor repeats rows. With only timestamp columns, rows sharing the
// committed timestamp that were not yet delivered are skipped on resume unless
// the querier commits per timestamp group.
type TimestampIncrementingCriteria struct {
	dialect      Dialect
	source       string
	incrementing *types.ColumnID
	timestamps   types.TimestampColumnStrategy
	loc          *time.Location
	granularity  types.TimestampGranularity
}

// NewCriteria requires at least one of incrementing and timestamps
func NewCriteria(dialect Dialect, source string, incrementing *types.ColumnID, timestamps types.TimestampColumnStrategy,
	loc *time.Location, granularity types.TimestampGranularity) (*TimestampIncrementingCriteria, error) {
	if incrementing == nil && timestamps.IsZero() {
		return nil, &types.ConfigError{Source: source, Reason: "at least one of an incrementing column or timestamp columns is required"}
	}
	if _, err := granularity.Duration(); err != nil {
		return nil, &types.ConfigError{Source: source, Reason: err.Error()}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimestampIncrementingCriteria{
		dialect:      dialect,
		source:       source,
		incrementing: incrementing,
		timestamps:   timestamps,
		loc:          loc,
		granularity:  granularity,
	}, nil
}

func (c *TimestampIncrementingCriteria) HasIncrementing() bool {
	return c.incrementing != nil
}

func (c *TimestampIncrementingCriteria) HasTimestamp() bool {
	return !c.timestamps.IsZero()
}

// WhereClause appends the WHERE and ORDER BY clauses bounded by the offset and
// nowBound. Unknown offset components start at -1 and the unix epoch.
func (c *TimestampIncrementingCriteria) WhereClause(b *ExpressionBuilder, offset types.Offset, nowBound time.Time) {
	switch {
	case c.HasIncrementing() && c.HasTimestamp():
		c.timestampIncrementingWhereClause(b, offset, nowBound)
	case c.HasIncrementing():
		c.incrementingWhereClause(b, offset)
	default:
		c.timestampWhereClause(b, offset, nowBound)
	}
}

// WHERE ts <= :now AND ((ts = :last AND inc > :lastInc) OR ts > :last) ORDER BY ts, inc
func (c *TimestampIncrementingCriteria) timestampIncrementingWhereClause(b *ExpressionBuilder, offset types.Offset, nowBound time.Time) {
	last := c.bindTimestamp(offset.TimestampOrDefault())
	ts := c.timestampExpression()
	inc := c.dialect.QuoteIdentifier(c.incrementing.Name)

	b.Append(" WHERE ").Append(ts).Append(" <= ").AppendParam(c.bindNow(nowBound))
	b.Append(" AND ((").Append(ts).Append(" = ").AppendParam(last)
	b.Append(" AND ").Append(inc).Append(" > ").AppendParam(offset.IncrementingOrDefault())
	b.Append(") OR ").Append(ts).Append(" > ").AppendParam(last).Append(")")
	b.Append(" ORDER BY ").Append(ts).Append(" ASC, ").Append(inc).Append(" ASC")
}

// WHERE inc > :lastInc ORDER BY inc
func (c *TimestampIncrementingCriteria) incrementingWhereClause(b *ExpressionBuilder, offset types.Offset) {
	inc := c.dialect.QuoteIdentifier(c.incrementing.Name)
	b.Append(" WHERE ").Append(inc).Append(" > ").AppendParam(offset.IncrementingOrDefault())
	b.Append(" ORDER BY ").Append(inc).Append(" ASC")
}

// WHERE ts > :last AND ts <= :now ORDER BY ts
func (c *TimestampIncrementingCriteria) timestampWhereClause(b *ExpressionBuilder, offset types.Offset, nowBound time.Time) {
	ts := c.timestampExpression()
	b.Append(" WHERE ").Append(ts).Append(" > ").AppendParam(c.bindTimestamp(offset.TimestampOrDefault()))
	b.Append(" AND ").Append(ts).Append(" <= ").AppendParam(c.bindNow(nowBound))
	b.Append(" ORDER BY ").Append(ts).Append(" ASC")
}

func (c *TimestampIncrementingCriteria) timestampExpression() string {
	if dateTime, split := c.timestamps.DateTime(); split {
		return c.dialect.TimestampExpression(c.dialect.CombineDateTime(dateTime))
	}
	columns := c.timestamps.Columns()
	if len(columns) == 1 {
		return c.dialect.TimestampExpression(c.dialect.QuoteIdentifier(columns[0].Name))
	}
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = c.dialect.QuoteIdentifier(column.Name)
	}
	return c.dialect.TimestampExpression(fmt.Sprintf("COALESCE(%s)", strings.Join(quoted, ", ")))
}

// bindTimestamp binds a row watermark at full precision, anything coarser
// would match the committed row again
func (c *TimestampIncrementingCriteria) bindTimestamp(ts time.Time) any {
	return c.dialect.BindTimestamp(ts, c.loc)
}

// bindNow truncates the upper bound to the precision of the database clock
func (c *TimestampIncrementingCriteria) bindNow(now time.Time) any {
	return c.dialect.BindTimestamp(c.granularity.Truncate(now), c.loc)
}

// ExtractOffset returns the offset of row, or previous when the row would move
// the watermark backward. Offsets order by timestamp first, then incrementing.
func (c *TimestampIncrementingCriteria) ExtractOffset(previous types.Offset, row types.Record) (types.Offset, error) {
	var extracted types.Offset
	if c.HasTimestamp() {
		ts, err := c.ExtractTimestamp(row)
		if err != nil {
			return previous, err
		}
		extracted.Timestamp = &ts
	}
	if c.HasIncrementing() {
		inc, err := c.ExtractIncrementing(row)
		if err != nil {
			return previous, err
		}
		extracted.Incrementing = &inc
	}

	if previous.IsZero() || extracted.Compare(previous) > 0 {
		return extracted, nil
	}
	return previous, nil
}

// ExtractTimestamp reads the timestamp watermark of a row
func (c *TimestampIncrementingCriteria) ExtractTimestamp(row types.Record) (time.Time, error) {
	if dateTime, split := c.timestamps.DateTime(); split {
		date, err := c.requireValue(row, dateTime.Date.Name)
		if err != nil {
			return time.Time{}, err
		}
		clock, err := c.requireValue(row, dateTime.Time.Name)
		if err != nil {
			return time.Time{}, err
		}
		ts, err := typeutils.CombineDateTime(c.naive(date), c.naive(clock), c.loc)
		if err != nil {
			return time.Time{}, &types.ExtractionError{Source: c.source, Column: dateTime.String(), Err: err}
		}
		return ts, nil
	}

	columns := c.timestamps.Columns()
	for _, column := range columns {
		value, found := row.Lookup(column.Name)
		if !found || value == nil {
			continue
		}
		ts, err := typeutils.ReformatDate(c.naive(value), c.loc)
		if errors.Is(err, typeutils.ErrNullValue) {
			continue
		}
		if err != nil {
			return time.Time{}, &types.ExtractionError{Source: c.source, Column: column.Name, Err: err}
		}
		return ts, nil
	}
	return time.Time{}, &types.ExtractionError{Source: c.source, Column: c.timestamps.String(), Err: typeutils.ErrNullValue}
}

// TimestampOf returns the row's timestamp, false when no timestamp column is configured
func (c *TimestampIncrementingCriteria) TimestampOf(row types.Record) (time.Time, bool, error) {
	if !c.HasTimestamp() {
		return time.Time{}, false, nil
	}
	ts, err := c.ExtractTimestamp(row)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// ExtractIncrementing reads the incrementing watermark of a row
func (c *TimestampIncrementingCriteria) ExtractIncrementing(row types.Record) (int64, error) {
	value, err := c.requireValue(row, c.incrementing.Name)
	if err != nil {
		return 0, err
	}
	inc, err := typeutils.ReformatInt64(value)
	if err != nil {
		return 0, &types.ExtractionError{Source: c.source, Column: c.incrementing.Name, Err: err}
	}
	return inc, nil
}

func (c *TimestampIncrementingCriteria) requireValue(row types.Record, column string) (any, error) {
	value, found := row.Lookup(column)
	if !found {
		return nil, &types.ExtractionError{Source: c.source, Column: column, Err: fmt.Errorf("column missing from result set")}
	}
	if value == nil {
		return nil, &types.ExtractionError{Source: c.source, Column: column, Err: typeutils.ErrNullValue}
	}
	return value, nil
}

// naive reinterprets zone-less timestamps, which drivers hand back as UTC wall
// clocks, in the configured location
func (c *TimestampIncrementingCriteria) naive(value any) any {
	ts, ok := value.(time.Time)
	if !ok || c.loc == time.UTC || ts.Location() != time.UTC {
		return value
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), c.loc)
}

func (c *TimestampIncrementingCriteria) String() string {
	inc := ""
	if c.incrementing != nil {
		inc = c.incrementing.Name
	}
	return fmt.Sprintf("TimestampIncrementingCriteria{incrementing=%s, timestamps=%s, tz=%s}", inc, c.timestamps, c.loc)
}

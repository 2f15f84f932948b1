package querier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datazip-inc/olake-jdbc/pkg/jdbc"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/datazip-inc/olake-jdbc/utils/typeutils"
	"github.com/jmoiron/sqlx"
)

// State of a querier within its poll cycle
type State int

const (
	StateUninitialized State = iota
	StatePrepared
	StateExecuting
	StateExhausted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StatePrepared:
		return "PREPARED"
	case StateExecuting:
		return "EXECUTING"
	case StateExhausted:
		return "EXHAUSTED"
	case StateErrored:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RecordFn receives every row of a poll in query order
type RecordFn func(ctx context.Context, record types.Record) error

// NowFn returns the database's current time, used as the upper timestamp bound
type NowFn func(ctx context.Context, conn *sqlx.Conn) (time.Time, error)

var ErrPollInProgress = errors.New("poll already in progress")

type Options struct {
	Provider jdbc.ConnectionProvider
	// Dialect defaults to the provider's dialect
	Dialect jdbc.Dialect

	// Table selects table mode; Query is used when Table is zero
	Table types.TableID
	Query string
	// Suffix is appended after the ORDER BY, e.g. a LIMIT clause
	Suffix string

	Incrementing   *types.ColumnID
	Timestamps     types.TimestampColumnStrategy
	Location       *time.Location
	TimestampDelay time.Duration
	Granularity    types.TimestampGranularity
	CommitStrategy types.CommitStrategy

	TopicPrefix   string
	InitialOffset types.Offset
	Converter     jdbc.Converter
	Now           NowFn
}

// Querier repeatedly reads the rows past its committed offset. A querier is
// driven by one goroutine; Offset and State may be read from others.
type Querier struct {
	opts     Options
	dialect  jdbc.Dialect
	criteria *jdbc.TimestampIncrementingCriteria
	name     string

	polling atomic.Bool

	mu        sync.RWMutex
	state     State
	committed types.Offset
}

// New validates the options and builds the criteria. Configuration errors are
// raised here, never on the first poll.
func New(opts Options) (*Querier, error) {
	name := sourceName(opts)
	if opts.Provider == nil {
		return nil, &types.ConfigError{Source: name, Reason: "connection provider is required"}
	}
	if opts.Table.IsZero() && strings.TrimSpace(opts.Query) == "" {
		return nil, &types.ConfigError{Source: name, Reason: "either a table or a query is required"}
	}
	// criteria and suffix are appended after the query text
	if strings.HasSuffix(strings.TrimSpace(opts.Query), ";") {
		return nil, &types.ConfigError{Source: name, Reason: "query must not end with ';'"}
	}
	if strings.HasSuffix(strings.TrimSpace(opts.Suffix), ";") {
		return nil, &types.ConfigError{Source: name, Reason: "query suffix must not end with ';'"}
	}
	if opts.Dialect == nil {
		opts.Dialect = opts.Provider.Dialect()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CommitStrategy == "" {
		opts.CommitStrategy = types.CommitPerRow
		if opts.Incrementing == nil {
			opts.CommitStrategy = types.CommitTimestampGroup
		}
	}
	if opts.Converter == nil {
		opts.Converter = jdbc.DefaultConverter
	}
	if opts.Now == nil {
		opts.Now = databaseNow(opts.Dialect)
	}

	criteria, err := jdbc.NewCriteria(opts.Dialect, name, opts.Incrementing, opts.Timestamps, opts.Location, opts.Granularity)
	if err != nil {
		return nil, err
	}

	q := &Querier{
		opts:      opts,
		dialect:   opts.Dialect,
		criteria:  criteria,
		name:      name,
		state:     StateUninitialized,
		committed: opts.InitialOffset,
	}
	logger.Debugf("created querier[%s] with %s, commit strategy[%s], offset %s", q, criteria, opts.CommitStrategy, opts.InitialOffset)
	return q, nil
}

// NewFromConfig builds a querier for one configured table or query
func NewFromConfig(provider jdbc.ConnectionProvider, cfg *types.TableConfig, initial types.Offset) (*Querier, error) {
	var table types.TableID
	if cfg.QueryMode() == types.QueryModeTable {
		table = types.ParseTableID(cfg.Table)
	}
	incrementing, err := cfg.Incrementing(table)
	if err != nil {
		return nil, err
	}
	timestamps, err := cfg.TimestampStrategy(table)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return New(Options{
		Provider:       provider,
		Table:          table,
		Query:          cfg.Query,
		Suffix:         cfg.QuerySuffix,
		Incrementing:   incrementing,
		Timestamps:     timestamps,
		Location:       loc,
		TimestampDelay: cfg.TimestampDelay(),
		Granularity:    cfg.Granularity,
		CommitStrategy: cfg.EffectiveCommitStrategy(),
		TopicPrefix:    cfg.TopicPrefix,
		InitialOffset:  initial,
	})
}

// Poll runs one query cycle and hands every row to fn. The committed offset
// advances per row, or per completed timestamp group, only after fn accepted
// the rows it covers. Errors leave the committed offset at its last commit.
func (q *Querier) Poll(ctx context.Context, fn RecordFn) error {
	if !q.polling.CompareAndSwap(false, true) {
		return fmt.Errorf("querier[%s]: %w", q, ErrPollInProgress)
	}
	defer q.polling.Store(false)

	rows, err := q.poll(ctx, fn)
	if err != nil {
		q.setState(StateErrored)
		return err
	}
	q.setState(StateExhausted)
	logger.Debugf("querier[%s] read %d rows, committed offset %s", q, rows, q.Offset())
	return nil
}

func (q *Querier) poll(ctx context.Context, fn RecordFn) (int, error) {
	conn, err := q.opts.Provider.Conn(ctx)
	if err != nil {
		return 0, q.execError("acquire connection", err)
	}
	defer conn.Close()

	query, args, err := q.buildQuery(ctx, conn, q.Offset())
	if err != nil {
		return 0, err
	}

	stmt, err := q.dialect.PrepareStatement(ctx, conn, query)
	if err != nil {
		return 0, q.execError("prepare statement", err)
	}
	defer stmt.Close()
	q.setState(StatePrepared)

	var (
		count      int
		candidate  = q.Offset()
		pending    *types.Offset
		pendingTS  time.Time
		callerErr  error
		groupByTS  = q.opts.CommitStrategy == types.CommitTimestampGroup && q.criteria.HasTimestamp()
		execReader = jdbc.NewReader(ctx, query, func(ctx context.Context, _ string, args ...any) (*sqlx.Rows, error) {
			rows, err := stmt.QueryxContext(ctx, args...)
			if err != nil {
				return nil, q.execError("execute query", err)
			}
			q.setState(StateExecuting)
			return rows, nil
		}, args...)
	)

	err = execReader.Capture(func(rows *sqlx.Rows) error {
		record, err := jdbc.MapScan(rows, q.opts.Converter)
		if err != nil {
			return q.execError("scan row", err)
		}

		next, err := q.criteria.ExtractOffset(candidate, record)
		if err != nil {
			callerErr = err
			return err
		}

		if groupByTS {
			ts, _, err := q.criteria.TimestampOf(record)
			if err != nil {
				callerErr = err
				return err
			}
			// rows sharing pendingTS are all emitted once a later timestamp shows up
			if pending != nil && ts.After(pendingTS) {
				q.commit(*pending)
			}
			pendingTS = ts
		}

		if err := fn(ctx, record); err != nil {
			callerErr = err
			return err
		}
		count++
		candidate = next

		if groupByTS {
			committable := candidate
			pending = &committable
		} else {
			q.commit(candidate)
		}
		return nil
	})
	if err != nil {
		var execErr *types.ExecutionError
		if callerErr != nil || errors.As(err, &execErr) {
			return count, err
		}
		return count, q.execError("iterate rows", err)
	}

	if pending != nil {
		q.commit(*pending)
	}
	return count, nil
}

func (q *Querier) buildQuery(ctx context.Context, conn *sqlx.Conn, offset types.Offset) (string, []any, error) {
	var nowBound time.Time
	if q.criteria.HasTimestamp() {
		now, err := q.opts.Now(ctx, conn)
		if err != nil {
			return "", nil, q.execError("read current time", err)
		}
		nowBound = now.Add(-q.opts.TimestampDelay)
	}

	builder := q.dialect.ExpressionBuilder()
	if !q.opts.Table.IsZero() {
		builder.Append("SELECT * FROM ").AppendTable(q.opts.Table)
	} else {
		builder.Append(strings.TrimSpace(q.opts.Query))
	}
	q.criteria.WhereClause(builder, offset, nowBound)
	if suffix := strings.TrimSpace(q.opts.Suffix); suffix != "" {
		builder.Append(" ").Append(suffix)
	}

	query, args := builder.Query()
	logger.Debugf("querier[%s] prepared query: %s", q, query)
	return query, args, nil
}

// commit never moves the offset backward
func (q *Querier) commit(offset types.Offset) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.committed.IsZero() || offset.Compare(q.committed) > 0 {
		q.committed = offset
	}
}

// OffsetOf extracts the offset record alone would advance the querier to
func (q *Querier) OffsetOf(record types.Record) (types.Offset, error) {
	return q.criteria.ExtractOffset(types.Offset{}, record)
}

// Offset returns the committed offset
func (q *Querier) Offset() types.Offset {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.committed
}

func (q *Querier) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state
}

func (q *Querier) setState(state State) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = state
}

func (q *Querier) execError(op string, err error) error {
	return &types.ExecutionError{Source: q.name, Op: op, Err: err}
}

// String identifies the querier by table or query and topic prefix
func (q *Querier) String() string {
	return q.name
}

func sourceName(opts Options) string {
	source := opts.Table.String()
	if source == "" {
		source = strings.Join(strings.Fields(opts.Query), " ")
	}
	if opts.TopicPrefix != "" {
		return fmt.Sprintf("%s (topic prefix %s)", source, opts.TopicPrefix)
	}
	return source
}

// databaseNow reads the current time with the dialect's query on the poll's connection
func databaseNow(dialect jdbc.Dialect) NowFn {
	return func(ctx context.Context, conn *sqlx.Conn) (time.Time, error) {
		var raw any
		if err := conn.QueryRowxContext(ctx, dialect.CurrentTimeQuery()).Scan(&raw); err != nil {
			return time.Time{}, err
		}
		return typeutils.ReformatDate(raw, time.UTC)
	}
}

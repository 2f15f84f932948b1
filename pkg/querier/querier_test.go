package querier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datazip-inc/olake-jdbc/pkg/jdbc"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteLayout = "2006-01-02 15:04:05"

var (
	eventsTable = types.TableID{Table: "events"}
	t0          = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1          = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	t2          = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedNow    = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
)

type event struct {
	id   int64
	ts   time.Time
	note string
}

func newSQLite(t *testing.T, events ...event) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection of an in-memory database is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE events (id INTEGER, ts TIMESTAMP, d TEXT, tm TEXT, note TEXT)`)
	require.NoError(t, err)
	insertEvents(t, db, events...)
	return db
}

func insertEvents(t *testing.T, db *sqlx.DB, events ...event) {
	t.Helper()
	for _, e := range events {
		_, err := db.Exec(`INSERT INTO events (id, ts, d, tm, note) VALUES (?, ?, ?, ?, ?)`,
			e.id, e.ts.Format(sqliteLayout), e.ts.Format("2006-01-02"), e.ts.Format("15:04:05"), e.note)
		require.NoError(t, err)
	}
}

func fixedClock(now time.Time) NowFn {
	return func(context.Context, *sqlx.Conn) (time.Time, error) {
		return now, nil
	}
}

func column(name string) *types.ColumnID {
	c := types.NewColumnID(eventsTable, name)
	return &c
}

func timestamps(names ...string) types.TimestampColumnStrategy {
	columns := make([]types.ColumnID, len(names))
	for i, name := range names {
		columns[i] = types.NewColumnID(eventsTable, name)
	}
	return types.MultiColumn(columns...)
}

func newQuerier(t *testing.T, db *sqlx.DB, opts Options) *Querier {
	t.Helper()
	opts.Provider = jdbc.NewDBProvider(db, jdbc.SQLiteDialect)
	if opts.Table.IsZero() && opts.Query == "" {
		opts.Table = eventsTable
	}
	if opts.Now == nil {
		opts.Now = fixedClock(fixedNow)
	}
	q, err := New(opts)
	require.NoError(t, err)
	return q
}

// collect polls once and returns the ids of the emitted rows
func collect(t *testing.T, q *Querier) []int64 {
	t.Helper()
	var ids []int64
	err := q.Poll(context.Background(), func(_ context.Context, record types.Record) error {
		ids = append(ids, record["id"].(int64))
		return nil
	})
	require.NoError(t, err)
	return ids
}

func assertOffset(t *testing.T, expectedTS *time.Time, expectedInc *int64, actual types.Offset) {
	t.Helper()
	if expectedTS == nil {
		assert.Nil(t, actual.Timestamp)
	} else if assert.NotNil(t, actual.Timestamp) {
		assert.True(t, expectedTS.Equal(*actual.Timestamp), "expected %s, got %s", expectedTS, actual.Timestamp)
	}
	if expectedInc == nil {
		assert.Nil(t, actual.Incrementing)
	} else if assert.NotNil(t, actual.Incrementing) {
		assert.Equal(t, *expectedInc, *actual.Incrementing)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestPollTimestampIncrementing(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t0, "b"}, event{3, t1, "c"})
	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts")})
	assert.Equal(t, StateUninitialized, q.State())

	var rows []types.Record
	err := q.Poll(context.Background(), func(_ context.Context, record types.Record) error {
		rows = append(rows, record)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	expected := []struct {
		id int64
		ts time.Time
	}{{1, t0}, {2, t0}, {3, t1}}
	for i, row := range rows {
		assert.Equal(t, expected[i].id, row["id"])
		ts, ok := row["ts"].(time.Time)
		require.True(t, ok, "ts is %T", row["ts"])
		assert.True(t, expected[i].ts.Equal(ts))
	}

	assert.Equal(t, StateExhausted, q.State())
	assertOffset(t, &t1, ptr(int64(3)), q.Offset())

	assert.Empty(t, collect(t, q))
	assertOffset(t, &t1, ptr(int64(3)), q.Offset())
}

func TestPollResumesAfterCommittedRow(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t0, "b"}, event{3, t1, "c"})
	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts")})

	stop := errors.New("stop")
	var delivered []int64
	err := q.Poll(context.Background(), func(_ context.Context, record types.Record) error {
		if len(delivered) == 2 {
			return stop
		}
		delivered = append(delivered, record["id"].(int64))
		return nil
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, StateErrored, q.State())
	assertOffset(t, &t0, ptr(int64(2)), q.Offset())

	// a querier seeded with the committed offset picks up exactly after it
	resumed := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts"), InitialOffset: q.Offset()})
	assert.Equal(t, []int64{3}, collect(t, resumed))

	insertEvents(t, db, event{4, t0, "late"}, event{5, t2, "d"})
	assert.Equal(t, []int64{5}, collect(t, resumed), "rows behind the committed offset are not re-read")
}

func TestPollIncrementingOnly(t *testing.T) {
	db := newSQLite(t, event{3, t1, "c"}, event{1, t0, "a"}, event{2, t2, "b"})
	q := newQuerier(t, db, Options{Incrementing: column("id")})

	assert.Equal(t, []int64{1, 2, 3}, collect(t, q))
	assertOffset(t, nil, ptr(int64(3)), q.Offset())

	insertEvents(t, db, event{4, t0, "d"})
	assert.Equal(t, []int64{4}, collect(t, q))
}

func TestPollOffsetsNeverRegress(t *testing.T) {
	db := newSQLite(t, event{5, t0, "a"}, event{1, t1, "b"}, event{9, t1, "c"}, event{2, t2, "d"})
	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts")})

	var previous types.Offset
	err := q.Poll(context.Background(), func(context.Context, types.Record) error {
		current := q.Offset()
		assert.GreaterOrEqual(t, current.Compare(previous), 0)
		previous = current
		return nil
	})
	require.NoError(t, err)
	assertOffset(t, &t2, ptr(int64(2)), q.Offset())
}

func TestPollTimestampGroupCommit(t *testing.T) {
	db := newSQLite(t,
		event{1, t0, "a"},
		event{2, t1, "b"}, event{3, t1, "c"}, event{4, t1, "d"},
		event{5, t2, "e"},
	)
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts")})

	stop := errors.New("stop")
	var seen []int64
	err := q.Poll(context.Background(), func(_ context.Context, record types.Record) error {
		// stop on the last row of the t1 group
		if len(seen) == 3 {
			return stop
		}
		seen = append(seen, record["id"].(int64))
		if len(seen) == 1 {
			assert.True(t, q.Offset().IsZero(), "nothing committed while the t0 group may continue")
		} else {
			assertOffset(t, &t0, nil, q.Offset())
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Len(t, seen, 3)
	assert.Equal(t, int64(1), seen[0])
	// the poll ended inside the t1 group, so the offset stays before the group
	assertOffset(t, &t0, nil, q.Offset())

	ids := collect(t, q)
	assert.ElementsMatch(t, []int64{2, 3, 4, 5}, ids)
	assert.Equal(t, int64(5), ids[len(ids)-1])
	assertOffset(t, &t2, nil, q.Offset())
	assert.Empty(t, collect(t, q))
}

func TestPollTimestampDrainCommitsLastGroup(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"}, event{3, t1, "c"})
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts")})

	assert.ElementsMatch(t, []int64{1, 2, 3}, collect(t, q))
	assertOffset(t, &t1, nil, q.Offset())
}

func TestPollTimestampPerRowCommit(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"}, event{3, t1, "c"})
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts"), CommitStrategy: types.CommitPerRow})

	stop := errors.New("stop")
	emitted := 0
	err := q.Poll(context.Background(), func(context.Context, types.Record) error {
		if emitted == 2 {
			return stop
		}
		emitted++
		return nil
	})
	require.ErrorIs(t, err, stop)
	// per row commits may cut a timestamp group, the remaining row at t1 is skipped on resume
	assertOffset(t, &t1, nil, q.Offset())
	assert.Empty(t, collect(t, q))
}

func TestPollSubSecondRowWithSecondsGranularity(t *testing.T) {
	db := newSQLite(t)
	db.MustExec(`INSERT INTO events (id, ts) VALUES (1, '2024-03-01 10:00:00.500')`)
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts"), Granularity: types.GranularitySeconds})

	assert.Equal(t, []int64{1}, collect(t, q))
	assertOffset(t, ptr(t0.Add(500*time.Millisecond)), nil, q.Offset())
	assert.Empty(t, collect(t, q))
	assert.Empty(t, collect(t, q))
}

func TestPollTimestampsWrittenByDriver(t *testing.T) {
	db := newSQLite(t)
	// the driver stores time.Time arguments with fractional seconds and a zone
	db.MustExec(`INSERT INTO events (id, ts) VALUES (?, ?)`, 1, t0)
	db.MustExec(`INSERT INTO events (id, ts) VALUES (?, ?)`, 2, t0.Add(250*time.Millisecond))

	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts")})
	assert.Equal(t, []int64{1, 2}, collect(t, q))
	assertOffset(t, ptr(t0.Add(250*time.Millisecond)), ptr(int64(2)), q.Offset())
	assert.Empty(t, collect(t, q))

	db.MustExec(`INSERT INTO events (id, ts) VALUES (?, ?)`, 3, t0.Add(250*time.Millisecond))
	assert.Equal(t, []int64{3}, collect(t, q))
	assert.Empty(t, collect(t, q))
}

func TestPollFractionalTimestampOnly(t *testing.T) {
	db := newSQLite(t)
	db.MustExec(`INSERT INTO events (id, ts) VALUES (1, '2024-03-01 10:00:00.500')`)
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts")})

	assert.Equal(t, []int64{1}, collect(t, q))
	assert.Empty(t, collect(t, q))

	resumed := newQuerier(t, db, Options{Timestamps: timestamps("ts"), InitialOffset: q.Offset()})
	assert.Empty(t, collect(t, resumed))
}

func TestPollTimestampDelay(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"})
	q := newQuerier(t, db, Options{
		Incrementing:   column("id"),
		Timestamps:     timestamps("ts"),
		TimestampDelay: time.Hour,
		Now:            fixedClock(t1.Add(30 * time.Minute)),
	})

	assert.Equal(t, []int64{1}, collect(t, q), "rows newer than now minus delay are not visible yet")
	assertOffset(t, &t0, ptr(int64(1)), q.Offset())
}

func TestPollDatabaseClock(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"})
	q, err := New(Options{
		Provider:     jdbc.NewDBProvider(db, jdbc.SQLiteDialect),
		Table:        eventsTable,
		Incrementing: column("id"),
		Timestamps:   timestamps("ts"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, collect(t, q))
}

func TestPollSplitDateTimeColumns(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"}, event{3, t1, "c"})
	split, err := types.NewColumnDateTime(eventsTable, "split|d|tm")
	require.NoError(t, err)

	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: types.SplitDateTime(split)})
	assert.Equal(t, []int64{1, 2, 3}, collect(t, q))
	assertOffset(t, &t1, ptr(int64(3)), q.Offset())

	insertEvents(t, db, event{4, t2, "d"})
	assert.Equal(t, []int64{4}, collect(t, q))
	assertOffset(t, &t2, ptr(int64(4)), q.Offset())
}

func TestPollCoalescedTimestampColumns(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"})
	_, err := db.Exec(`INSERT INTO events (id, ts, d, tm, note) VALUES (2, NULL, NULL, ?, 'b')`, t1.Format(sqliteLayout))
	require.NoError(t, err)

	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts", "tm")})
	assert.Equal(t, []int64{1, 2}, collect(t, q))
	assertOffset(t, &t1, ptr(int64(2)), q.Offset())
}

func TestPollQueryModeWithSuffix(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t0, "b"}, event{3, t1, "c"})
	q := newQuerier(t, db, Options{
		Query:        "SELECT id, note FROM events",
		Suffix:       "LIMIT 2",
		Incrementing: column("id"),
	})
	assert.Equal(t, "SELECT id, note FROM events", q.String())

	assert.Equal(t, []int64{1, 2}, collect(t, q))
	assert.Equal(t, []int64{3}, collect(t, q))
	assert.Empty(t, collect(t, q))
}

func TestPollExtractionError(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"})
	q := newQuerier(t, db, Options{
		Query:        "SELECT id, note FROM events",
		Incrementing: column("id"),
		Timestamps:   timestamps("ts"),
	})

	err := q.Poll(context.Background(), func(context.Context, types.Record) error {
		t.Fatal("rows without an offset must not be emitted")
		return nil
	})
	var extractionErr *types.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "ts", extractionErr.Column)
	assert.False(t, types.IsRetryable(err))
	assert.Equal(t, StateErrored, q.State())
	assert.True(t, q.Offset().IsZero())
}

func TestPollExecutionError(t *testing.T) {
	db := newSQLite(t)
	initial := types.NewIncrementingOffset(7)
	q := newQuerier(t, db, Options{Table: types.TableID{Table: "missing"}, Incrementing: column("id"), InitialOffset: initial})

	err := q.Poll(context.Background(), func(context.Context, types.Record) error { return nil })
	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, StateErrored, q.State())
	assert.True(t, q.Offset().Equal(initial))
}

func TestPollCancelledContext(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"})
	q := newQuerier(t, db, Options{Timestamps: timestamps("ts")})

	ctx, cancel := context.WithCancel(context.Background())
	err := q.Poll(ctx, func(context.Context, types.Record) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, q.Offset().IsZero())
}

func TestPollIsNotReentrant(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"})
	q := newQuerier(t, db, Options{Incrementing: column("id")})

	var nested error
	err := q.Poll(context.Background(), func(ctx context.Context, _ types.Record) error {
		nested = q.Poll(ctx, func(context.Context, types.Record) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrPollInProgress)
}

func TestNewConfigErrors(t *testing.T) {
	db := newSQLite(t)
	provider := jdbc.NewDBProvider(db, jdbc.SQLiteDialect)

	_, err := New(Options{Provider: provider, Table: eventsTable})
	var configErr *types.ConfigError
	require.ErrorAs(t, err, &configErr)

	_, err = New(Options{Provider: provider, Incrementing: column("id")})
	require.ErrorAs(t, err, &configErr)

	_, err = New(Options{Provider: provider, Table: eventsTable, Incrementing: column("id"), Suffix: "LIMIT 10;"})
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Reason, "suffix")
	assert.False(t, types.IsRetryable(err))

	_, err = New(Options{Provider: provider, Query: "SELECT * FROM events;", Incrementing: column("id")})
	require.ErrorAs(t, err, &configErr)

	_, err = NewFromConfig(provider, &types.TableConfig{
		Table:           "events",
		Mode:            types.ModeTimestamp,
		DateTimeColumns: "d|tm",
	}, types.Offset{})
	require.ErrorAs(t, err, &configErr)
}

func TestNewFromConfig(t *testing.T) {
	db := newSQLite(t, event{1, t0, "a"}, event{2, t1, "b"})
	provider := jdbc.NewDBProvider(db, jdbc.SQLiteDialect)

	q, err := NewFromConfig(provider, &types.TableConfig{
		Table:              "events",
		Mode:               types.ModeTimestampIncrementing,
		IncrementingColumn: "id",
		TimestampColumns:   []string{"ts"},
		TopicPrefix:        "jdbc-",
	}, types.NewIncrementingOffset(0).With(nil, &t0))
	require.NoError(t, err)
	assert.Equal(t, "events (topic prefix jdbc-)", q.String())
	assert.Equal(t, types.CommitPerRow, q.opts.CommitStrategy)

	assert.Equal(t, []int64{1, 2}, collect(t, q))
}

func TestOffsetOf(t *testing.T) {
	db := newSQLite(t, event{id: 1, ts: t0})
	q := newQuerier(t, db, Options{Incrementing: column("id"), Timestamps: timestamps("ts")})

	var offsets []types.Offset
	err := q.Poll(context.Background(), func(_ context.Context, record types.Record) error {
		offset, err := q.OffsetOf(record)
		offsets = append(offsets, offset)
		return err
	})
	require.NoError(t, err)
	require.Len(t, offsets, 1)
	assertOffset(t, &t0, ptr(int64(1)), offsets[0])
	assert.True(t, offsets[0].Equal(q.Offset()))
}

package abstract

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datazip-inc/olake-jdbc/destination"
	"github.com/datazip-inc/olake-jdbc/pkg/jdbc"
	"github.com/datazip-inc/olake-jdbc/pkg/offsetstore"
	"github.com/datazip-inc/olake-jdbc/types"
	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/datazip-inc/olake-jdbc/destination/jsonl"
	_ "github.com/mattn/go-sqlite3"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
)

type fixture struct {
	db     *sqlx.DB
	driver *AbstractDriver
	store  *offsetstore.FileStore
	output string
}

func newFixture(t *testing.T, tables ...*types.TableConfig) *fixture {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	db.MustExec(`CREATE TABLE orders (id INTEGER, note TEXT)`)
	db.MustExec(`CREATE TABLE events (id INTEGER, ts TIMESTAMP)`)

	dir := t.TempDir()
	store, err := offsetstore.NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	retries := 1
	driver := NewAbstractDriver()
	*driver.GetConfigRef() = types.SourceConfig{
		JDBCURL:        "jdbc:sqlite::memory:",
		PollIntervalMS: 10,
		MaxRetries:     &retries,
		Tables:         tables,
	}
	driver.provider = jdbc.NewDBProvider(db, jdbc.SQLiteDialect)
	require.NoError(t, driver.Setup(context.Background()))

	return &fixture{db: db, driver: driver, store: store, output: filepath.Join(dir, "records.jsonl")}
}

func (f *fixture) sync(t *testing.T, ctx context.Context, once bool) error {
	t.Helper()
	pool, err := destination.NewWriter(ctx, &types.OutputConfig{Type: "jsonl", Path: f.output, BatchSize: 2})
	require.NoError(t, err)
	defer pool.Close(ctx)

	return f.driver.Incremental(ctx, f.store, pool, SyncOptions{SyncID: "test-sync", Once: once, RetryBackoff: time.Millisecond})
}

func (f *fixture) records(t *testing.T) []*types.RecordRow {
	t.Helper()
	file, err := os.Open(f.output)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer file.Close()

	var records []*types.RecordRow
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var message types.Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &message))
		records = append(records, message.Record)
	}
	require.NoError(t, scanner.Err())
	return records
}

func ordersTable() *types.TableConfig {
	return &types.TableConfig{Table: "orders", Mode: types.ModeIncrementing, IncrementingColumn: "id", TopicPrefix: "shop-"}
}

func eventsTable() *types.TableConfig {
	return &types.TableConfig{Table: "events", Mode: types.ModeTimestampIncrementing, IncrementingColumn: "id", TimestampColumns: []string{"ts"}}
}

func TestIncrementalOnceResumesFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ordersTable(), eventsTable())

	f.db.MustExec(`INSERT INTO orders (id, note) VALUES (1, 'a'), (2, 'b'), (3, 'c')`)
	f.db.MustExec(`INSERT INTO events (id, ts) VALUES (1, ?), (2, ?)`, t0.Format(time.DateTime), t1.Format(time.DateTime))

	require.NoError(t, f.sync(t, ctx, true))
	records := f.records(t)
	require.Len(t, records, 5)

	bySource := map[string]int{}
	for _, record := range records {
		bySource[record.Source]++
		assert.Equal(t, "test-sync", record.SyncID)
	}
	assert.Equal(t, 3, bySource["orders (topic prefix shop-)"])
	assert.Equal(t, 2, bySource["events"])

	offset, err := f.store.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), *offset.Incrementing)

	offset, err = f.store.Load(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(2), *offset.Incrementing)
	assert.True(t, offset.Timestamp.Equal(t1))

	// a fresh driver picks up from the saved offsets
	f.db.MustExec(`INSERT INTO orders (id, note) VALUES (4, 'd')`)
	f.driver = &AbstractDriver{config: f.driver.config, provider: f.driver.provider}
	require.NoError(t, f.sync(t, ctx, true))

	records = f.records(t)
	require.Len(t, records, 6)
	last := records[5]
	assert.Equal(t, "shop-", last.TopicPrefix)
	assert.Equal(t, "d", last.Data["note"])
	assert.Equal(t, int64(4), *last.Offset.Incrementing)
}

func TestIncrementalConfigError(t *testing.T) {
	f := newFixture(t, &types.TableConfig{Table: "orders", Mode: types.ModeIncrementing})

	err := f.sync(t, context.Background(), true)
	var configErr *types.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Empty(t, f.records(t))
}

func TestIncrementalRetriesExecutionErrors(t *testing.T) {
	f := newFixture(t, &types.TableConfig{Table: "missing", Mode: types.ModeIncrementing, IncrementingColumn: "id"})

	err := f.sync(t, context.Background(), true)
	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "failed after 1 retries")
}

func TestIncrementalRetriesDisabled(t *testing.T) {
	f := newFixture(t, &types.TableConfig{Table: "missing", Mode: types.ModeIncrementing, IncrementingColumn: "id"})
	disabled := 0
	f.driver.config.MaxRetries = &disabled

	err := f.sync(t, context.Background(), true)
	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "failed after 0 retries")
}

func TestIncrementalStopsOnCancel(t *testing.T) {
	f := newFixture(t, ordersTable())
	f.db.MustExec(`INSERT INTO orders (id, note) VALUES (1, 'a')`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, f.sync(t, ctx, false))

	require.Len(t, f.records(t), 1)
	offset, err := f.store.Load(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), *offset.Incrementing)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, ordersTable(), eventsTable())
	assert.NoError(t, f.driver.Check(context.Background()))

	f.driver.config.Tables = append(f.driver.config.Tables, &types.TableConfig{Table: "events", Mode: types.ModeTimestamp})
	var configErr *types.ConfigError
	assert.ErrorAs(t, f.driver.Check(context.Background()), &configErr)
}

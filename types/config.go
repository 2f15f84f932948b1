package types

import (
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/utils"
)

// SourceConfig is the connector configuration read by the sync and check commands.
type SourceConfig struct {
	JDBCURL string `json:"jdbc_url" validate:"required" jsonschema:"required,title=JDBC URL,description=Connection url jdbc:<subprotocol>:... or a driver native DSN with a scheme"`
	// Driver and DSN are derived from the url when empty
	Driver string `json:"driver,omitempty" jsonschema:"title=database/sql Driver,description=Registered database/sql driver name"`
	DSN    string `json:"dsn,omitempty" jsonschema:"title=Driver DSN,description=Data source name handed to the driver,format=password"`

	PollIntervalMS int64 `json:"poll_interval_ms" validate:"gte=0" jsonschema:"title=Poll Interval,description=Milliseconds to wait between polls of a table,minimum=0,default=5000"`
	// MaxRetries of a poll that failed with a database error; nil means the default, 0 disables retries
	MaxRetries     *int `json:"max_retries,omitempty" validate:"omitempty,gte=0" jsonschema:"title=Max Retries,description=Retries of a poll that failed with a database error,minimum=0,default=3"`
	MaxConnections int  `json:"max_connections" validate:"gte=0" jsonschema:"title=Max Connections,description=Size of the connection pool shared by all tables,minimum=0,default=10"`

	OffsetStore OffsetStoreConfig `json:"offset_store" jsonschema:"title=Offset Store"`
	Output      OutputConfig      `json:"output" jsonschema:"title=Output"`

	Tables []*TableConfig `json:"tables" validate:"required,min=1,dive" jsonschema:"required,title=Tables,minItems=1"`
}

type OffsetStoreConfig struct {
	Type string `json:"type" validate:"omitempty,oneof=file bolt redis" jsonschema:"title=Store Type,enum=file,enum=bolt,enum=redis,default=file"`
	// Path of the state file or bolt database
	Path string `json:"path,omitempty" jsonschema:"title=Path,description=State file or bolt database"`
	URL  string `json:"url,omitempty" jsonschema:"title=Redis URL,description=redis://host:port/db,format=password"`
}

type OutputConfig struct {
	Type string `json:"type" validate:"omitempty,oneof=jsonl parquet" jsonschema:"title=Output Type,enum=jsonl,enum=parquet,default=jsonl"`
	// Path of the JSON lines file, stdout when empty. Base directory for parquet files.
	Path        string `json:"path,omitempty" validate:"required_if=Type parquet" jsonschema:"title=Path,description=JSON lines file or parquet base directory"`
	Compression string `json:"compression,omitempty" validate:"omitempty,oneof=snappy gzip zstd none" jsonschema:"title=Parquet Compression,enum=snappy,enum=gzip,enum=zstd,enum=none,default=snappy"`
	// BatchSize is the number of records a writer thread buffers before writing
	BatchSize int `json:"batch_size" validate:"gte=0" jsonschema:"title=Batch Size,minimum=0,default=1000"`
}

// TableConfig configures one querier.
type TableConfig struct {
	Table              string               `json:"table,omitempty" validate:"required_without=Query,excluded_with=Query" jsonschema:"title=Table,description=schema.table or table; exclusive with query"`
	Query              string               `json:"query,omitempty" jsonschema:"title=Query,description=Custom SELECT the criteria are appended to"`
	Mode               IncrementalMode      `json:"mode" validate:"required,oneof=incrementing timestamp timestamp+incrementing" jsonschema:"required,title=Mode,enum=incrementing,enum=timestamp,enum=timestamp+incrementing"`
	IncrementingColumn string               `json:"incrementing_column,omitempty" jsonschema:"title=Incrementing Column"`
	TimestampColumns   []string             `json:"timestamp_columns,omitempty" jsonschema:"title=Timestamp Columns,description=Coalesced in order"`
	DateTimeColumns    string               `json:"datetime_columns,omitempty" jsonschema:"title=Date Time Columns,description=Split columns encoded as name|date|time"`
	TimestampDelayMS   int64                `json:"timestamp_delay_ms" validate:"gte=0" jsonschema:"title=Timestamp Delay,description=Milliseconds a row must age before it is read,minimum=0"`
	Timezone           string               `json:"timezone,omitempty" validate:"omitempty,timezone" jsonschema:"title=Timezone,description=IANA zone of zone-less timestamp columns,default=UTC"`
	QuerySuffix        string               `json:"query_suffix,omitempty" jsonschema:"title=Query Suffix,description=Appended after ORDER BY e.g. LIMIT 1000"`
	Granularity        TimestampGranularity `json:"timestamp_granularity,omitempty" validate:"omitempty,oneof=seconds millis micros nanos" jsonschema:"title=Timestamp Granularity,description=Precision of the database clock,enum=seconds,enum=millis,enum=micros,enum=nanos,default=nanos"`
	CommitStrategy     CommitStrategy       `json:"commit_strategy,omitempty" validate:"omitempty,oneof=row timestamp_group" jsonschema:"title=Commit Strategy,enum=row,enum=timestamp_group"`
	TopicPrefix        string               `json:"topic_prefix,omitempty" jsonschema:"title=Topic Prefix"`
}

// Name is the identity of the table config, used as offset key
func (t *TableConfig) Name() string {
	if t.Table != "" {
		return t.Table
	}
	return t.Query
}

func (t *TableConfig) QueryMode() QueryMode {
	if t.Table != "" {
		return QueryModeTable
	}
	return QueryModeQuery
}

func (t *TableConfig) TimestampDelay() time.Duration {
	return time.Duration(t.TimestampDelayMS) * time.Millisecond
}

func (t *TableConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, &ConfigError{Source: t.Name(), Reason: fmt.Sprintf("invalid timezone %q: %s", t.Timezone, err)}
	}
	return loc, nil
}

// TimestampStrategy builds the timestamp column strategy; split columns win
// over plain timestamp columns.
func (t *TableConfig) TimestampStrategy(table TableID) (TimestampColumnStrategy, error) {
	if !t.Mode.UsesTimestamp() {
		return TimestampColumnStrategy{}, nil
	}
	if t.DateTimeColumns != "" {
		columns, err := NewColumnDateTime(table, t.DateTimeColumns)
		if err != nil {
			return TimestampColumnStrategy{}, err
		}
		return SplitDateTime(columns), nil
	}
	columns := make([]ColumnID, 0, len(t.TimestampColumns))
	for _, name := range t.TimestampColumns {
		if name == "" {
			continue
		}
		columns = append(columns, NewColumnID(table, name))
	}
	if len(columns) == 0 {
		return TimestampColumnStrategy{}, &ConfigError{Source: t.Name(), Reason: fmt.Sprintf("mode %s requires timestamp_columns or datetime_columns", t.Mode)}
	}
	return MultiColumn(columns...), nil
}

// Incrementing returns the incrementing column when the mode uses one
func (t *TableConfig) Incrementing(table TableID) (*ColumnID, error) {
	if !t.Mode.UsesIncrementing() {
		return nil, nil
	}
	if t.IncrementingColumn == "" {
		return nil, &ConfigError{Source: t.Name(), Reason: fmt.Sprintf("mode %s requires incrementing_column", t.Mode)}
	}
	column := NewColumnID(table, t.IncrementingColumn)
	return &column, nil
}

func (t *TableConfig) EffectiveCommitStrategy() CommitStrategy {
	if t.CommitStrategy != "" {
		return t.CommitStrategy
	}
	return DefaultCommitStrategy(t.Mode)
}

// Retries returns the configured retries of a failed poll
func (c *SourceConfig) Retries() int {
	if c.MaxRetries == nil {
		return constants.DefaultMaxRetries
	}
	return *c.MaxRetries
}

func (c *SourceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Validate checks the struct tags and fills defaults
func (c *SourceConfig) Validate() error {
	if err := utils.Validate(c); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = constants.DefaultPollInterval.Milliseconds()
	}
	if c.MaxRetries == nil {
		retries := constants.DefaultMaxRetries
		c.MaxRetries = &retries
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = constants.DefaultThreadCount
	}
	if c.OffsetStore.Type == "" {
		c.OffsetStore.Type = "file"
	}
	if c.Output.Type == "" {
		c.Output.Type = "jsonl"
	}
	if c.Output.BatchSize == 0 {
		c.Output.BatchSize = constants.DefaultBatchSize
	}
	return nil
}

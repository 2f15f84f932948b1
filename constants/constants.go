package constants

import "time"

// offset map field names; persisted offsets depend on them staying stable
const (
	IncrementingField   = "incrementing"
	TimestampField      = "timestamp"
	TimestampNanosField = "timestamp_nanos"
)

// viper keys
const (
	ConfigFolder = "CONFIG_FOLDER"
	StatePath    = "STATE_PATH"
	LogLevel     = "LOG_LEVEL"
	LogFile      = "LOG_FILE"
	MetricsAddr  = "METRICS_ADDR"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = time.Second
	DefaultThreadCount    = 10
	DefaultBatchSize      = 1000
	DefaultStateFileName  = "state.json"
	DefaultBoltBucketName = "offsets"
	DefaultRedisKeyPrefix = "olake-jdbc:offset:"
	DateTimeSeparator     = "|"
)

type DriverType string

const (
	Generic  DriverType = "generic"
	Postgres DriverType = "postgresql"
	MySQL    DriverType = "mysql"
	MSSQL    DriverType = "sqlserver"
	Oracle   DriverType = "oracle"
	SQLite   DriverType = "sqlite"
	Cache    DriverType = "cache"
)

package types

import (
	"fmt"
	"time"
)

// IncrementalMode selects the watermark columns a querier uses
type IncrementalMode string

const (
	ModeIncrementing          IncrementalMode = "incrementing"
	ModeTimestamp             IncrementalMode = "timestamp"
	ModeTimestampIncrementing IncrementalMode = "timestamp+incrementing"
)

func (m IncrementalMode) UsesIncrementing() bool {
	return m == ModeIncrementing || m == ModeTimestampIncrementing
}

func (m IncrementalMode) UsesTimestamp() bool {
	return m == ModeTimestamp || m == ModeTimestampIncrementing
}

// QueryMode tells whether a querier reads a whole table or a custom query
type QueryMode string

const (
	QueryModeTable QueryMode = "table"
	QueryModeQuery QueryMode = "query"
)

// CommitStrategy decides when an extracted offset becomes the committed offset.
type CommitStrategy string

const (
	// CommitPerRow commits the offset of every emitted row
	CommitPerRow CommitStrategy = "row"
	// CommitTimestampGroup holds the commit until every row sharing the
	// current timestamp has been read, or the cursor is drained.
	CommitTimestampGroup CommitStrategy = "timestamp_group"
)

// DefaultCommitStrategy is per row when an incrementing column breaks timestamp ties
func DefaultCommitStrategy(mode IncrementalMode) CommitStrategy {
	if mode == ModeTimestamp {
		return CommitTimestampGroup
	}
	return CommitPerRow
}

// TimestampGranularity is the precision of the database clock. The upper
// bound of a poll is truncated to it, row watermarks keep full precision.
type TimestampGranularity string

const (
	GranularitySeconds TimestampGranularity = "seconds"
	GranularityMillis  TimestampGranularity = "millis"
	GranularityMicros  TimestampGranularity = "micros"
	GranularityNanos   TimestampGranularity = "nanos"
)

func (g TimestampGranularity) Duration() (time.Duration, error) {
	switch g {
	case GranularitySeconds:
		return time.Second, nil
	case GranularityMillis:
		return time.Millisecond, nil
	case GranularityMicros:
		return time.Microsecond, nil
	case GranularityNanos, "":
		return time.Nanosecond, nil
	default:
		return 0, fmt.Errorf("unknown timestamp granularity %q", string(g))
	}
}

// Truncate drops precision finer than the granularity; unknown values keep nanos
func (g TimestampGranularity) Truncate(t time.Time) time.Time {
	d, err := g.Duration()
	if err != nil || d == time.Nanosecond {
		return t
	}
	return t.Truncate(d)
}

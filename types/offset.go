package types

import (
	"bytes"
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/utils/typeutils"
	json "github.com/goccy/go-json"
)

// Offset is the resumable watermark of a querier. A nil field means the
// watermark component has not been observed yet.
type Offset struct {
	Incrementing *int64
	Timestamp    *time.Time
}

func NewIncrementingOffset(value int64) Offset {
	return Offset{Incrementing: &value}
}

func NewTimestampOffset(ts time.Time) Offset {
	return Offset{Timestamp: &ts}
}

// With returns a copy carrying both values
func (o Offset) With(incrementing *int64, ts *time.Time) Offset {
	out := o
	if incrementing != nil {
		v := *incrementing
		out.Incrementing = &v
	}
	if ts != nil {
		t := *ts
		out.Timestamp = &t
	}
	return out
}

func (o Offset) IsZero() bool {
	return o.Incrementing == nil && o.Timestamp == nil
}

// IncrementingOrDefault returns -1 when no incrementing value is known
func (o Offset) IncrementingOrDefault() int64 {
	if o.Incrementing == nil {
		return -1
	}
	return *o.Incrementing
}

// TimestampOrDefault returns the unix epoch when no timestamp is known
func (o Offset) TimestampOrDefault() time.Time {
	if o.Timestamp == nil {
		return time.Unix(0, 0).UTC()
	}
	return *o.Timestamp
}

// Compare orders offsets by timestamp first and incrementing value second,
// matching the ORDER BY of the generated queries.
func (o Offset) Compare(other Offset) int {
	if cmp := typeutils.Compare(timeOrNil(o.Timestamp), timeOrNil(other.Timestamp)); cmp != 0 {
		return cmp
	}
	return typeutils.Compare(int64OrNil(o.Incrementing), int64OrNil(other.Incrementing))
}

func (o Offset) Equal(other Offset) bool {
	return o.Compare(other) == 0
}

// ToMap encodes the offset with the stable field names used for persistence
func (o Offset) ToMap() map[string]any {
	out := make(map[string]any, 3)
	if o.Incrementing != nil {
		out[constants.IncrementingField] = *o.Incrementing
	}
	if o.Timestamp != nil {
		out[constants.TimestampField] = o.Timestamp.UnixMilli()
		out[constants.TimestampNanosField] = int64(o.Timestamp.Nanosecond())
	}
	return out
}

// OffsetFromMap decodes a persisted offset. Numbers may arrive as float64 or
// json.Number when the map was read back from JSON.
func OffsetFromMap(m map[string]any) (Offset, error) {
	var offset Offset
	if len(m) == 0 {
		return offset, nil
	}

	if raw, found := m[constants.IncrementingField]; found && raw != nil {
		v, err := typeutils.ReformatInt64(raw)
		if err != nil {
			return offset, fmt.Errorf("invalid %s offset %v: %w", constants.IncrementingField, raw, err)
		}
		offset.Incrementing = &v
	}

	if raw, found := m[constants.TimestampField]; found && raw != nil {
		millis, err := typeutils.ReformatInt64(raw)
		if err != nil {
			return offset, fmt.Errorf("invalid %s offset %v: %w", constants.TimestampField, raw, err)
		}
		ts := time.UnixMilli(millis).UTC()
		if rawNanos, found := m[constants.TimestampNanosField]; found && rawNanos != nil {
			nanos, err := typeutils.ReformatInt64(rawNanos)
			if err != nil {
				return offset, fmt.Errorf("invalid %s offset %v: %w", constants.TimestampNanosField, rawNanos, err)
			}
			// millis already carry the sub second part up to millisecond precision
			ts = time.Unix(ts.Unix(), nanos).UTC()
		}
		offset.Timestamp = &ts
	}
	return offset, nil
}

func (o Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToMap())
}

func (o *Offset) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	offset, err := OffsetFromMap(raw)
	if err != nil {
		return err
	}
	*o = offset
	return nil
}

func (o Offset) String() string {
	inc, ts := "<nil>", "<nil>"
	if o.Incrementing != nil {
		inc = fmt.Sprintf("%d", *o.Incrementing)
	}
	if o.Timestamp != nil {
		ts = o.Timestamp.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("Offset{incrementing=%s, timestamp=%s}", inc, ts)
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func int64OrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

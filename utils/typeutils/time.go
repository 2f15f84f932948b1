/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package typeutils

import (
	"fmt"
	"strings"
	"time"
)

// layouts tried in order when a driver hands back timestamps as text
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var clockLayouts = []string{
	"15:04:05.999999999",
	"15:04:05",
	"15:04",
	"150405",
}

// ReformatDate converts a driver value into a time. Strings without an explicit
// offset are interpreted in loc.
func ReformatDate(v any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch val := v.(type) {
	case nil:
		return time.Time{}, ErrNullValue
	case time.Time:
		return val, nil
	case *time.Time:
		if val == nil {
			return time.Time{}, ErrNullValue
		}
		return *val, nil
	case []byte:
		return parseStringTimestamp(string(val), loc)
	case string:
		return parseStringTimestamp(val, loc)
	case int64:
		return time.UnixMilli(val).In(loc), nil
	case int:
		return time.UnixMilli(int64(val)).In(loc), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %v of type %T", v, v)
	}
}

// CombineDateTime joins the calendar day of date with the wall clock of clock in loc.
// Either part may be a time.Time or a string.
func CombineDateTime(date, clock any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := ReformatDate(date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date part: %w", err)
	}
	wall, err := parseClock(clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time part: %w", err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc), nil
}

func parseClock(v any, loc *time.Location) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, ErrNullValue
	case time.Time:
		return val, nil
	case time.Duration:
		return time.Date(0, 1, 1, 0, 0, 0, 0, loc).Add(val), nil
	case []byte:
		return parseClock(string(val), loc)
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range clockLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		// some drivers return TIME columns as full timestamps
		return parseStringTimestamp(s, loc)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %v of type %T", v, v)
	}
}

func parseStringTimestamp(value string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, ErrNullValue
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", value)
}

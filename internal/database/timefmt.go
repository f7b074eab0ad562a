package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every timestamp column.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullableTime returns nil for a nil or zero time so the column stores NULL.
func NullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return FormatTime(*t)
}

// ParseTime accepts TimeLayout plus RFC3339 variants written by older tooling.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", value)
}

// ScanTime converts a nullable text column into an optional time.
func ScanTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	t, err := ParseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NullableString returns nil for blank strings.
func NullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// NullableInt64 returns nil for a nil pointer.
func NullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// ScanInt64 converts a nullable integer column into an optional value.
func ScanInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

// BoolInt stores booleans as 0/1 so both dialects share one column type.
func BoolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

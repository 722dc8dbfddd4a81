package model

import (
	"encoding/json"
	"strings"
	"time"
)

// timestampLayouts are the formats the backend has been seen to emit.
// Zone-less values are server local time and are read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s using the known backend layouts. It returns
// false for empty or unrecognized input.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for i, layout := range timestampLayouts {
		var t time.Time
		var err error
		if i < 2 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp decodes from an ISO string, a Jackson-style
// [y, m, d, h, min, s] array, or epoch milliseconds.
type Timestamp struct {
	time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}

	var s string
	if json.Unmarshal(data, &s) == nil {
		t.Time, t.Valid = ParseTimestamp(s)
		return nil
	}

	var parts []int
	if json.Unmarshal(data, &parts) == nil && len(parts) >= 3 {
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2],
			parts[3], parts[4], parts[5], parts[6], time.Local)
		t.Valid = true
		return nil
	}

	var millis int64
	if json.Unmarshal(data, &millis) == nil && millis > 0 {
		t.Time = time.UnixMilli(millis)
		t.Valid = true
	}
	return nil
}

// Ptr returns a pointer to the time, or nil when invalid.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

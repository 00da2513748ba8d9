package models

import "time"

// TimeLayout is the ISO-8601 layout used on disk and on the wire. The
// fraction is fixed-width so that stored strings sort chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NormalizeTime converts t to UTC. The zero time is kept as is.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

// FormatTime renders t in TimeLayout, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an RFC 3339 timestamp with any fraction width. The empty
// string yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

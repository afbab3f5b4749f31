package interaction

import (
	"strconv"
	"strings"
	"time"
)

// zonedLayouts carry their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	time.RFC1123Z, // telephony provider dates: "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,
	"2006-01-02", // date-only ISO values are UTC midnight
}

// localLayouts have no offset and are read in the local zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a feed timestamp.
// It accepts:
// - Unix timestamps in seconds or milliseconds (e.g., "1736582400", "1736582400000")
// - RFC3339 / ISO 8601 with zone (e.g., "2026-01-11T12:00:00.000Z")
// - RFC1123 with numeric or named zone
// - ISO 8601 date only, read as UTC midnight
// - ISO 8601 date-time without zone, read as local time
// The second return value is false when nothing matched.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		switch {
		case n > 1000000000 && n < 9999999999:
			return time.Unix(n, 0), true
		case n > 1000000000000 && n < 9999999999999:
			return time.UnixMilli(n), true
		}
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

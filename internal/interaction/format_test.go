package interaction

import (
	"testing"
	"time"
)

func TestTopic(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{name: "truncated", message: "I would like to practice basic vocabulary today please", want: "I would like to practice..."},
		{name: "short", message: "Teach me math", want: "Teach me math"},
		{name: "exactly five", message: "one two three four five", want: "one two three four five"},
		{name: "extra whitespace", message: "a  b\tc d e f", want: "a b c d e..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Topic(tc.message); got != tc.want {
				t.Fatalf("Topic(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}

func TestFormatLocation(t *testing.T) {
	if got := FormatLocation("Kigali", "KG", ""); got != "Kigali KG" {
		t.Fatalf("FormatLocation = %q, want %q", got, "Kigali KG")
	}
	if got := FormatLocation("", "", ""); got != "" {
		t.Fatalf("FormatLocation(empty) = %q, want empty", got)
	}
	if got := FormatLocation("", "", "RW"); got != "RW" {
		t.Fatalf("FormatLocation(country only) = %q, want %q", got, "RW")
	}
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		start, end string
		want       int64
	}{
		{"2024-01-01T00:00:00Z", "2024-01-01T00:01:30Z", 90},
		{"2024-01-01T00:00:00Z", "", 0},
		{"2024-01-01T00:00:00Z", "2024-01-01T00:00:00.999Z", 0},
		{"2024-01-01T00:01:00Z", "2024-01-01T00:00:00Z", 0},
		{"Mon, 01 Jan 2024 00:00:00 +0000", "Mon, 01 Jan 2024 00:00:42 +0000", 42},
		{"not a date", "2024-01-01T00:00:00Z", 0},
	}
	for _, tc := range cases {
		if got := DurationSeconds(tc.start, tc.end); got != tc.want {
			t.Errorf("DurationSeconds(%q, %q) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-01T12:00:00Z", "2024-01-01T12:00:00.000Z", "1704110400", "1704110400000", "Mon, 01 Jan 2024 12:00:00 +0000"} {
		got, ok := ParseTimestamp(in)
		if !ok {
			t.Errorf("ParseTimestamp(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}

	local, ok := ParseTimestamp("2024-01-01 12:00:00.123456")
	if !ok || local.Location() != time.Local {
		t.Fatalf("ParseTimestamp(python utc string) = %v, %v", local, ok)
	}

	dateOnly, ok := ParseTimestamp("2024-01-01")
	if !ok || !dateOnly.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ParseTimestamp(date only) = %v, %v; want UTC midnight", dateOnly, ok)
	}

	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Fatalf("ParseTimestamp(yesterday) succeeded")
	}
}

func TestRowTimeUsed(t *testing.T) {
	if got := (Row{DurationSeconds: 90}).TimeUsed(); got != "90s" {
		t.Fatalf("TimeUsed = %q", got)
	}
	if got := (Row{}).TimeUsed(); got != Placeholder {
		t.Fatalf("TimeUsed = %q", got)
	}
}

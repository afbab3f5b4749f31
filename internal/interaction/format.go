package interaction

import (
	"strings"
)

const topicWords = 5

// FormatLocation renders "<city> <state> <country>" trimmed; empty when all parts are empty.
func FormatLocation(city, state, country string) string {
	return strings.TrimSpace(present(city) + " " + present(state) + " " + present(country))
}

// DurationSeconds returns whole seconds between start and end, or 0 when either
// timestamp is absent or unparseable or the span is not positive.
func DurationSeconds(start, end string) int64 {
	if present(start) == "" || present(end) == "" {
		return 0
	}
	s, ok := ParseTimestamp(start)
	if !ok {
		return 0
	}
	e, ok := ParseTimestamp(end)
	if !ok {
		return 0
	}
	ms := e.Sub(s).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return ms / 1000
}

// Topic returns the first five words of message followed by "..." when truncated.
// Messages of five words or fewer are returned unchanged.
func Topic(message string) string {
	words := strings.Fields(message)
	if len(words) <= topicWords {
		return message
	}
	return strings.Join(words[:topicWords], " ") + "..."
}

// topicFor derives a row's topic from its user message, then its event type.
func topicFor(r Row) string {
	if r.UserMessage != "" {
		return Topic(r.UserMessage)
	}
	return r.EventType
}

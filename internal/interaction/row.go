// Package interaction reconciles the three upstream feeds into one table of
// interaction rows. Rows are per source event, never per call: the call SID is only
// used to look up telephony metadata for enrichment.
package interaction

import (
	"strconv"
	"time"
)

// Source tags the feed a row was built from. The tag is the first segment of the row key.
type Source string

const (
	SourceCall   Source = "call"
	SourceOpenAI Source = "openai"
	SourceTwilio Source = "twilio"
)

// Placeholder is rendered for text fields no source supplied.
const Placeholder = "-"

// GeneralCallTopic is the topic of a telephony row that has nothing more specific.
const GeneralCallTopic = "General Call"

// Field names a call-metadata field that enrichment may fill.
type Field string

const (
	FieldFromNumber   Field = "from_number"
	FieldCallStatus   Field = "call_status"
	FieldLocation     Field = "location"
	FieldInteractions Field = "interactions"
)

// callMetadata lists the fields enrichment tries to fill, in report order.
var callMetadata = []Field{FieldFromNumber, FieldCallStatus, FieldLocation, FieldInteractions}

// Row is one unified interaction row.
//
// Text fields are empty when no source supplied them; the placeholder is applied only when
// rendering (see Text). Missing lists call-metadata fields that neither the row's own record
// nor a matching telephony record could provide, so callers can tell a genuine zero from a
// missing cross-reference.
type Row struct {
	Key       string    `json:"key"`
	Source    Source    `json:"source"`
	CallSID   string    `json:"call_sid"`
	Timestamp string    `json:"timestamp"`
	At        time.Time `json:"-"`

	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number,omitempty"`
	Direction  string `json:"direction,omitempty"`

	EventType   string `json:"event_type"`
	UserMessage string `json:"user_message"`
	AIResponse  string `json:"ai_response"`

	CallStatus      string `json:"call_status"`
	Location        string `json:"location"`
	Interactions    int64  `json:"interactions"`
	DurationSeconds int64  `json:"time_used_seconds"`
	Topic           string `json:"topic_discussed"`

	OpenAIModel string  `json:"openai_model"`
	TokensUsed  int64   `json:"tokens_used"`
	CostUSD     float64 `json:"cost_usd"`

	Matched bool    `json:"telephony_matched"`
	Missing []Field `json:"missing_fields,omitempty"`
}

// Partial reports whether any call-metadata field is still missing.
func (r Row) Partial() bool { return len(r.Missing) > 0 }

// TimeUsed renders the call duration as "<n>s", or the placeholder when unknown.
func (r Row) TimeUsed() string {
	if r.DurationSeconds <= 0 {
		return Placeholder
	}
	return strconv.FormatInt(r.DurationSeconds, 10) + "s"
}

// Text returns s, or the placeholder when s is empty.
func Text(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// Key builds the synthetic row key "<source>-<call_sid>-<timestamp>-<index>".
func Key(source Source, callSID, timestamp string, index int) string {
	return string(source) + "-" + callSID + "-" + timestamp + "-" + strconv.Itoa(index)
}

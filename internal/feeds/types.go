// Package feeds fetches the three upstream event feeds consumed by the interaction log:
// conversational call events, AI usage events and telephony call records.
// Records are decoded leniently because the upstream backend is loosely typed
// (numbers sometimes arrive as strings, optional fields as null).
package feeds

import (
	"github.com/tidwall/gjson"
)

// CallEvent is one conversational turn (or system event) recorded during a phone call.
type CallEvent struct {
	CallSID    string `json:"call_sid"`
	FromNumber string `json:"from_number"`
	EventType  string `json:"event_type"`
	Message    string `json:"message"`
	AIResponse string `json:"ai_response"`
	Timestamp  string `json:"timestamp"`
}

// UsageEvent is one model invocation billed against a call.
type UsageEvent struct {
	CallSID          string  `json:"call_sid"`
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
	RequestType      string  `json:"request_type"`
	Timestamp        string  `json:"timestamp"`
}

// TelephonyRecord is the provider's record of one physical call.
// It is authoritative for call metadata. EndTime is empty while the call is in progress.
type TelephonyRecord struct {
	CallSID      string `json:"call_sid"`
	FromNumber   string `json:"from_number"`
	ToNumber     string `json:"to_number"`
	CallStatus   string `json:"call_status"`
	Direction    string `json:"direction"`
	FromCity     string `json:"from_city"`
	FromState    string `json:"from_state"`
	FromCountry  string `json:"from_country"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time,omitempty"`
	Interactions int64  `json:"interactions"`
}

// envelopeKeys lists the object keys a feed may wrap its record array in.
var envelopeKeys = []string{"calls", "usage", "records", "data", "items"}

// recordArray locates the record array inside a feed payload.
// A bare JSON array is returned as is; otherwise the first known envelope key holding an array wins.
func recordArray(payload []byte) ([]gjson.Result, bool) {
	if !gjson.ValidBytes(payload) {
		return nil, false
	}
	root := gjson.ParseBytes(payload)
	if root.IsArray() {
		return root.Array(), true
	}
	if !root.IsObject() {
		return nil, false
	}
	for _, key := range envelopeKeys {
		if v := root.Get(key); v.IsArray() {
			return v.Array(), true
		}
	}
	return nil, false
}

// text returns a string field, treating null and missing values as empty.
func text(r gjson.Result, path string) string {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

func decodeCallEvent(r gjson.Result) CallEvent {
	return CallEvent{
		CallSID:    text(r, "call_sid"),
		FromNumber: text(r, "from_number"),
		EventType:  text(r, "event_type"),
		Message:    text(r, "message"),
		AIResponse: text(r, "ai_response"),
		Timestamp:  text(r, "timestamp"),
	}
}

func decodeUsageEvent(r gjson.Result) UsageEvent {
	return UsageEvent{
		CallSID:          text(r, "call_sid"),
		Model:            text(r, "model"),
		PromptTokens:     r.Get("prompt_tokens").Int(),
		CompletionTokens: r.Get("completion_tokens").Int(),
		TotalTokens:      r.Get("total_tokens").Int(),
		EstimatedCost:    r.Get("estimated_cost").Float(),
		RequestType:      text(r, "request_type"),
		Timestamp:        text(r, "timestamp"),
	}
}

func decodeTelephonyRecord(r gjson.Result) TelephonyRecord {
	return TelephonyRecord{
		CallSID:      text(r, "call_sid"),
		FromNumber:   text(r, "from_number"),
		ToNumber:     text(r, "to_number"),
		CallStatus:   text(r, "call_status"),
		Direction:    text(r, "direction"),
		FromCity:     text(r, "from_city"),
		FromState:    text(r, "from_state"),
		FromCountry:  text(r, "from_country"),
		StartTime:    text(r, "start_time"),
		EndTime:      text(r, "end_time"),
		Interactions: r.Get("interactions").Int(),
	}
}

// DecodeCallEvents parses a calls feed payload.
func DecodeCallEvents(payload []byte) ([]CallEvent, error) {
	items, ok := recordArray(payload)
	if !ok {
		return nil, ErrMalformedPayload
	}
	out := make([]CallEvent, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		out = append(out, decodeCallEvent(item))
	}
	return out, nil
}

// DecodeUsageEvents parses a usage feed payload.
func DecodeUsageEvents(payload []byte) ([]UsageEvent, error) {
	items, ok := recordArray(payload)
	if !ok {
		return nil, ErrMalformedPayload
	}
	out := make([]UsageEvent, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		out = append(out, decodeUsageEvent(item))
	}
	return out, nil
}

// DecodeTelephonyRecords parses a telephony feed payload.
func DecodeTelephonyRecords(payload []byte) ([]TelephonyRecord, error) {
	items, ok := recordArray(payload)
	if !ok {
		return nil, ErrMalformedPayload
	}
	out := make([]TelephonyRecord, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		out = append(out, decodeTelephonyRecord(item))
	}
	return out, nil
}

package interaction

import (
	"strings"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
)

// rowState is a row under construction.
// interactionsSet distinguishes a supplied zero from an absent count.
type rowState struct {
	row             Row
	interactionsSet bool
}

// Builder assembles unified rows from the three feeds.
// A Builder is single-use: create one per refresh cycle.
type Builder struct {
	rows      map[string]*rowState
	order     []string
	telephony map[string]*feeds.TelephonyRecord
}

// NewBuilder returns a builder that enriches rows from the given telephony records.
func NewBuilder(telephony []feeds.TelephonyRecord) *Builder {
	b := &Builder{
		rows:      make(map[string]*rowState),
		telephony: make(map[string]*feeds.TelephonyRecord, len(telephony)),
	}
	for i := range telephony {
		sid := telephony[i].CallSID
		if sid == "" {
			continue
		}
		// First record per call wins.
		if _, ok := b.telephony[sid]; !ok {
			b.telephony[sid] = &telephony[i]
		}
	}
	return b
}

// Build runs the three passes in order (calls, usage, telephony) and returns the rows
// sorted ascending by timestamp. The result always holds exactly one row per input record.
func Build(calls []feeds.CallEvent, usage []feeds.UsageEvent, telephony []feeds.TelephonyRecord) []Row {
	b := NewBuilder(telephony)
	b.AddCalls(calls)
	b.AddUsage(usage)
	b.AddTelephony(telephony)
	return b.Rows()
}

// AddCalls runs the call-event pass.
func (b *Builder) AddCalls(calls []feeds.CallEvent) {
	for i, ev := range calls {
		st := b.upsert(SourceCall, ev.CallSID, ev.Timestamp, i)
		r := &st.row
		setIfEmpty(&r.FromNumber, ev.FromNumber)
		setIfEmpty(&r.EventType, ev.EventType)
		setIfEmpty(&r.UserMessage, ev.Message)
		setIfEmpty(&r.AIResponse, ev.AIResponse)
		b.enrich(st)
		r.Topic = topicFor(*r)
	}
}

// AddUsage runs the AI-usage pass.
func (b *Builder) AddUsage(usage []feeds.UsageEvent) {
	for i, ev := range usage {
		st := b.upsert(SourceOpenAI, ev.CallSID, ev.Timestamp, i)
		r := &st.row
		setIfEmpty(&r.OpenAIModel, ev.Model)
		if r.TokensUsed == 0 {
			r.TokensUsed = ev.TotalTokens
		}
		if r.CostUSD == 0 {
			r.CostUSD = ev.EstimatedCost
		}
		if present(ev.RequestType) != "" {
			setIfEmpty(&r.EventType, "openai_"+ev.RequestType)
		}
		b.enrich(st)
		r.Topic = topicFor(*r)
	}
}

// AddTelephony runs the telephony pass. Telephony rows take their timestamp from start_time
// and compute their duration from their own record.
func (b *Builder) AddTelephony(telephony []feeds.TelephonyRecord) {
	for i := range telephony {
		rec := &telephony[i]
		st := b.upsert(SourceTwilio, rec.CallSID, rec.StartTime, i)
		r := &st.row
		applyTelephony(st, rec)
		setIfEmpty(&r.ToNumber, rec.ToNumber)
		setIfEmpty(&r.Direction, rec.Direction)
		if r.DurationSeconds == 0 {
			r.DurationSeconds = DurationSeconds(rec.StartTime, rec.EndTime)
		}
		r.Matched = true
		b.enrich(st)
		r.Topic = topicFor(*r)
		if r.Topic == "" {
			r.Topic = GeneralCallTopic
		}
	}
}

// Rows returns the built rows sorted ascending by timestamp.
// Rows with equal timestamps keep their insertion order.
func (b *Builder) Rows() []Row {
	out := make([]Row, 0, len(b.order))
	for _, key := range b.order {
		st := b.rows[key]
		st.row.Missing = missingFields(st)
		out = append(out, st.row)
	}
	SortAscending(out)
	return out
}

func (b *Builder) upsert(source Source, callSID, timestamp string, index int) *rowState {
	key := Key(source, callSID, timestamp, index)
	if st, ok := b.rows[key]; ok {
		return st
	}
	at, _ := ParseTimestamp(timestamp)
	st := &rowState{row: Row{
		Key:       key,
		Source:    source,
		CallSID:   callSID,
		Timestamp: timestamp,
		At:        at,
	}}
	b.rows[key] = st
	b.order = append(b.order, key)
	return st
}

// enrich fills still-missing call metadata from the first telephony record sharing the call SID.
func (b *Builder) enrich(st *rowState) {
	if st.row.CallSID == "" {
		return
	}
	rec, ok := b.telephony[st.row.CallSID]
	if !ok {
		return
	}
	st.row.Matched = true
	applyTelephony(st, rec)
}

func applyTelephony(st *rowState, rec *feeds.TelephonyRecord) {
	r := &st.row
	setIfEmpty(&r.FromNumber, rec.FromNumber)
	setIfEmpty(&r.CallStatus, rec.CallStatus)
	setIfEmpty(&r.Location, FormatLocation(rec.FromCity, rec.FromState, rec.FromCountry))
	if !st.interactionsSet {
		r.Interactions = rec.Interactions
		st.interactionsSet = true
	}
}

func missingFields(st *rowState) []Field {
	var missing []Field
	for _, f := range callMetadata {
		switch f {
		case FieldFromNumber:
			if st.row.FromNumber == "" {
				missing = append(missing, f)
			}
		case FieldCallStatus:
			if st.row.CallStatus == "" {
				missing = append(missing, f)
			}
		case FieldLocation:
			if st.row.Location == "" {
				missing = append(missing, f)
			}
		case FieldInteractions:
			if !st.interactionsSet {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// present normalises an upstream text value: blanks and the placeholder count as absent.
func present(s string) string {
	if t := strings.TrimSpace(s); t == "" || t == Placeholder {
		return ""
	}
	return s
}

func setIfEmpty(dst *string, value string) {
	if *dst != "" {
		return
	}
	*dst = present(value)
}

package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
)

func sampleFeeds() ([]feeds.CallEvent, []feeds.UsageEvent, []feeds.TelephonyRecord) {
	calls := []feeds.CallEvent{
		{CallSID: "CA1", FromNumber: "-", EventType: "conversation", Message: "I would like to practice basic vocabulary today please", AIResponse: "Great, let's start.", Timestamp: "2024-01-01T00:00:10Z"},
		{CallSID: "CA2", FromNumber: "+250700000002", EventType: "conversation", Message: "Teach me math", AIResponse: "Sure.", Timestamp: "2024-01-01T00:00:20Z"},
	}
	usage := []feeds.UsageEvent{
		{CallSID: "CA1", Model: "gpt-4o-mini", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, EstimatedCost: 0.000225, RequestType: "chat", Timestamp: "2024-01-01T00:00:11Z"},
	}
	telephony := []feeds.TelephonyRecord{
		{CallSID: "CA1", FromNumber: "+250700000001", ToNumber: "+15550001111", CallStatus: "completed", Direction: "inbound", FromCity: "Kigali", FromState: "KG", StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T00:01:30Z", Interactions: 3},
	}
	return calls, usage, telephony
}

func rowByKey(t *testing.T, rows []Row, key string) Row {
	t.Helper()
	for _, r := range rows {
		if r.Key == key {
			return r
		}
	}
	t.Fatalf("row %q not found", key)
	return Row{}
}

func TestBuild_OneRowPerSourceEvent(t *testing.T) {
	calls, usage, telephony := sampleFeeds()

	rows := Build(calls, usage, telephony)

	require.Len(t, rows, len(calls)+len(usage)+len(telephony))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		assert.False(t, seen[r.Key], "duplicate key %s", r.Key)
		seen[r.Key] = true
	}
}

func TestBuild_SameCallSIDAcrossFeedsStaysSeparate(t *testing.T) {
	calls, usage, telephony := sampleFeeds()

	rows := Build(calls[:1], usage, telephony)

	require.Len(t, rows, 3)
	sources := map[Source]int{}
	for _, r := range rows {
		assert.Equal(t, "CA1", r.CallSID)
		sources[r.Source]++
	}
	assert.Equal(t, map[Source]int{SourceCall: 1, SourceOpenAI: 1, SourceTwilio: 1}, sources)
}

func TestBuild_KeysUniqueForIdenticalRecords(t *testing.T) {
	ev := feeds.CallEvent{CallSID: "CA9", Message: "hello", Timestamp: "2024-01-01T00:00:00Z"}

	rows := Build([]feeds.CallEvent{ev, ev}, nil, nil)

	require.Len(t, rows, 2)
	assert.Equal(t, "call-CA9-2024-01-01T00:00:00Z-0", rows[0].Key)
	assert.Equal(t, "call-CA9-2024-01-01T00:00:00Z-1", rows[1].Key)
}

func TestBuild_EnrichesCallRowFromTelephony(t *testing.T) {
	calls, _, telephony := sampleFeeds()

	rows := Build(calls, nil, telephony)
	row := rowByKey(t, rows, "call-CA1-2024-01-01T00:00:10Z-0")

	assert.Equal(t, "Kigali KG", row.Location)
	assert.Equal(t, "completed", row.CallStatus)
	assert.Equal(t, int64(3), row.Interactions)
	assert.Equal(t, "+250700000001", row.FromNumber)
	assert.True(t, row.Matched)
	assert.Empty(t, row.Missing)
	// Only the telephony pass computes durations.
	assert.Equal(t, Placeholder, row.TimeUsed())
}

func TestBuild_DoesNotOverwriteExistingFields(t *testing.T) {
	calls, _, telephony := sampleFeeds()

	rows := Build(calls, nil, append(telephony, feeds.TelephonyRecord{CallSID: "CA2", FromNumber: "+999", CallStatus: "busy"}))
	row := rowByKey(t, rows, "call-CA2-2024-01-01T00:00:20Z-1")

	assert.Equal(t, "+250700000002", row.FromNumber)
	assert.Equal(t, "busy", row.CallStatus)
}

func TestBuild_UnmatchedRowKeepsPlaceholders(t *testing.T) {
	calls, _, _ := sampleFeeds()

	rows := Build(calls, nil, nil)
	row := rowByKey(t, rows, "call-CA1-2024-01-01T00:00:10Z-0")

	assert.False(t, row.Matched)
	assert.Equal(t, Placeholder, Text(row.FromNumber))
	assert.Equal(t, Placeholder, Text(row.Location))
	assert.Equal(t, int64(0), row.Interactions)
	assert.Equal(t, []Field{FieldFromNumber, FieldCallStatus, FieldLocation, FieldInteractions}, row.Missing)
	assert.True(t, row.Partial())
}

func TestBuild_UsageRow(t *testing.T) {
	_, usage, telephony := sampleFeeds()

	rows := Build(nil, usage, telephony)
	row := rowByKey(t, rows, "openai-CA1-2024-01-01T00:00:11Z-0")

	assert.Equal(t, "gpt-4o-mini", row.OpenAIModel)
	assert.Equal(t, int64(150), row.TokensUsed)
	assert.InDelta(t, 0.000225, row.CostUSD, 1e-12)
	assert.Equal(t, "openai_chat", row.EventType)
	assert.Equal(t, "openai_chat", row.Topic)
	assert.Equal(t, "completed", row.CallStatus)
}

func TestBuild_TelephonyRow(t *testing.T) {
	_, _, telephony := sampleFeeds()
	telephony = append(telephony, feeds.TelephonyRecord{CallSID: "CA3", StartTime: "2024-01-01T00:05:00Z", CallStatus: "in-progress"})

	rows := Build(nil, nil, telephony)
	done := rowByKey(t, rows, "twilio-CA1-2024-01-01T00:00:00Z-0")
	live := rowByKey(t, rows, "twilio-CA3-2024-01-01T00:05:00Z-1")

	assert.Equal(t, "90s", done.TimeUsed())
	assert.Equal(t, GeneralCallTopic, done.Topic)
	assert.Equal(t, "inbound", done.Direction)
	assert.Equal(t, Placeholder, live.TimeUsed())
	assert.Equal(t, []Field{FieldFromNumber, FieldLocation}, live.Missing)
}

func TestBuild_SortedAscendingAndStable(t *testing.T) {
	calls := []feeds.CallEvent{
		{CallSID: "CA1", Message: "second", Timestamp: "2024-01-01T00:00:05Z"},
		{CallSID: "CA1", Message: "first", Timestamp: "2024-01-01T00:00:01Z"},
		{CallSID: "CA1", Message: "tie-a", Timestamp: "2024-01-01T00:00:09Z"},
		{CallSID: "CA1", Message: "tie-b", Timestamp: "2024-01-01T00:00:09Z"},
	}

	rows := Build(calls, nil, nil)

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, r.UserMessage)
	}
	assert.Equal(t, []string{"first", "second", "tie-a", "tie-b"}, got)

	desc := Descending(rows)
	assert.Equal(t, "tie-b", desc[0].UserMessage)
	assert.Equal(t, "first", desc[len(desc)-1].UserMessage)
}

func TestBuild_Idempotent(t *testing.T) {
	calls, usage, telephony := sampleFeeds()

	first := Build(calls, usage, telephony)
	second := Build(calls, usage, telephony)

	assert.Equal(t, first, second)
}

func TestBuilder_ReusesExistingKey(t *testing.T) {
	calls, _, _ := sampleFeeds()

	b := NewBuilder(nil)
	b.AddCalls(calls)
	b.AddCalls(calls)

	assert.Len(t, b.Rows(), len(calls))
}

func TestBuild_EmptyInputs(t *testing.T) {
	rows := Build(nil, nil, nil)
	assert.Empty(t, rows)
}

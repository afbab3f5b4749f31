package feeds

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Feed names used in logs and status reports.
const (
	FeedCalls     = "calls"
	FeedUsage     = "usage"
	FeedTelephony = "telephony"
)

// Status describes the outcome of fetching one feed.
type Status struct {
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// OK reports whether the feed was fetched without error.
func (s Status) OK() bool { return s.Error == "" }

// Batch is the set of records fetched in one refresh cycle.
type Batch struct {
	Calls     []CallEvent
	Usage     []UsageEvent
	Telephony []TelephonyRecord
	Status    map[string]Status
}

// FetchAll fetches the three feeds concurrently and waits for all of them.
// A failing feed is logged and contributes an empty slice; its error is kept in Status
// so callers can tell a failed fetch from an empty feed.
func FetchAll(ctx context.Context, f Fetcher) Batch {
	var (
		batch                     Batch
		callsSt, usageSt, telepSt Status
	)

	var g errgroup.Group
	g.Go(func() error {
		start := time.Now()
		calls, err := f.FetchCalls(ctx)
		callsSt = finish(FeedCalls, start, len(calls), err)
		if err == nil {
			batch.Calls = calls
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		usage, err := f.FetchUsage(ctx)
		usageSt = finish(FeedUsage, start, len(usage), err)
		if err == nil {
			batch.Usage = usage
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		telephony, err := f.FetchTelephony(ctx)
		telepSt = finish(FeedTelephony, start, len(telephony), err)
		if err == nil {
			batch.Telephony = telephony
		}
		return nil
	})
	_ = g.Wait()

	batch.Status = map[string]Status{
		FeedCalls:     callsSt,
		FeedUsage:     usageSt,
		FeedTelephony: telepSt,
	}
	return batch
}

func finish(feed string, start time.Time, n int, err error) Status {
	st := Status{DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		log.WithError(err).WithField("feed", feed).Warn("feed fetch failed; continuing with empty feed")
		st.Error = err.Error()
		return st
	}
	st.Records = n
	return st
}

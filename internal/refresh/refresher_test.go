package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
)

type fakeFetcher struct {
	calls    atomic.Int64
	gate     chan struct{}
	usageErr error
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFetcher) FetchCalls(ctx context.Context) ([]feeds.CallEvent, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []feeds.CallEvent{{CallSID: "CA1", Message: "hello", Timestamp: "2024-01-01T00:00:00Z"}}, nil
}

func (f *fakeFetcher) FetchUsage(ctx context.Context) ([]feeds.UsageEvent, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	return []feeds.UsageEvent{{CallSID: "CA1", Model: "gpt-4o-mini", TotalTokens: 10, Timestamp: "2024-01-01T00:00:01Z"}}, nil
}

func (f *fakeFetcher) FetchTelephony(ctx context.Context) ([]feeds.TelephonyRecord, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []feeds.TelephonyRecord{{CallSID: "CA1", CallStatus: "completed", StartTime: "2024-01-01T00:00:00Z"}}, nil
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	r := New(&fakeFetcher{}, time.Minute)
	defer r.Stop()

	assert.Empty(t, r.Snapshot().Rows)

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Rows, 3)
	assert.NotEmpty(t, snap.CycleID)
	assert.False(t, snap.Degraded())
	assert.Same(t, snap, r.Snapshot())
	assert.Equal(t, int64(1), r.Cycles())
}

func TestRefresh_FailedFeedDegrades(t *testing.T) {
	r := New(&fakeFetcher{usageErr: errors.New("boom")}, time.Minute)
	defer r.Stop()

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Rows, 2)
	assert.True(t, snap.Degraded())
	assert.Equal(t, "boom", snap.Feeds[feeds.FeedUsage].Error)
	assert.True(t, snap.Feeds[feeds.FeedCalls].OK())
}

func TestRefresh_ConcurrentCallsShareOneCycle(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	r := New(f, time.Minute)
	defer r.Stop()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := r.Refresh(context.Background())
			if err == nil {
				results[i] = snap
			}
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight cycle.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int64(1), f.calls.Load())
	assert.Equal(t, int64(1), r.Cycles())
	for _, snap := range results {
		require.NotNil(t, snap)
		assert.Same(t, results[0], snap)
	}
}

func TestRefresh_CallerContextOnlyBoundsWait(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	r := New(f, time.Minute)
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(f.gate)
	require.Eventually(t, func() bool { return r.Cycles() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, r.Snapshot().Rows, 3)
}

func TestStop_CancelsInFlightCycle(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	r := New(f, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	r.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Refresh did not return after Stop")
	}
	assert.Equal(t, int64(0), r.Cycles())
	assert.Empty(t, r.Snapshot().Rows)

	_, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStart_RunsInitialCycle(t *testing.T) {
	published := make(chan *Snapshot, 4)
	r := New(&fakeFetcher{}, time.Hour, WithCycleHook(func(s *Snapshot) { published <- s }))
	require.NoError(t, r.Start())
	defer r.Stop()

	select {
	case snap := <-published:
		assert.Len(t, snap.Rows, 3)
	case <-time.After(time.Second):
		t.Fatal("initial refresh did not run")
	}
}

func TestSetInterval(t *testing.T) {
	r := New(&fakeFetcher{}, 0)
	defer r.Stop()
	assert.Equal(t, DefaultInterval, r.Interval())

	require.NoError(t, r.Start())
	require.NoError(t, r.SetInterval(1500*time.Millisecond))
	assert.Equal(t, time.Second, r.Interval())

	require.NoError(t, r.SetInterval(200*time.Millisecond))
	assert.Equal(t, time.Second, r.Interval())

	require.NoError(t, r.SetInterval(10*time.Second))
	assert.Equal(t, 10*time.Second, r.Interval())
	assertScheduled(t, r, 10*time.Second)
}

func TestSetInterval_ConcurrentWithStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		r := New(&fakeFetcher{}, time.Minute)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = r.SetInterval(7 * time.Second)
		}()
		require.NoError(t, r.Start())
		<-done

		assert.Equal(t, 7*time.Second, r.Interval())
		assertScheduled(t, r, 7*time.Second)
		r.Stop()
	}
}

func assertScheduled(t *testing.T, r *Refresher, want time.Duration) {
	t.Helper()
	entries := r.cron.Entries()
	require.Len(t, entries, 1)
	sched, ok := entries[0].Schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok, "schedule type %T", entries[0].Schedule)
	assert.Equal(t, want, sched.Delay)
}

func TestWithCycleTimeout(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	defer close(f.gate)
	r := New(f, time.Minute, WithCycleTimeout(30*time.Millisecond))
	defer r.Stop()

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Rows)
	assert.True(t, snap.Degraded())
	assert.Contains(t, snap.Feeds[feeds.FeedCalls].Error, context.DeadlineExceeded.Error())
}

// Package refresh keeps the current interaction snapshot up to date by rebuilding it from
// the upstream feeds on a fixed interval and on demand.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

const (
	// DefaultInterval matches the dashboard polling period.
	DefaultInterval = 5 * time.Second

	defaultCycleTimeout = 30 * time.Second
	minInterval         = time.Second
	cycleKey            = "refresh"
)

// ErrStopped is returned by Refresh after Stop.
var ErrStopped = errors.New("refresher stopped")

// Snapshot is the result of one refresh cycle. Snapshots are immutable once published.
type Snapshot struct {
	CycleID string                  `json:"cycle_id"`
	BuiltAt time.Time               `json:"built_at"`
	Rows    []interaction.Row       `json:"-"`
	Feeds   map[string]feeds.Status `json:"feeds"`
}

// Degraded reports whether any feed failed during the cycle.
func (s *Snapshot) Degraded() bool {
	if s == nil {
		return false
	}
	for _, st := range s.Feeds {
		if !st.OK() {
			return true
		}
	}
	return false
}

// Refresher rebuilds the interaction snapshot from a feeds.Fetcher.
//
// Ticks that fire while a cycle is still running are skipped, and a manual Refresh issued
// during a cycle waits for that cycle instead of starting another one, so at most one cycle
// is ever in flight. Stop cancels the in-flight cycle; its partial result is discarded.
type Refresher struct {
	fetcher feeds.Fetcher
	timeout time.Duration

	current atomic.Pointer[Snapshot]
	sf      singleflight.Group
	cycles  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once

	onCycle func(*Snapshot)
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithCycleTimeout bounds a single refresh cycle.
func WithCycleTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCycleHook registers fn to run after each published snapshot.
func WithCycleHook(fn func(*Snapshot)) Option {
	return func(r *Refresher) { r.onCycle = fn }
}

// New creates a refresher polling f every interval (DefaultInterval when non-positive).
func New(f feeds.Fetcher, interval time.Duration, opts ...Option) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		fetcher:  f,
		timeout:  defaultCycleTimeout,
		ctx:      ctx,
		cancel:   cancel,
		interval: normalizeInterval(interval),
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.StandardLogger())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger())),
		)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{Feeds: map[string]feeds.Status{}})
	return r
}

func normalizeInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < minInterval {
		return minInterval
	}
	return d.Truncate(time.Second)
}

// Start runs an initial cycle in the background and schedules the periodic refresh.
func (r *Refresher) Start() error {
	if r == nil {
		return nil
	}
	var err error
	r.startOnce.Do(func() {
		r.mu.Lock()
		err = r.scheduleLocked(r.interval)
		if err == nil {
			// Set under mu so a concurrent SetInterval reschedules instead of only recording.
			r.started.Store(true)
		}
		r.mu.Unlock()
		if err != nil {
			return
		}
		r.cron.Start()
		go r.tick()
		log.WithField("interval", r.Interval().String()).Info("interaction refresh started")
	})
	return err
}

// Stop cancels any in-flight cycle and waits for scheduled jobs to return.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		r.cancel()
		if r.started.Load() {
			<-r.cron.Stop().Done()
		}
		log.Info("interaction refresh stopped")
	})
}

// Interval returns the current refresh period.
func (r *Refresher) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// SetInterval reschedules the periodic refresh. It is safe to call while running.
func (r *Refresher) SetInterval(d time.Duration) error {
	d = normalizeInterval(d)
	r.mu.Lock()
	defer r.mu.Unlock()
	if d == r.interval {
		return nil
	}
	if r.started.Load() {
		if err := r.scheduleLocked(d); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"from": r.interval.String(), "to": d.String()}).Info("interaction refresh interval changed")
	r.interval = d
	return nil
}

func (r *Refresher) scheduleLocked(d time.Duration) error {
	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", d), r.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	if r.entry != 0 {
		r.cron.Remove(r.entry)
	}
	r.entry = id
	return nil
}

func (r *Refresher) tick() {
	if _, err := r.Refresh(r.ctx); err != nil && !errors.Is(err, ErrStopped) {
		log.WithError(err).Warn("scheduled interaction refresh failed")
	}
}

// Snapshot returns the most recently published snapshot. Before the first cycle completes
// it returns an empty snapshot.
func (r *Refresher) Snapshot() *Snapshot {
	return r.current.Load()
}

// Cycles returns the number of completed cycles.
func (r *Refresher) Cycles() int64 {
	return r.cycles.Load()
}

// Refresh runs a cycle now, or joins the one already in flight. ctx only bounds how long
// the caller waits; the cycle itself runs until it completes, times out or Stop is called.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	if r.ctx.Err() != nil {
		return nil, ErrStopped
	}
	ch := r.sf.DoChan(cycleKey, func() (any, error) {
		return r.runCycle()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (r *Refresher) runCycle() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	cycleID := uuid.NewString()
	start := time.Now()
	entry := log.WithField("cycle_id", cycleID)

	batch := feeds.FetchAll(ctx, r.fetcher)
	if r.ctx.Err() != nil {
		entry.Debug("interaction refresh cancelled")
		return nil, ErrStopped
	}

	snap := &Snapshot{
		CycleID: cycleID,
		BuiltAt: time.Now(),
		Rows:    interaction.Build(batch.Calls, batch.Usage, batch.Telephony),
		Feeds:   batch.Status,
	}
	r.current.Store(snap)
	r.cycles.Add(1)

	fields := log.Fields{
		"rows":        len(snap.Rows),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if snap.Degraded() {
		entry.WithFields(fields).Warn("interaction refresh completed with failed feeds")
	} else {
		entry.WithFields(fields).Debug("interaction refresh completed")
	}

	if r.onCycle != nil {
		r.onCycle(snap)
	}
	return snap, nil
}

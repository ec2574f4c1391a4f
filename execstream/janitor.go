package execstream

import (
	"time"

	apperrors "github.com/goliatone/go-errors"
	rcron "github.com/robfig/cron/v3"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/metrics"
)

// Janitor periodically removes terminal entries that consumers never cleared.
// It is an optional safety net; the bridge clears its own entries on cleanup.
type Janitor struct {
	store     *Store
	cron      *rcron.Cron
	retention time.Duration
	logger    streamsync.Logger
	now       func() time.Time
	entryID   rcron.EntryID
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithJanitorLogger sets the janitor logger.
func WithJanitorLogger(l streamsync.Logger) JanitorOption {
	return func(j *Janitor) {
		j.logger = l
	}
}

// WithJanitorClock overrides the time source; used by tests.
func WithJanitorClock(now func() time.Time) JanitorOption {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// NewJanitor schedules sweeps of the store on a cron expression. Retention
// must be positive; entries younger than it survive the sweep.
func NewJanitor(store *Store, schedule string, retention time.Duration, opts ...JanitorOption) (*Janitor, error) {
	if store == nil {
		return nil, apperrors.New("janitor requires a store", apperrors.CategoryBadInput).
			WithTextCode("SYNC_INVALID_CONFIG")
	}
	if retention <= 0 {
		return nil, apperrors.New("janitor retention must be positive", apperrors.CategoryBadInput).
			WithTextCode("SYNC_INVALID_CONFIG")
	}

	j := &Janitor{
		store:     store,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}
	j.logger = streamsync.NormalizeLogger(j.logger)

	j.cron = rcron.New()
	entryID, err := j.cron.AddFunc(schedule, func() {
		j.Sweep()
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "invalid janitor schedule").
			WithTextCode("SYNC_INVALID_CONFIG").
			WithMetadata(map[string]any{"schedule": schedule})
	}
	j.entryID = entryID
	return j, nil
}

// Start begins scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling; a sweep already running completes.
func (j *Janitor) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	j.cron.Stop()
}

// Sweep removes terminal entries older than the retention window and returns
// how many were removed. Safe to call directly.
func (j *Janitor) Sweep() int {
	cutoff := j.now().Add(-j.retention)
	removed := j.store.sweepTerminal(cutoff)
	if removed > 0 {
		metrics.JanitorSweeps.Add(float64(removed))
		j.logger.Debug("janitor removed %d terminal stream entries", removed)
	}
	return removed
}

// Package execstream holds the in-memory table of live execution streams:
// one entry per execution id with its status, ordered log buffer, connectivity
// flag, and last error. The bridge is the single writer per id; readers may
// poll concurrently because every write replaces whole fields.
package execstream

import (
	"sort"
	"strings"
	"sync"
	"time"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/metrics"
)

// Entry is the tracked state for one execution stream.
type Entry struct {
	ID        string
	Status    streamsync.ExecutionStatus
	Logs      []streamsync.StreamLog
	Connected bool
	Err       string
	Result    any
	UpdatedAt time.Time
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Logs = streamsync.CloneLogs(e.Logs)
	return &cp
}

// Store is a thread-safe keyed table of execution streams.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  streamsync.Logger
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l streamsync.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = streamsync.NormalizeLogger(s.logger)
	return s
}

// StartStreaming creates a zeroed entry for the id. Idempotent: an existing
// entry is left untouched.
func (s *Store) StartStreaming(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return
	}
	s.entries[id] = &Entry{
		ID:        id,
		Status:    streamsync.StatusPending,
		UpdatedAt: s.now(),
	}
}

// UpdateStatus overwrites the status unless the entry is terminal or the new
// status would move backwards. Status order is pending < running < terminal.
func (s *Store) UpdateStatus(id string, status streamsync.ExecutionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.Status.IsTerminal() {
		return
	}
	if status.Rank() < e.Status.Rank() {
		s.logger.Debug("ignoring status regression for %s: %s -> %s", id, e.Status, status)
		return
	}
	e.Status = status
	e.UpdatedAt = s.now()
}

// AppendLogs concatenates logs preserving arrival order. When every buffered
// log carries a sequence number the buffer is kept sequence-sorted, with ties
// broken by arrival order.
func (s *Store) AppendLogs(id string, logs ...streamsync.StreamLog) {
	if len(logs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.Logs = append(e.Logs, logs...)
	if fullySequenced(e.Logs) {
		sort.SliceStable(e.Logs, func(i, j int) bool {
			return *e.Logs[i].Sequence < *e.Logs[j].Sequence
		})
	}
	e.UpdatedAt = s.now()
	metrics.StreamLogsAppended.Add(float64(len(logs)))
}

func fullySequenced(logs []streamsync.StreamLog) bool {
	for i := range logs {
		if logs[i].Sequence == nil {
			return false
		}
	}
	return len(logs) > 0
}

// CompleteExecution records the final result, marks the entry terminal, and
// freezes further status and connectivity mutation. If a status event already
// made the entry terminal, the status stays frozen but a missing result is
// still recorded.
func (s *Store) CompleteExecution(id string, result any, status streamsync.ExecutionStatus) {
	if !status.IsTerminal() {
		status = streamsync.StatusSuccess
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.Status.IsTerminal() {
		if e.Result == nil && result != nil {
			e.Result = result
			e.UpdatedAt = s.now()
		}
		return
	}
	e.Status = status
	e.Result = result
	e.UpdatedAt = s.now()
}

// SetConnectionStatus records channel connectivity. No-op once terminal.
func (s *Store) SetConnectionStatus(id string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Status.IsTerminal() {
		return
	}
	e.Connected = connected
	e.UpdatedAt = s.now()
}

// SetError records a non-fatal stream error on the entry.
func (s *Store) SetError(id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.Err = msg
	e.UpdatedAt = s.now()
}

// Clear deletes the entry, bounding memory growth. Safe to call twice.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Get returns a cloned entry for concurrent readers.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return cloneEntry(e), true
}

// Logs returns a copy of the entry's log buffer.
func (s *Store) Logs(id string) []streamsync.StreamLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	return streamsync.CloneLogs(e.Logs)
}

// Len reports how many streams are tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweepTerminal deletes terminal entries last touched before cutoff and
// returns how many were removed.
func (s *Store) sweepTerminal(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if e.Status.IsTerminal() && e.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

package bridge

import (
	"context"
	"sync"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/execstream"
)

// Session wraps a Bridge with observable per-call state for UI-style
// consumers: loading flag, last error, last result, current execution id, and
// live logs. A Session serializes its own Execute calls; use the Bridge
// directly for overlapping invocations.
type Session struct {
	bridge *Bridge
	store  *execstream.Store

	mu          sync.RWMutex
	loading     bool
	err         error
	data        any
	status      streamsync.ExecutionStatus
	executionID string
}

// NewSession builds a Session over a bridge and its stream store.
func NewSession(b *Bridge, store *execstream.Store) *Session {
	return &Session{bridge: b, store: store}
}

// Execute runs one invocation and mirrors the outcome into the session state.
func (s *Session) Execute(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.data = nil
	s.status = ""
	s.executionID = ""
	s.mu.Unlock()

	res, err := s.bridge.Execute(ctx, req, OnAccepted(func(id string) {
		s.mu.Lock()
		s.executionID = id
		s.status = streamsync.StatusRunning
		s.mu.Unlock()
	}))

	s.mu.Lock()
	s.loading = false
	s.err = err
	if res != nil {
		s.data = res.Data
		s.status = res.Status
		s.executionID = res.ExecutionID
	} else if err != nil {
		s.status = streamsync.StatusError
	}
	s.mu.Unlock()

	return res, err
}

// Loading reports whether an invocation is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last invocation error, nil after success or Reset.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Data returns the last successful result payload.
func (s *Session) Data() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Status returns the last observed execution status.
func (s *Session) Status() streamsync.ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ExecutionID returns the current or last execution id.
func (s *Session) ExecutionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executionID
}

// Logs returns the live log buffer for the current execution, if any. Empty
// once the stream entry is cleared on settlement.
func (s *Session) Logs() []streamsync.StreamLog {
	s.mu.RLock()
	id := s.executionID
	s.mu.RUnlock()
	if id == "" || s.store == nil {
		return nil
	}
	return s.store.Logs(id)
}

// Reset clears all observable state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = nil
	s.data = nil
	s.status = ""
	s.executionID = ""
}

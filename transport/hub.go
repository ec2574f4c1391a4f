package transport

import (
	"context"
	"sync"

	streamsync "github.com/goliatone/go-streamsync"
)

type updateEntry struct {
	id uint64
	fn UpdateHandler
}

type logEntry struct {
	id uint64
	fn LogHandler
}

// Hub is an in-process Transport. Publishing is synchronous, so events for a
// given execution id reach handlers in publish order. Used by tests and by
// local wiring where producer and consumer share a process.
type Hub struct {
	mu       sync.RWMutex
	nextID   uint64
	channels map[string]struct{}
	updates  map[string][]updateEntry
	logs     map[string][]logEntry

	connectErr error
	logger     streamsync.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l streamsync.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithConnectError makes Connect fail; used to exercise connect-failure paths.
func WithConnectError(err error) HubOption {
	return func(h *Hub) {
		h.connectErr = err
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		channels: make(map[string]struct{}),
		updates:  make(map[string][]updateEntry),
		logs:     make(map[string][]logEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.logger = streamsync.NormalizeLogger(h.logger)
	return h
}

// Connect registers the named channels as live.
func (h *Hub) Connect(ctx context.Context, channels []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connectErr != nil {
		return h.connectErr
	}
	for _, ch := range channels {
		h.channels[ch] = struct{}{}
	}
	return nil
}

// IsConnected reports whether any channel is live.
func (h *Hub) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels) > 0
}

// OnExecutionUpdate registers an update handler for an execution id.
func (h *Hub) OnExecutionUpdate(executionID string, fn UpdateHandler) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	entry := updateEntry{id: h.nextID, fn: fn}
	h.updates[executionID] = append(h.updates[executionID], entry)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		current := h.updates[executionID]
		next := make([]updateEntry, 0, len(current))
		for _, e := range current {
			if e.id != entry.id {
				next = append(next, e)
			}
		}
		if len(next) == 0 {
			delete(h.updates, executionID)
			return
		}
		h.updates[executionID] = next
	}
}

// OnExecutionLog registers a log handler for an execution id.
func (h *Hub) OnExecutionLog(executionID string, fn LogHandler) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	entry := logEntry{id: h.nextID, fn: fn}
	h.logs[executionID] = append(h.logs[executionID], entry)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		current := h.logs[executionID]
		next := make([]logEntry, 0, len(current))
		for _, e := range current {
			if e.id != entry.id {
				next = append(next, e)
			}
		}
		if len(next) == 0 {
			delete(h.logs, executionID)
			return
		}
		h.logs[executionID] = next
	}
}

// Unsubscribe drops a channel from the live set.
func (h *Hub) Unsubscribe(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels, channel)
}

// PublishUpdate delivers an update event to every handler registered for its
// execution id. Handlers run on the caller's goroutine.
func (h *Hub) PublishUpdate(ev UpdateEvent) {
	h.mu.RLock()
	entries := make([]updateEntry, len(h.updates[ev.ExecutionID]))
	copy(entries, h.updates[ev.ExecutionID])
	h.mu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// PublishLog delivers a log event to every handler registered for its
// execution id.
func (h *Hub) PublishLog(ev LogEvent) {
	h.mu.RLock()
	entries := make([]logEntry, len(h.logs[ev.ExecutionID]))
	copy(entries, h.logs[ev.ExecutionID])
	h.mu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// HandlerCount reports registered handlers for an id; used by tests to verify
// subscriptions are released.
func (h *Hub) HandlerCount(executionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.updates[executionID]) + len(h.logs[executionID])
}

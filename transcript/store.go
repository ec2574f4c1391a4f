// Package transcript maintains deduplicated, append-only conversation
// transcripts. Messages arrive through two independent paths, a local
// optimistic insert and a server-delivered echo, and must reconcile to one
// entry per logical message regardless of arrival order or timing. The dedup
// registry (processed-id set plus local-id remapping table) is the single
// source of truth preventing double insertion.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/metrics"
)

// Arrival path labels for metrics.
const (
	PathLocal  = "local"
	PathServer = "server"
)

// MessagePatch carries partial updates for a transcript entry. Nil fields are
// left untouched.
type MessagePatch struct {
	Content  *string
	Role     *string
	Metadata map[string]any
}

// conversation is the per-conversation transcript plus its dedup registry.
// Ids are never removed for the lifetime of the client-side session.
type conversation struct {
	messages      []streamsync.Message
	processed     map[string]struct{}
	localToServer map[string]string
}

func newConversation() *conversation {
	return &conversation{
		processed:     make(map[string]struct{}),
		localToServer: make(map[string]string),
	}
}

// Store holds the transcripts for every conversation in the session.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	logger        streamsync.Logger
	now           func() time.Time
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

// NewStore constructs an empty transcript store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = streamsync.NormalizeLogger(s.logger)
	return s
}

func (s *Store) conv(convID string) *conversation {
	c, ok := s.conversations[convID]
	if !ok {
		c = newConversation()
		s.conversations[convID] = c
	}
	return c
}

// AddMessage appends a message unless its id was already processed through
// the other path. Returns whether the message was appended.
func (s *Store) AddMessage(convID string, msg streamsync.Message) bool {
	if strings.TrimSpace(msg.ID) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conv(convID)
	if _, done := c.processed[msg.ID]; done {
		metrics.TranscriptDedupHits.Inc()
		return false
	}
	msg.Metadata = streamsync.CopyMetadata(msg.Metadata)
	c.messages = append(c.messages, msg)
	c.processed[msg.ID] = struct{}{}
	path := PathServer
	if msg.LocalID != "" && msg.LocalID == msg.ID {
		path = PathLocal
	}
	metrics.TranscriptMessages.WithLabelValues(path).Inc()
	return true
}

// SetMessages bulk-replaces the transcript, deduplicating by id with first
// occurrence winning, and rebuilds the processed set. The local-to-server
// mapping survives: a full refresh must not erase in-flight optimistic
// bookkeeping.
func (s *Store) SetMessages(convID string, msgs []streamsync.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conv(convID)

	c.messages = c.messages[:0]
	c.processed = make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		if strings.TrimSpace(msg.ID) == "" {
			continue
		}
		if _, seen := c.processed[msg.ID]; seen {
			continue
		}
		c.messages = append(c.messages, msg)
		c.processed[msg.ID] = struct{}{}
	}
}

// UpdateMessage patches the entry with the given id. Unknown ids no-op;
// callers resolve local ids through ServerIDFor before updating a message
// that has since been confirmed.
func (s *Store) UpdateMessage(convID, id string, patch MessagePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return false
	}
	for i := range c.messages {
		if c.messages[i].ID != id {
			continue
		}
		applyPatch(&c.messages[i], patch)
		return true
	}
	return false
}

// ClearMessages drops the conversation's transcript and registry.
func (s *Store) ClearMessages(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, convID)
}

// Messages returns a copy of the conversation's transcript.
func (s *Store) Messages(convID string) []streamsync.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convID]
	if !ok || len(c.messages) == 0 {
		return nil
	}
	out := make([]streamsync.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// IsProcessed reports whether a message id already reached the transcript.
func (s *Store) IsProcessed(convID, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convID]
	if !ok {
		return false
	}
	_, done := c.processed[id]
	return done
}

// MarkProcessed records a message id without inserting a message.
func (s *Store) MarkProcessed(convID, id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv(convID).processed[id] = struct{}{}
}

// MapLocalID records the canonical server id for an optimistic local id and
// rewrites the already-inserted entry to its final identity. The server id is
// marked processed so the server echo dedups instead of double-inserting.
func (s *Store) MapLocalID(convID, localID, serverID string) {
	if strings.TrimSpace(localID) == "" || strings.TrimSpace(serverID) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conv(convID)
	c.localToServer[localID] = serverID
	c.processed[serverID] = struct{}{}
	for i := range c.messages {
		if c.messages[i].ID == localID {
			c.messages[i].ID = serverID
			c.messages[i].LocalID = localID
			break
		}
	}
}

// ServerIDFor resolves an optimistic local id to its canonical server id.
func (s *Store) ServerIDFor(convID, localID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convID]
	if !ok {
		return "", false
	}
	id, found := c.localToServer[localID]
	return id, found
}

// NewLocalMessage builds an optimistic message with a generated local id that
// doubles as its provisional identity until MapLocalID confirms it.
func (s *Store) NewLocalMessage(role, content string) streamsync.Message {
	localID := "local-" + uuid.NewString()
	return streamsync.Message{
		ID:        localID,
		LocalID:   localID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

func applyPatch(msg *streamsync.Message, patch MessagePatch) {
	if patch.Content != nil {
		msg.Content = *patch.Content
	}
	if patch.Role != nil {
		msg.Role = *patch.Role
	}
	if len(patch.Metadata) > 0 {
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			msg.Metadata[k] = v
		}
	}
}

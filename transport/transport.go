// Package transport defines the multiplexed-channel contract the
// synchronization core consumes. The wire protocol and reconnection logic
// live behind implementations of Transport; this package specifies the
// boundary and ships an in-process Hub for tests and local wiring.
package transport

import (
	"context"

	streamsync "github.com/goliatone/go-streamsync"
)

// UpdateEvent is a status/progress event for one execution. Logs may ride
// along with status changes; IsComplete marks the terminal signal.
type UpdateEvent struct {
	ExecutionID string                     `json:"execution_id"`
	Status      streamsync.ExecutionStatus `json:"status,omitempty"`
	IsComplete  bool                       `json:"is_complete"`
	Logs        []streamsync.StreamLog     `json:"logs,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// LogEvent is a standalone log line for one execution.
type LogEvent struct {
	ExecutionID string               `json:"execution_id"`
	Log         streamsync.StreamLog `json:"log"`
}

// UpdateHandler receives status/progress events.
type UpdateHandler func(UpdateEvent)

// LogHandler receives standalone log lines.
type LogHandler func(LogEvent)

// Transport delivers typed events from named channels. Events for a given
// execution id arrive in delivery order; no ordering holds across ids.
// The unsubscribe funcs returned by the On* methods are idempotent.
type Transport interface {
	Connect(ctx context.Context, channels []string) error
	IsConnected() bool
	OnExecutionUpdate(executionID string, fn UpdateHandler) func()
	OnExecutionLog(executionID string, fn LogHandler) func()
	Unsubscribe(channel string)
}

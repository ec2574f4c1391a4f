package streamsync

import (
	"time"
)

// ExecutionStatus is the lifecycle state of one backend job invocation.
type ExecutionStatus string

const (
	StatusPending ExecutionStatus = "pending"
	StatusRunning ExecutionStatus = "running"
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
)

// IsTerminal reports whether no further updates for the execution are meaningful.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Rank orders statuses for monotonic transitions. Terminal states share the
// highest rank; unknown statuses rank lowest so they never clobber known state.
func (s ExecutionStatus) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusRunning:
		return 2
	case StatusSuccess, StatusError:
		return 3
	default:
		return 0
	}
}

// NormalizeStatus maps wire-level status strings onto the canonical set.
func NormalizeStatus(raw string) ExecutionStatus {
	switch ExecutionStatus(raw) {
	case StatusPending, StatusRunning, StatusSuccess, StatusError:
		return ExecutionStatus(raw)
	}
	// common upstream variants
	switch raw {
	case "Pending", "PENDING", "queued":
		return StatusPending
	case "Running", "RUNNING", "in_progress":
		return StatusRunning
	case "Success", "SUCCESS", "completed", "succeeded":
		return StatusSuccess
	case "Error", "ERROR", "failed", "failure":
		return StatusError
	}
	return ExecutionStatus(raw)
}

// Execution is one asynchronous invocation of a backend job.
type Execution struct {
	ID           string          `json:"id"`
	JobID        string          `json:"job_id"`
	Status       ExecutionStatus `json:"status"`
	Input        map[string]any  `json:"input_params,omitempty"`
	Result       any             `json:"result_payload,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// StreamLog is one streamed log line for an execution. Sequence is optional;
// buffers are only sequence-sorted when every entry carries one.
type StreamLog struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  *int64    `json:"sequence,omitempty"`
}

// Seq is a convenience constructor for optional sequence numbers.
func Seq(n int64) *int64 { return &n }

// Message is a transcript entry. ID is the stable identity; LocalID is set on
// optimistic inserts before server confirmation.
type Message struct {
	ID        string         `json:"id"`
	LocalID   string         `json:"local_id,omitempty"`
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TriggerResponse is the job-trigger API reply. A transient execution carries
// its terminal outcome inline and never streams.
type TriggerResponse struct {
	ExecutionID string          `json:"execution_id"`
	IsTransient bool            `json:"is_transient"`
	Status      ExecutionStatus `json:"status,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ExecutionRecord is the authoritative read-API view of an execution.
type ExecutionRecord struct {
	Status       ExecutionStatus `json:"status"`
	Result       any             `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func copyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneLogs(in []StreamLog) []StreamLog {
	if len(in) == 0 {
		return nil
	}
	out := make([]StreamLog, len(in))
	copy(out, in)
	return out
}

// CloneLogs returns a defensive copy of a log buffer.
func CloneLogs(in []StreamLog) []StreamLog { return cloneLogs(in) }

// CopyMetadata returns a shallow copy of a metadata map.
func CopyMetadata(in map[string]any) map[string]any { return copyMap(in) }

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsStarted counts trigger calls that produced a streaming waiter.
	ExecutionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_executions_started_total",
			Help: "Total executions that entered the streaming path",
		},
	)

	// ExecutionsSettled counts settlements by outcome.
	ExecutionsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_executions_settled_total",
			Help: "Total execution settlements by outcome",
		},
		[]string{"outcome"},
	)

	// ExecutionTimeouts counts bounded-wait expiries.
	ExecutionTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_execution_timeouts_total",
			Help: "Total executions that timed out before a terminal event",
		},
	)

	// ActiveWaiters tracks in-flight executions awaiting settlement.
	ActiveWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsync_active_waiters",
			Help: "Executions currently awaiting a terminal event",
		},
	)

	// StreamLogsAppended counts log lines written into stream buffers.
	StreamLogsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_stream_logs_appended_total",
			Help: "Total log lines appended to execution stream buffers",
		},
	)

	// TranscriptMessages counts transcript appends by arrival path.
	TranscriptMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_transcript_messages_total",
			Help: "Total messages appended to conversation transcripts",
		},
		[]string{"path"},
	)

	// TranscriptDedupHits counts messages dropped as already processed.
	TranscriptDedupHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_transcript_dedup_hits_total",
			Help: "Total messages skipped because their id was already processed",
		},
	)

	// JanitorSweeps counts stream entries removed by the janitor.
	JanitorSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_janitor_swept_total",
			Help: "Total terminal stream entries removed by the janitor",
		},
	)
)

// Outcome labels for ExecutionsSettled.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeTornDown  = "torn_down"
	OutcomeTransient = "transient"
)

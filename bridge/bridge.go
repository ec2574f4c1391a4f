// Package bridge converts the push-based execution event stream into a
// one-shot request/response call: trigger a job, await its terminal result
// exactly once, with bounded wait, a short-circuit for synchronous jobs, and
// deterministic teardown.
package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/execstream"
	"github.com/goliatone/go-streamsync/metrics"
	"github.com/goliatone/go-streamsync/transport"
)

// Runner triggers a backend job; the job-trigger API boundary.
type Runner interface {
	Trigger(ctx context.Context, jobID string, input map[string]any) (*streamsync.TriggerResponse, error)
}

// Reader fetches the authoritative execution record; the read API boundary.
type Reader interface {
	Execution(ctx context.Context, id string) (*streamsync.ExecutionRecord, error)
}

// Request describes one job invocation.
type Request struct {
	JobID string
	Input map[string]any
}

// Result is the settled outcome of one execution.
type Result struct {
	ExecutionID string
	Status      streamsync.ExecutionStatus
	Data        any
}

type settlement struct {
	result *Result
	err    error
}

// waiter is the per-invocation resource table entry: one exists per in-flight
// execution id and is removed on settlement, timeout, or teardown. Whichever
// goroutine removes it from the table owns delivery and release.
type waiter struct {
	ch      chan settlement
	channel string
	timer   *time.Timer
	unsubs  []func()
}

// Bridge issues jobs and settles their results. Safe for concurrent Execute
// calls; each call tracks its own execution id independently.
type Bridge struct {
	runner    Runner
	reader    Reader
	transport transport.Transport
	store     *execstream.Store

	mu      sync.Mutex
	waiters map[string]*waiter
	closed  bool

	timeout      time.Duration
	fetchTimeout time.Duration
	channelName  func(executionID string) string
	logger       streamsync.Logger
}

// New constructs a Bridge. All four collaborators are required.
func New(runner Runner, reader Reader, tr transport.Transport, store *execstream.Store, opts ...Option) (*Bridge, error) {
	if runner == nil {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "bridge requires a runner", nil, nil)
	}
	if reader == nil {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "bridge requires a reader", nil, nil)
	}
	if tr == nil {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "bridge requires a transport", nil, nil)
	}
	if store == nil {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "bridge requires a stream store", nil, nil)
	}

	b := &Bridge{
		runner:       runner,
		reader:       reader,
		transport:    tr,
		store:        store,
		waiters:      make(map[string]*waiter),
		timeout:      streamsync.DefaultExecutionTimeout,
		fetchTimeout: 30 * time.Second,
		channelName: func(id string) string {
			return streamsync.DefaultChannelPrefix + ":" + id
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.logger = streamsync.NormalizeLogger(b.logger)
	return b, nil
}

// Execute triggers the job and blocks until its terminal result, the timeout,
// caller context cancellation, or bridge teardown. Errors surface exactly once
// per invocation; there are no retries here.
func (b *Bridge) Execute(ctx context.Context, req Request, opts ...CallOption) (*Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "job id required", nil, nil)
	}
	if b.isClosed() {
		return nil, streamsync.ErrTornDown.Clone()
	}

	call := applyCallOptions(opts)

	resp, err := b.runner.Trigger(ctx, req.JobID, req.Input)
	if err != nil {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed, "", err,
			map[string]any{"job_id": req.JobID})
	}
	if resp == nil || strings.TrimSpace(resp.ExecutionID) == "" {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed,
			"trigger response missing execution id", nil,
			map[string]any{"job_id": req.JobID})
	}

	id := resp.ExecutionID
	call.accepted(id)

	// fast path: synchronous job types settle from the trigger payload and
	// never subscribe
	if resp.IsTransient && resp.Status.IsTerminal() {
		metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeTransient).Inc()
		if resp.Status == streamsync.StatusError {
			return nil, streamsync.CloneError(streamsync.ErrExecutionFailed,
				errorMessageOr(resp.Error, "transient execution failed"), nil,
				map[string]any{"execution_id": id})
		}
		return &Result{ExecutionID: id, Status: resp.Status, Data: resp.Result}, nil
	}

	logger := streamsync.WithLoggerFields(b.logger, map[string]any{
		"execution_id": id,
		"job_id":       req.JobID,
	})

	w := &waiter{
		ch:      make(chan settlement, 1),
		channel: b.channelName(id),
	}
	if err := b.register(id, w); err != nil {
		return nil, err
	}
	metrics.ExecutionsStarted.Inc()
	metrics.ActiveWaiters.Inc()
	logger.Debug("execution accepted, awaiting terminal event on %s", w.channel)

	b.store.StartStreaming(id)

	if err := b.transport.Connect(ctx, []string{w.channel}); err != nil {
		logger.Warn("transport connect failed: %v", err)
		// either this settle wins or a concurrent Close already delivered;
		// the channel holds exactly one settlement either way
		b.settle(id, nil, streamsync.CloneError(streamsync.ErrConnectFailed, "", err,
			map[string]any{"execution_id": id}))
		s := <-w.ch
		return s.result, s.err
	}
	b.store.SetConnectionStatus(id, true)

	unsubUpdate := b.transport.OnExecutionUpdate(id, func(ev transport.UpdateEvent) {
		b.handleUpdate(id, ev)
	})
	unsubLog := b.transport.OnExecutionLog(id, func(ev transport.LogEvent) {
		b.store.AppendLogs(id, ev.Log)
	})

	b.mu.Lock()
	if b.closed || b.waiters[id] != w {
		// torn down between registration and subscription; Close already
		// delivered the settlement, so undo what this goroutine created
		b.mu.Unlock()
		unsubUpdate()
		unsubLog()
		b.transport.Unsubscribe(w.channel)
		b.store.Clear(id)
	} else {
		w.unsubs = []func(){unsubUpdate, unsubLog}
		w.timer = time.AfterFunc(b.timeout, func() {
			if b.settle(id, nil, streamsync.CloneError(streamsync.ErrTimeout, "", nil,
				map[string]any{"execution_id": id, "timeout": b.timeout.String()})) {
				metrics.ExecutionTimeouts.Inc()
				metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeTimeout).Inc()
			}
		})
		b.mu.Unlock()
	}

	select {
	case s := <-w.ch:
		return s.result, s.err
	case <-ctx.Done():
		b.settle(id, nil, streamsync.CloneError(streamsync.ErrTornDown,
			"caller context canceled", ctx.Err(),
			map[string]any{"execution_id": id}))
		s := <-w.ch
		return s.result, s.err
	}
}

// Close rejects every pending waiter with a torn-down error and releases all
// subscriptions and timers. Idempotent; no resources outlive the bridge.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := make(map[string]*waiter, len(b.waiters))
	for id, w := range b.waiters {
		pending[id] = w
	}
	b.waiters = make(map[string]*waiter)
	b.mu.Unlock()

	for id, w := range pending {
		b.release(id, w)
		metrics.ActiveWaiters.Dec()
		metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeTornDown).Inc()
		w.ch <- settlement{err: streamsync.CloneError(streamsync.ErrTornDown, "", nil,
			map[string]any{"execution_id": id})}
	}
}

// Pending reports how many executions are awaiting settlement.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bridge) register(id string, w *waiter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return streamsync.ErrTornDown.Clone()
	}
	if _, exists := b.waiters[id]; exists {
		return streamsync.CloneError(streamsync.ErrDuplicateWaiter, "", nil,
			map[string]any{"execution_id": id})
	}
	b.waiters[id] = w
	return nil
}

// settle removes the waiter and delivers the outcome. The first caller to
// remove the entry wins; timeout and terminal settlement are therefore
// mutually exclusive, and losers no-op. Returns whether this call settled.
func (b *Bridge) settle(id string, res *Result, err error) bool {
	b.mu.Lock()
	w, ok := b.waiters[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.waiters, id)
	b.mu.Unlock()

	b.release(id, w)
	metrics.ActiveWaiters.Dec()
	w.ch <- settlement{result: res, err: err}
	return true
}

// release is the idempotent cleanup path: disarm the timer, drop both event
// handlers, unsubscribe the channel, clear the stream entry.
func (b *Bridge) release(id string, w *waiter) {
	b.mu.Lock()
	timer := w.timer
	unsubs := w.unsubs
	w.timer = nil
	w.unsubs = nil
	b.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	for _, unsub := range unsubs {
		unsub()
	}
	b.transport.Unsubscribe(w.channel)
	b.store.Clear(id)
}

func (b *Bridge) handleUpdate(id string, ev transport.UpdateEvent) {
	if len(ev.Logs) > 0 {
		b.store.AppendLogs(id, ev.Logs...)
	}
	if ev.Status != "" && !ev.Status.IsTerminal() {
		// terminal transitions belong to CompleteExecution, after the
		// authoritative read confirms the outcome
		b.store.UpdateStatus(id, ev.Status)
	}
	if ev.Error != "" {
		b.store.SetError(id, ev.Error)
	}
	if !ev.IsComplete {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.fetchTimeout)
	defer cancel()

	rec, err := b.reader.Execution(ctx, id)
	if err != nil {
		if b.settle(id, nil, streamsync.CloneError(streamsync.ErrFetchAfterComplete, "", err,
			map[string]any{"execution_id": id})) {
			metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return
	}
	if rec == nil {
		if b.settle(id, nil, streamsync.CloneError(streamsync.ErrFetchAfterComplete,
			"authoritative read returned no record", nil,
			map[string]any{"execution_id": id})) {
			metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return
	}

	status := rec.Status
	if status == streamsync.StatusSuccess {
		b.store.CompleteExecution(id, rec.Result, status)
		if b.settle(id, &Result{ExecutionID: id, Status: status, Data: rec.Result}, nil) {
			metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeSuccess).Inc()
		}
		return
	}

	b.store.CompleteExecution(id, nil, streamsync.StatusError)
	if b.settle(id, nil, streamsync.CloneError(streamsync.ErrExecutionFailed,
		errorMessageOr(rec.ErrorMessage, "execution reported failure"), nil,
		map[string]any{"execution_id": id, "status": string(status)})) {
		metrics.ExecutionsSettled.WithLabelValues(metrics.OutcomeError).Inc()
	}
}

func errorMessageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) != "" {
		return msg
	}
	return fallback
}

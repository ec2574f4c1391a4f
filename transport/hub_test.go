package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamsync "github.com/goliatone/go-streamsync"
)

func TestHubConnect(t *testing.T) {
	h := NewHub()
	assert.False(t, h.IsConnected())

	require.NoError(t, h.Connect(context.Background(), []string{"execution:e1"}))
	assert.True(t, h.IsConnected())

	h.Unsubscribe("execution:e1")
	assert.False(t, h.IsConnected())
}

func TestHubConnectError(t *testing.T) {
	boom := errors.New("dial failed")
	h := NewHub(WithConnectError(boom))

	err := h.Connect(context.Background(), []string{"execution:e1"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, h.IsConnected())
}

func TestHubConnectCanceledContext(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Connect(ctx, []string{"execution:e1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHubPublishRouting(t *testing.T) {
	h := NewHub()

	var e1Updates, e2Updates []UpdateEvent
	h.OnExecutionUpdate("e1", func(ev UpdateEvent) { e1Updates = append(e1Updates, ev) })
	h.OnExecutionUpdate("e2", func(ev UpdateEvent) { e2Updates = append(e2Updates, ev) })

	h.PublishUpdate(UpdateEvent{ExecutionID: "e1", Status: streamsync.StatusRunning})
	h.PublishUpdate(UpdateEvent{ExecutionID: "e1", IsComplete: true})
	h.PublishUpdate(UpdateEvent{ExecutionID: "e2", Status: streamsync.StatusRunning})

	require.Len(t, e1Updates, 2)
	assert.Equal(t, streamsync.StatusRunning, e1Updates[0].Status)
	assert.True(t, e1Updates[1].IsComplete)
	require.Len(t, e2Updates, 1)
}

func TestHubUnsubscribeHandler(t *testing.T) {
	h := NewHub()

	var count atomic.Int32
	unsub := h.OnExecutionLog("e1", func(LogEvent) { count.Add(1) })
	require.Equal(t, 1, h.HandlerCount("e1"))

	h.PublishLog(LogEvent{ExecutionID: "e1", Log: streamsync.StreamLog{Message: "one"}})

	unsub()
	unsub() // idempotent
	assert.Equal(t, 0, h.HandlerCount("e1"))

	h.PublishLog(LogEvent{ExecutionID: "e1", Log: streamsync.StreamLog{Message: "two"}})
	assert.Equal(t, int32(1), count.Load())
}

func TestHubUnsubscribeOnlyRemovesOwnHandler(t *testing.T) {
	h := NewHub()

	var first, second atomic.Int32
	unsubFirst := h.OnExecutionUpdate("e1", func(UpdateEvent) { first.Add(1) })
	h.OnExecutionUpdate("e1", func(UpdateEvent) { second.Add(1) })

	unsubFirst()
	h.PublishUpdate(UpdateEvent{ExecutionID: "e1"})

	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestHubConcurrentSubscribePublish(t *testing.T) {
	h := NewHub()

	var delivered atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := h.OnExecutionUpdate("e1", func(UpdateEvent) { delivered.Add(1) })
			unsub()
		}()
		go func() {
			defer wg.Done()
			h.PublishUpdate(UpdateEvent{ExecutionID: "e1"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.HandlerCount("e1"))
}

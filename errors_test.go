package streamsync

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, ErrorCode(ErrTimeout))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
	assert.Equal(t, "", ErrorCode(nil))

	wrapped := fmt.Errorf("outer: %w", CloneError(ErrTornDown, "", nil, nil))
	assert.Equal(t, ErrCodeTornDown, ErrorCode(wrapped))
}

func TestCloneErrorKeepsBaseUntouched(t *testing.T) {
	source := errors.New("dial refused")
	derived := CloneError(ErrConnectFailed, "custom message", source, map[string]any{"channel": "execution:e1"})

	assert.Equal(t, "custom message", derived.Message)
	assert.Equal(t, source, derived.Source)
	assert.Equal(t, ErrCodeConnectFailed, derived.TextCode)

	// the sentinel keeps its original message
	assert.NotEqual(t, "custom message", ErrConnectFailed.Message)
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsTimeout(ErrTimeout.Clone()))
	assert.True(t, IsTornDown(ErrTornDown.Clone()))
	assert.True(t, IsExecutionFailure(ErrExecutionFailed.Clone()))

	assert.False(t, IsTornDown(ErrExecutionFailed.Clone()),
		"teardown must be distinguishable from job failure")
	assert.False(t, IsTimeout(errors.New("plain")))
}

func TestHTTPStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidRequest.Clone(), http.StatusBadRequest},
		{ErrTimeout.Clone(), http.StatusGatewayTimeout},
		{ErrRequestFailed.Clone(), http.StatusBadGateway},
		{ErrConnectFailed.Clone(), http.StatusBadGateway},
		{ErrFetchAfterComplete.Clone(), http.StatusBadGateway},
		{ErrTornDown.Clone(), http.StatusConflict},
		{ErrDuplicateWaiter.Clone(), http.StatusConflict},
		{ErrExecutionFailed.Clone(), http.StatusUnprocessableEntity},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HTTPStatusForError(tc.err))
	}
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, NormalizeStatus("Success"))
	assert.Equal(t, StatusSuccess, NormalizeStatus("completed"))
	assert.Equal(t, StatusError, NormalizeStatus("failed"))
	assert.Equal(t, StatusRunning, NormalizeStatus("in_progress"))
	assert.Equal(t, StatusPending, NormalizeStatus("queued"))
	assert.Equal(t, StatusRunning, NormalizeStatus("running"))
	assert.Equal(t, ExecutionStatus("weird"), NormalizeStatus("weird"))
}

func TestStatusRank(t *testing.T) {
	assert.True(t, StatusPending.Rank() < StatusRunning.Rank())
	assert.True(t, StatusRunning.Rank() < StatusSuccess.Rank())
	assert.Equal(t, StatusSuccess.Rank(), StatusError.Rank())
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
}

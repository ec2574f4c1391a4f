package streamsync

import (
	stderrors "errors"
	"net/http"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeRequestFailed      = "SYNC_REQUEST_FAILED"
	ErrCodeConnectFailed      = "SYNC_CONNECT_FAILED"
	ErrCodeTimeout            = "SYNC_TIMEOUT"
	ErrCodeFetchAfterComplete = "SYNC_FETCH_AFTER_COMPLETE"
	ErrCodeExecutionFailed    = "SYNC_EXECUTION_FAILED"
	ErrCodeTornDown           = "SYNC_TORN_DOWN"
	ErrCodeDuplicateWaiter    = "SYNC_DUPLICATE_WAITER"
	ErrCodeInvalidRequest     = "SYNC_INVALID_REQUEST"
)

var (
	ErrRequestFailed = apperrors.New("job trigger request failed", apperrors.CategoryExternal).
				WithTextCode(ErrCodeRequestFailed)
	ErrConnectFailed = apperrors.New("transport connect failed", apperrors.CategoryExternal).
				WithTextCode(ErrCodeConnectFailed)
	ErrTimeout = apperrors.New("no terminal event within timeout", apperrors.CategoryExternal).
			WithTextCode(ErrCodeTimeout)
	ErrFetchAfterComplete = apperrors.New("authoritative read failed after completion signal", apperrors.CategoryExternal).
				WithTextCode(ErrCodeFetchAfterComplete)
	ErrExecutionFailed = apperrors.New("execution reported failure", apperrors.CategoryHandler).
				WithTextCode(ErrCodeExecutionFailed)
	ErrTornDown = apperrors.New("owner torn down while execution in flight", apperrors.CategoryConflict).
			WithTextCode(ErrCodeTornDown)
	ErrDuplicateWaiter = apperrors.New("execution id already has a live waiter", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateWaiter)
	ErrInvalidRequest = apperrors.New("invalid execution request", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidRequest)
)

// CloneError derives a concrete error from one of the taxonomy sentinels,
// optionally replacing the message and attaching a source and metadata.
func CloneError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrRequestFailed
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode extracts the taxonomy text code from an error chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool {
	return ErrorCode(err) == ErrCodeTimeout
}

// IsTornDown reports whether err came from owner teardown rather than a
// genuine job failure. Callers use this to suppress user-facing error
// surfaces on intentional cancellation.
func IsTornDown(err error) bool {
	return ErrorCode(err) == ErrCodeTornDown
}

// IsExecutionFailure reports whether the job itself reported a non-success
// terminal status.
func IsExecutionFailure(err error) bool {
	return ErrorCode(err) == ErrCodeExecutionFailed
}

// HTTPStatusForError maps taxonomy codes onto HTTP statuses for callers that
// re-expose bridge failures over a web surface.
func HTTPStatusForError(err error) int {
	switch ErrorCode(err) {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeRequestFailed, ErrCodeConnectFailed, ErrCodeFetchAfterComplete:
		return http.StatusBadGateway
	case ErrCodeDuplicateWaiter, ErrCodeTornDown:
		return http.StatusConflict
	case ErrCodeExecutionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

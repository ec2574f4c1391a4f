// Package client implements the job-trigger and authoritative-read API
// contracts the bridge consumes, over HTTP.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	streamsync "github.com/goliatone/go-streamsync"
)

const (
	executionsPath = "/api/executions"

	defaultRequestTimeout = 30 * time.Second
)

// HTTPClient talks to the execution API. It satisfies the bridge's Runner and
// Reader contracts.
type HTTPClient struct {
	rc     *resty.Client
	logger streamsync.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds each HTTP request.
func WithTimeout(t time.Duration) Option {
	return func(c *HTTPClient) {
		if t > 0 {
			c.rc.SetTimeout(t)
		}
	}
}

// WithHeader sets a default header on every request.
func WithHeader(key, value string) Option {
	return func(c *HTTPClient) {
		c.rc.SetHeader(key, value)
	}
}

// WithLogger sets the client logger.
func WithLogger(l streamsync.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// WithRestyClient replaces the underlying resty client; used by tests.
func WithRestyClient(rc *resty.Client) Option {
	return func(c *HTTPClient) {
		if rc != nil {
			c.rc = rc
		}
	}
}

// New constructs a client for the given API base URL.
func New(baseURL string, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "api base url required", nil, nil)
	}
	c := &HTTPClient{
		rc: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultRequestTimeout).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = streamsync.NormalizeLogger(c.logger)
	return c, nil
}

type triggerPayload struct {
	JobID string         `json:"job_id"`
	Input map[string]any `json:"input_params,omitempty"`
}

// Trigger issues POST /api/executions and returns the trigger response.
func (c *HTTPClient) Trigger(ctx context.Context, jobID string, input map[string]any) (*streamsync.TriggerResponse, error) {
	var out streamsync.TriggerResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(triggerPayload{JobID: jobID, Input: input}).
		SetResult(&out).
		Post(executionsPath)
	if err != nil {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed, "", err,
			map[string]any{"job_id": jobID})
	}
	if resp.IsError() {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed,
			fmt.Sprintf("trigger returned %d", resp.StatusCode()), nil,
			map[string]any{"job_id": jobID, "status": resp.StatusCode(), "body": resp.String()})
	}
	out.Status = streamsync.NormalizeStatus(string(out.Status))
	return &out, nil
}

// Execution issues GET /api/executions/{id} and returns the authoritative
// record.
func (c *HTTPClient) Execution(ctx context.Context, id string) (*streamsync.ExecutionRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "execution id required", nil, nil)
	}
	var out streamsync.ExecutionRecord
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		Get(executionsPath + "/" + id)
	if err != nil {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed, "execution read failed", err,
			map[string]any{"execution_id": id})
	}
	if resp.IsError() {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed,
			fmt.Sprintf("execution read returned %d", resp.StatusCode()), nil,
			map[string]any{"execution_id": id, "status": resp.StatusCode(), "body": resp.String()})
	}
	out.Status = streamsync.NormalizeStatus(string(out.Status))
	return &out, nil
}

// ExecutionDetails issues GET /api/executions/{id} and returns the full
// execution view, including input, timestamps, and the originating job id.
func (c *HTTPClient) ExecutionDetails(ctx context.Context, id string) (*streamsync.Execution, error) {
	if strings.TrimSpace(id) == "" {
		return nil, streamsync.CloneError(streamsync.ErrInvalidRequest, "execution id required", nil, nil)
	}
	var out streamsync.Execution
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		Get(executionsPath + "/" + id)
	if err != nil {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed, "execution read failed", err,
			map[string]any{"execution_id": id})
	}
	if resp.IsError() {
		return nil, streamsync.CloneError(streamsync.ErrRequestFailed,
			fmt.Sprintf("execution read returned %d", resp.StatusCode()), nil,
			map[string]any{"execution_id": id, "status": resp.StatusCode(), "body": resp.String()})
	}
	out.Status = streamsync.NormalizeStatus(string(out.Status))
	return &out, nil
}

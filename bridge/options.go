package bridge

import (
	"strings"
	"time"

	streamsync "github.com/goliatone/go-streamsync"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout bounds the wait for a terminal event per execution.
func WithTimeout(t time.Duration) Option {
	return func(b *Bridge) {
		if t > 0 {
			b.timeout = t
		}
	}
}

// WithFetchTimeout bounds the authoritative read after a completion signal.
func WithFetchTimeout(t time.Duration) Option {
	return func(b *Bridge) {
		if t > 0 {
			b.fetchTimeout = t
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l streamsync.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithChannelPrefix namespaces per-execution channels.
func WithChannelPrefix(prefix string) Option {
	return func(b *Bridge) {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			return
		}
		b.channelName = func(id string) string {
			return prefix + ":" + id
		}
	}
}

// WithChannelNamer replaces channel naming entirely.
func WithChannelNamer(fn func(executionID string) string) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.channelName = fn
		}
	}
}

// WithConfig applies timeout and channel naming from a parsed config.
func WithConfig(cfg streamsync.Config) Option {
	return func(b *Bridge) {
		if cfg.DefaultTimeout > 0 {
			b.timeout = cfg.DefaultTimeout.Std()
		}
		b.channelName = cfg.ChannelName
	}
}

type callState struct {
	onAccepted func(executionID string)
}

func (c callState) accepted(id string) {
	if c.onAccepted != nil {
		c.onAccepted(id)
	}
}

// CallOption configures a single Execute invocation.
type CallOption func(*callState)

// OnAccepted fires once the trigger API returns an execution id, before any
// streaming happens. Observers use it to track in-flight ids.
func OnAccepted(fn func(executionID string)) CallOption {
	return func(c *callState) {
		c.onAccepted = fn
	}
}

func applyCallOptions(opts []CallOption) callState {
	var c callState
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

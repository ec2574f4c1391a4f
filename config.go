package streamsync

import (
	"strings"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultExecutionTimeout bounds the wait for a terminal event.
	DefaultExecutionTimeout = 5 * time.Minute
	// DefaultChannelPrefix namespaces per-execution transport channels.
	DefaultChannelPrefix = "execution"
)

// Duration wraps time.Duration so YAML/JSON configs can use "5m" style values.
type Duration time.Duration

// UnmarshalYAML parses duration strings and bare nanosecond integers.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(strings.TrimSpace(raw))
		if perr != nil {
			return apperrors.Wrap(perr, apperrors.CategoryBadInput, "invalid duration").
				WithTextCode("SYNC_INVALID_DURATION").
				WithMetadata(map[string]any{"value": raw})
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryBadInput, "invalid duration").
			WithTextCode("SYNC_INVALID_DURATION")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// JanitorConfig controls the optional terminal-entry sweep.
type JanitorConfig struct {
	// Schedule is a cron expression; empty disables the janitor.
	Schedule string `yaml:"schedule" json:"schedule"`
	// Retention is how long terminal entries survive before the sweep.
	Retention Duration `yaml:"retention" json:"retention"`
}

// Config carries the tunables for the synchronization core.
type Config struct {
	DefaultTimeout Duration      `yaml:"default_timeout" json:"default_timeout"`
	APIBaseURL     string        `yaml:"api_base_url" json:"api_base_url"`
	ChannelPrefix  string        `yaml:"channel_prefix" json:"channel_prefix"`
	Janitor        JanitorConfig `yaml:"janitor" json:"janitor"`
}

// ParseConfig reads YAML or JSON into a Config and applies defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// yaml can handle JSON too, so a single attempt is fine
		return cfg, apperrors.Wrap(err, apperrors.CategoryBadInput, "parse config").
			WithTextCode("SYNC_INVALID_CONFIG")
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = Duration(DefaultExecutionTimeout)
	}
	if strings.TrimSpace(c.ChannelPrefix) == "" {
		c.ChannelPrefix = DefaultChannelPrefix
	}
}

// Validate rejects configs that would misbehave at runtime.
func (c Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return apperrors.New("default_timeout must be positive", apperrors.CategoryValidation).
			WithTextCode("SYNC_INVALID_CONFIG")
	}
	if c.Janitor.Schedule != "" && c.Janitor.Retention <= 0 {
		return apperrors.New("janitor retention required when schedule is set", apperrors.CategoryValidation).
			WithTextCode("SYNC_INVALID_CONFIG")
	}
	return nil
}

// ChannelName builds the transport channel for an execution id.
func (c Config) ChannelName(executionID string) string {
	prefix := c.ChannelPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + ":" + executionID
}

// Package config loads and validates the application configuration
// from a YAML file. Values of the form ${VAR} are expanded from the
// environment before parsing, so secrets never need to live in the
// file itself.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/leadline/internal/callflow"
	"github.com/haasonsaas/leadline/internal/dialogue"
	"github.com/haasonsaas/leadline/internal/llm"
	"github.com/haasonsaas/leadline/internal/notify"
	"github.com/haasonsaas/leadline/internal/observability"
	"github.com/haasonsaas/leadline/internal/scheduler"
	"github.com/haasonsaas/leadline/internal/telephony"
	"github.com/haasonsaas/leadline/internal/tts"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Log       observability.LogConfig `yaml:"log"`
	Storage   StorageConfig           `yaml:"storage"`
	Twilio    telephony.Config        `yaml:"twilio"`
	LLM       llm.Config              `yaml:"llm"`
	TTS       tts.Config              `yaml:"tts"`
	Dialogue  dialogue.Config         `yaml:"dialogue"`
	Call      callflow.Config         `yaml:"call"`
	Scheduler SchedulerConfig         `yaml:"scheduler"`
	Notify    NotifyConfig            `yaml:"notify"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host to bind. Default: 0.0.0.0.
	Host string `yaml:"host"`

	// Port to listen on. Default: 8080.
	Port int `yaml:"port"`

	// PublicURL is the externally reachable base URL the telephony
	// provider uses to fetch webhook documents and audio files.
	// No trailing slash.
	PublicURL string `yaml:"public_url"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StorageConfig selects the lead store backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite". Default: memory.
	Driver string `yaml:"driver"`

	// Path is the database file, required for the sqlite driver.
	Path string `yaml:"path"`
}

// SchedulerConfig holds call scheduling and session housekeeping
// settings. Durations are Go duration strings ("2m", "30s").
type SchedulerConfig struct {
	// CallDelay between form submission and the outbound call.
	// Default: 2m.
	CallDelay string `yaml:"call_delay"`

	// SweepInterval between expired-session collections. Default: 5m.
	SweepInterval string `yaml:"sweep_interval"`

	// SessionTTL after which an idle call session is dropped.
	// Default: 30m.
	SessionTTL string `yaml:"session_ttl"`
}

// Durations parses the duration fields.
func (c SchedulerConfig) Durations() (callDelay, sweepInterval, sessionTTL time.Duration, err error) {
	if callDelay, err = time.ParseDuration(c.CallDelay); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduler.call_delay: %w", err)
	}
	if sweepInterval, err = time.ParseDuration(c.SweepInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduler.sweep_interval: %w", err)
	}
	if sessionTTL, err = time.ParseDuration(c.SessionTTL); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduler.session_ttl: %w", err)
	}
	return callDelay, sweepInterval, sessionTTL, nil
}

// Runtime converts the parsed fields into the scheduler's config.
func (c SchedulerConfig) Runtime() (scheduler.Config, error) {
	callDelay, sweepInterval, _, err := c.Durations()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{CallDelay: callDelay, SweepInterval: sweepInterval}, nil
}

// NotifyConfig holds admin alerting settings. Channels with empty
// credentials are simply not wired.
type NotifyConfig struct {
	// AdminPhone receives SMS alerts for interested leads.
	AdminPhone string `yaml:"admin_phone"`

	// Slack posts the same alert to a channel when configured.
	Slack notify.SlackConfig `yaml:"slack"`
}

// DefaultConfig returns a configuration with all defaults applied and
// no credentials set.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields on the whole tree.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Scheduler.CallDelay == "" {
		c.Scheduler.CallDelay = "2m"
	}
	if c.Scheduler.SweepInterval == "" {
		c.Scheduler.SweepInterval = "5m"
	}
	if c.Scheduler.SessionTTL == "" {
		c.Scheduler.SessionTTL = "30m"
	}
	c.LLM.ApplyDefaults()
	c.TTS.ApplyDefaults()
	c.Dialogue.ApplyDefaults()
	c.Call.ApplyDefaults()
}

// Validate checks the tree for inconsistencies. Twilio credentials are
// always required; everything else degrades gracefully when absent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required")
	}
	if strings.HasSuffix(c.Server.PublicURL, "/") {
		return fmt.Errorf("server.public_url must not end with a slash")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if err := c.Twilio.Validate(); err != nil {
		return err
	}
	if err := c.TTS.Validate(); err != nil {
		return err
	}
	if _, _, _, err := c.Scheduler.Durations(); err != nil {
		return err
	}
	return nil
}

// Load reads, expands, parses, defaults, and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the full configuration surface of the transmitter daemon.
// Precedence: flags > environment (SAMPLESHIP_*) > config file > defaults.
type Config struct {
	// DeviceID identifies this transmitter; it prefixes every sample id.
	DeviceID string

	// ReceiverEndpoint is the receiver base URL (https).
	ReceiverEndpoint string

	// mTLS credential material, provisioned externally.
	CertFile string
	KeyFile  string
	CAFile   string

	// DataDir is the root for durable state. BufferDir and ErrorDir are
	// derived from it when left empty.
	DataDir   string
	BufferDir string
	ErrorDir  string

	// InboxDir, when set, enables the capture-handover watcher.
	InboxDir string

	// Retry and scheduling policy.
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	SendTimeout  time.Duration
	PollInterval time.Duration

	// Once drains the currently buffered samples and exits.
	Once bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:      defaultDataDir(),
		MaxAttempts:  5,
		BaseBackoff:  500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
		SendTimeout:  5 * time.Second,
		PollInterval: time.Second,
	}
}

func defaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".sampleship", "data")
	}
	return ""
}

// Validate checks the configuration and sets derived defaults.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device-id is required")
	}
	if c.ReceiverEndpoint == "" {
		return fmt.Errorf("receiver-endpoint is required")
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return fmt.Errorf("cert-file, key-file and ca-file are required")
	}

	if c.BufferDir == "" || c.ErrorDir == "" {
		if c.DataDir == "" {
			return fmt.Errorf("data-dir is required (or explicit buffer-dir and error-dir)")
		}
		if c.BufferDir == "" {
			c.BufferDir = filepath.Join(c.DataDir, "buffer")
		}
		if c.ErrorDir == "" {
			c.ErrorDir = filepath.Join(c.DataDir, "errors")
		}
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Dir(c.BufferDir)
	}

	// Ensure no trailing slash
	if n := len(c.ReceiverEndpoint); n > 0 && c.ReceiverEndpoint[n-1] == '/' {
		c.ReceiverEndpoint = c.ReceiverEndpoint[:n-1]
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be at least 1")
	}
	if c.BaseBackoff <= 0 || c.MaxBackoff <= 0 {
		return fmt.Errorf("backoff durations must be positive")
	}
	if c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("max-backoff must not be smaller than base-backoff")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send-timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence: a value is only applied if the corresponding flag was not
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses an environment string into an int destination.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses an environment string into a bool destination.
// Accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

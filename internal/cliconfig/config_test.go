package cliconfig

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.DeviceID = "dev01"
	cfg.ReceiverEndpoint = "https://receiver:8443"
	cfg.CertFile = "/etc/sampleship/device.crt"
	cfg.KeyFile = "/etc/sampleship/device.key"
	cfg.CAFile = "/etc/sampleship/ca.pem"
	cfg.DataDir = "/var/lib/sampleship"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.BaseBackoff != 500*time.Millisecond {
		t.Errorf("BaseBackoff = %v, want 500ms", cfg.BaseBackoff)
	}
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", cfg.MaxBackoff)
	}
	if cfg.SendTimeout != 5*time.Second {
		t.Errorf("SendTimeout = %v, want 5s", cfg.SendTimeout)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.Once {
		t.Error("Once defaults to true, want false")
	}
}

func TestConfig_ValidateDerivesDirs(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.BufferDir != filepath.Join("/var/lib/sampleship", "buffer") {
		t.Errorf("BufferDir = %s, want derived from DataDir", cfg.BufferDir)
	}
	if cfg.ErrorDir != filepath.Join("/var/lib/sampleship", "errors") {
		t.Errorf("ErrorDir = %s, want derived from DataDir", cfg.ErrorDir)
	}
}

func TestConfig_ValidateKeepsExplicitDirs(t *testing.T) {
	cfg := validConfig()
	cfg.BufferDir = "/mnt/fast/buffer"
	cfg.ErrorDir = "/mnt/fast/errors"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.BufferDir != "/mnt/fast/buffer" || cfg.ErrorDir != "/mnt/fast/errors" {
		t.Errorf("explicit dirs were overridden: %s, %s", cfg.BufferDir, cfg.ErrorDir)
	}
}

func TestConfig_ValidateTrimsEndpointSlash(t *testing.T) {
	cfg := validConfig()
	cfg.ReceiverEndpoint = "https://receiver:8443/"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ReceiverEndpoint != "https://receiver:8443" {
		t.Errorf("ReceiverEndpoint = %s, want trailing slash removed", cfg.ReceiverEndpoint)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing device id", func(c *Config) { c.DeviceID = "" }, "device-id"},
		{"missing endpoint", func(c *Config) { c.ReceiverEndpoint = "" }, "receiver-endpoint"},
		{"missing cert", func(c *Config) { c.CertFile = "" }, "cert-file"},
		{"missing key", func(c *Config) { c.KeyFile = "" }, "cert-file"},
		{"missing ca", func(c *Config) { c.CAFile = "" }, "cert-file"},
		{"no dirs at all", func(c *Config) { c.DataDir = "" }, "data-dir"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "max-attempts"},
		{"negative base backoff", func(c *Config) { c.BaseBackoff = -1 }, "backoff"},
		{"max below base", func(c *Config) { c.MaxBackoff = c.BaseBackoff / 2 }, "max-backoff"},
		{"zero send timeout", func(c *Config) { c.SendTimeout = 0 }, "send-timeout"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll-interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestConfig_ValidateExplicitDirsWithoutDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	cfg.BufferDir = "/mnt/fast/buffer"
	cfg.ErrorDir = "/mnt/fast/errors"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.DataDir != "/mnt/fast" {
		t.Errorf("DataDir = %s, want derived /mnt/fast", cfg.DataDir)
	}
}

package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to keep the
// TOML file human-friendly.
type fileConfig struct {
	DeviceID         string `toml:"device_id"`
	ReceiverEndpoint string `toml:"receiver_endpoint"`
	CertFile         string `toml:"cert_file"`
	KeyFile          string `toml:"key_file"`
	CAFile           string `toml:"ca_file"`
	DataDir          string `toml:"data_dir"`
	BufferDir        string `toml:"buffer_dir"`
	ErrorDir         string `toml:"error_dir"`
	InboxDir         string `toml:"inbox_dir"`
	MaxAttempts      int    `toml:"max_attempts"`
	BaseBackoff      string `toml:"base_backoff"`
	MaxBackoff       string `toml:"max_backoff"`
	SendTimeout      string `toml:"send_timeout"`
	PollInterval     string `toml:"poll_interval"`
	Once             *bool  `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.sampleship/config.toml when the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".sampleship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies file values to cfg, respecting flags that were
// explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("receiver-endpoint", fc.ReceiverEndpoint, &cfg.ReceiverEndpoint)
	s.setString("cert-file", fc.CertFile, &cfg.CertFile)
	s.setString("key-file", fc.KeyFile, &cfg.KeyFile)
	s.setString("ca-file", fc.CAFile, &cfg.CAFile)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("buffer-dir", fc.BufferDir, &cfg.BufferDir)
	s.setString("error-dir", fc.ErrorDir, &cfg.ErrorDir)
	s.setString("inbox-dir", fc.InboxDir, &cfg.InboxDir)

	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)

	if err := s.setDuration("base-backoff", fc.BaseBackoff, &cfg.BaseBackoff); err != nil {
		return err
	}
	if err := s.setDuration("max-backoff", fc.MaxBackoff, &cfg.MaxBackoff); err != nil {
		return err
	}
	if err := s.setDuration("send-timeout", fc.SendTimeout, &cfg.SendTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll-interval", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

package sampleship

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
)

// Config holds the configuration for an embedded Transmitter.
// Use DefaultConfig() for sensible defaults; DeviceID, ReceiverEndpoint,
// DataDir and the credential paths must be set by the caller.
type Config struct {
	// DeviceID identifies this transmitter; it prefixes every sample id
	// and accompanies every wire request.
	DeviceID string

	// ReceiverEndpoint is the receiver base URL, e.g. "https://receiver:8443".
	ReceiverEndpoint string

	// Externally provisioned mTLS material: device certificate, device
	// key, and the receiver's trusted root.
	CertFile string
	KeyFile  string
	CAFile   string

	// DataDir roots the durable state; BufferDir and ErrorDir are derived
	// from it when empty.
	DataDir   string
	BufferDir string
	ErrorDir  string

	// InboxDir, when set, enables the file-handover producer interface.
	InboxDir string

	// MaxAttempts is the per-sample send attempt budget (>= 1).
	MaxAttempts int

	// BaseBackoff and MaxBackoff bound the exponential retry delay.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// SendTimeout bounds each individual send attempt.
	SendTimeout time.Duration

	// PollInterval is the idle wakeup period of the drain loop.
	PollInterval time.Duration

	// Once drains the currently buffered samples and stops.
	Once bool
}

// DefaultConfig returns a Config with default policy values.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		BaseBackoff:  500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
		SendTimeout:  5 * time.Second,
		PollInterval: time.Second,
	}
}

// SetDefaults fills derived and zero-valued policy fields.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = def.PollInterval
	}
	if c.DataDir != "" {
		if c.BufferDir == "" {
			c.BufferDir = filepath.Join(c.DataDir, "buffer")
		}
		if c.ErrorDir == "" {
			c.ErrorDir = filepath.Join(c.DataDir, "errors")
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("%w: DeviceID is required", domain.ErrInvalidConfig)
	}
	if c.ReceiverEndpoint == "" {
		return fmt.Errorf("%w: ReceiverEndpoint is required", domain.ErrInvalidConfig)
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return fmt.Errorf("%w: CertFile, KeyFile and CAFile are required", domain.ErrInvalidConfig)
	}
	if c.BufferDir == "" || c.ErrorDir == "" {
		return fmt.Errorf("%w: DataDir (or BufferDir and ErrorDir) is required", domain.ErrInvalidConfig)
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Dir(c.BufferDir)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: MaxAttempts must be at least 1", domain.ErrInvalidConfig)
	}
	if c.BaseBackoff <= 0 || c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("%w: backoff bounds out of order", domain.ErrInvalidConfig)
	}
	if c.SendTimeout <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: SendTimeout and PollInterval must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// Package sampleship re-exports the embeddable transmitter API from
// pkg/sampleship for callers that prefer the module root import path.
//
// Example usage:
//
//	cfg := sampleship.DefaultConfig()
//	cfg.DeviceID = "raspi-01"
//	cfg.ReceiverEndpoint = "https://receiver:8443"
//	cfg.DataDir = "/var/lib/sampleship"
//	cfg.CertFile, cfg.KeyFile, cfg.CAFile = "device.pem", "device.key", "ca.pem"
//	if err := sampleship.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package sampleship

import (
	"context"

	ship "github.com/orion-sense/sampleship/pkg/sampleship"
)

// Config holds the configuration for the transmitter.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = ship.Config

// Option configures optional behavior of the transmitter.
type Option = ship.Option

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return ship.DefaultConfig()
}

// Run starts the transmitter with the given configuration and blocks
// until the context is canceled (or, with cfg.Once, until the buffer is
// drained). It is a convenience wrapper around pkg/sampleship for callers
// that do not need Start/Stop control.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	t, err := ship.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := t.Start(ctx); err != nil {
		return err
	}
	if cfg.Once {
		t.Wait()
		return nil
	}
	<-ctx.Done()
	if err := t.Stop(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Package sampleship provides an embeddable store-and-forward telemetry
// transmitter with at-least-once delivery.
//
// A Transmitter persists every incoming sample to a durable on-disk queue
// before anything else, then drains the queue against a remote receiver
// over mutually authenticated TLS. Transient failures are retried with
// capped exponential backoff; samples that exhaust their retry budget (or
// fail non-retryably) move to a durable quarantine for operator
// inspection. No sample is ever silently dropped: every terminal outcome
// is a recorded state transition on disk.
//
// # Usage
//
//	cfg := sampleship.DefaultConfig()
//	cfg.DeviceID = "raspi-01"
//	cfg.ReceiverEndpoint = "https://receiver:8443"
//	cfg.DataDir = "/var/lib/sampleship"
//	cfg.CertFile, cfg.KeyFile, cfg.CAFile = "device.pem", "device.key", "ca.pem"
//
//	t, err := sampleship.New(cfg, sampleship.WithLogger(log.NewZerologAdapter()))
//	if err != nil {
//	    // handle
//	}
//	if err := t.Start(ctx); err != nil {
//	    // handle
//	}
//	defer t.Stop()
//
//	// Hand over captures as they complete:
//	t.Enqueue(ctx, wavBytes, capturedAt)
package sampleship

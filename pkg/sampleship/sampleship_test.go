package sampleship

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orion-sense/sampleship/internal/app"
	"github.com/orion-sense/sampleship/internal/domain"
)

// recordingChannel acks every sample, or fails them all with failWith.
type recordingChannel struct {
	mu       sync.Mutex
	received []string
	failWith error
}

func (c *recordingChannel) Send(ctx context.Context, s domain.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.received = append(c.received, s.ID)
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func (c *recordingChannel) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.received...)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DeviceID = "dev01"
	cfg.ReceiverEndpoint = "https://receiver.invalid:8443"
	cfg.CertFile = "/creds/device.crt"
	cfg.KeyFile = "/creds/device.key"
	cfg.CAFile = "/creds/ca.pem"
	cfg.DataDir = t.TempDir()
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DeviceID = ""

	_, err := New(cfg)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestTransmitter_OnceDrainsAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Once = true
	ch := &recordingChannel{}

	tr, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	a, err := tr.Enqueue(ctx, []byte("first"), time.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	b, err := tr.Enqueue(ctx, []byte("second"), time.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.Wait()

	if got := tr.State(); got != app.StateStopped {
		t.Errorf("state after once drain = %v, want Stopped", got)
	}

	ids := ch.ids()
	if len(ids) != 2 {
		t.Fatalf("sent %d samples, want 2", len(ids))
	}
	if ids[0] != a.ID || ids[1] != b.ID {
		t.Errorf("send order = %v, want [%s, %s]", ids, a.ID, b.ID)
	}

	quarantined, err := tr.Quarantined(ctx)
	if err != nil {
		t.Fatalf("Quarantined: %v", err)
	}
	if len(quarantined) != 0 {
		t.Errorf("%d samples quarantined, want 0", len(quarantined))
	}
}

func TestTransmitter_StartTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	ch := &recordingChannel{}

	tr, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	if err := tr.Start(ctx); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestTransmitter_DataDirLock(t *testing.T) {
	cfg := testConfig(t)
	ch := &recordingChannel{}

	first, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, domain.ErrLocked) {
		t.Errorf("second instance Start = %v, want ErrLocked", err)
	}
}

func TestTransmitter_StopWhenStopped(t *testing.T) {
	tr, err := New(testConfig(t), WithChannel(&recordingChannel{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := tr.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop without Start = %v, want ErrNotRunning", err)
	}
}

func TestTransmitter_QuarantinesRejectedSamples(t *testing.T) {
	cfg := testConfig(t)
	cfg.Once = true
	ch := &recordingChannel{
		failWith: &domain.SendError{Kind: domain.KindAuthRejected, Detail: "certificate rejected"},
	}

	tr, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	s, err := tr.Enqueue(ctx, []byte("audio"), time.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.Wait()

	quarantined, err := tr.Quarantined(ctx)
	if err != nil {
		t.Fatalf("Quarantined: %v", err)
	}
	if len(quarantined) != 1 {
		t.Fatalf("%d samples quarantined, want 1", len(quarantined))
	}
	if quarantined[0].Sample.ID != s.ID {
		t.Errorf("quarantined id = %s, want %s", quarantined[0].Sample.ID, s.ID)
	}
	if quarantined[0].LastError != domain.KindAuthRejected {
		t.Errorf("quarantined kind = %s, want auth_rejected", quarantined[0].LastError)
	}
}

func TestTransmitter_RestartResumesBufferedSamples(t *testing.T) {
	cfg := testConfig(t)
	cfg.Once = true
	ch := &recordingChannel{}

	// First instance buffers a sample but never starts.
	first, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := first.Enqueue(context.Background(), []byte("audio"), time.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A fresh instance over the same data dir drains it.
	second, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	second.Wait()

	ids := ch.ids()
	if len(ids) != 1 || ids[0] != s.ID {
		t.Errorf("sent %v, want [%s]", ids, s.ID)
	}
}

func TestTransmitter_StopIsGraceful(t *testing.T) {
	cfg := testConfig(t)
	ch := &recordingChannel{}

	tr, err := New(cfg, WithChannel(ch))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := tr.State(); got != app.StateStopped {
		t.Errorf("state after Stop = %v, want Stopped", got)
	}
}

package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...ports.Field) {}
func (nopLogger) Info(msg string, fields ...ports.Field)  {}
func (nopLogger) Warn(msg string, fields ...ports.Field)  {}
func (nopLogger) Error(msg string, fields ...ports.Field) {}

// captureBuffer records enqueued payloads.
type captureBuffer struct {
	mu       sync.Mutex
	seq      int
	payloads [][]byte
	captured []time.Time
	notify   chan struct{}
}

func newCaptureBuffer() *captureBuffer {
	return &captureBuffer{notify: make(chan struct{}, 1)}
}

func (b *captureBuffer) Enqueue(ctx context.Context, payload []byte, capturedAt time.Time) (domain.Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.payloads = append(b.payloads, payload)
	b.captured = append(b.captured, capturedAt)
	return domain.Sample{ID: fmt.Sprintf("dev-%08d", b.seq)}, nil
}

func (b *captureBuffer) PeekOldestPending(ctx context.Context) (domain.BufferEntry, error) {
	return domain.BufferEntry{}, domain.ErrNotFound
}
func (b *captureBuffer) MarkInFlight(ctx context.Context, id string) error          { return nil }
func (b *captureBuffer) Ack(ctx context.Context, id string) error                   { return nil }
func (b *captureBuffer) Requeue(ctx context.Context, id string, attempts int) error { return nil }
func (b *captureBuffer) Remove(ctx context.Context, id string) error                { return nil }
func (b *captureBuffer) Discard(ctx context.Context, id string) (bool, error)       { return false, nil }
func (b *captureBuffer) RecoverOnStartup(ctx context.Context) (int, error)          { return 0, nil }
func (b *captureBuffer) Notifications() <-chan struct{}                             { return b.notify }

func (b *captureBuffer) snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte{}, b.payloads...)
}

func writePair(t *testing.T, dir, name string, payload []byte, capturedAt time.Time) {
	t.Helper()
	// Producer discipline: payload first, descriptor commits.
	if err := os.WriteFile(filepath.Join(dir, name+payloadExt), payload, 0o600); err != nil {
		t.Fatal(err)
	}
	desc := fmt.Sprintf(`{"captured_at":%q,"duration_seconds":5}`, capturedAt.Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(dir, name+descriptorExt), []byte(desc), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_SweepIngestsExistingPairs(t *testing.T) {
	dir := t.TempDir()
	buffer := newCaptureBuffer()
	capturedAt := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	writePair(t, dir, "capture-002", []byte("second"), capturedAt)
	writePair(t, dir, "capture-001", []byte("first"), capturedAt)

	w := NewWatcher(dir, buffer, time.Second, nopLogger{})
	w.sweep(context.Background())

	got := buffer.snapshot()
	if len(got) != 2 {
		t.Fatalf("ingested %d samples, want 2", len(got))
	}
	// Oldest name first.
	if string(got[0]) != "first" || string(got[1]) != "second" {
		t.Errorf("ingest order = [%q, %q], want [first, second]", got[0], got[1])
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("inbox still holds %d files after ingest, want 0", len(entries))
	}
}

func TestWatcher_SweepSkipsUncommittedPayload(t *testing.T) {
	dir := t.TempDir()
	buffer := newCaptureBuffer()

	// Payload without descriptor: the producer has not committed it yet.
	if err := os.WriteFile(filepath.Join(dir, "capture-001"+payloadExt), []byte("partial"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(dir, buffer, time.Second, nopLogger{})
	w.sweep(context.Background())

	if got := buffer.snapshot(); len(got) != 0 {
		t.Errorf("ingested %d samples, want 0 for uncommitted payload", len(got))
	}
	if _, err := os.Stat(filepath.Join(dir, "capture-001"+payloadExt)); err != nil {
		t.Errorf("uncommitted payload was removed: %v", err)
	}
}

func TestWatcher_SweepSkipsMalformedDescriptor(t *testing.T) {
	dir := t.TempDir()
	buffer := newCaptureBuffer()
	capturedAt := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	if err := os.WriteFile(filepath.Join(dir, "bad"+descriptorExt), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	writePair(t, dir, "good", []byte("audio"), capturedAt)

	w := NewWatcher(dir, buffer, time.Second, nopLogger{})
	w.sweep(context.Background())

	got := buffer.snapshot()
	if len(got) != 1 || string(got[0]) != "audio" {
		t.Fatalf("ingested %v, want only the good pair", got)
	}
	// The malformed descriptor stays for an operator to look at.
	if _, err := os.Stat(filepath.Join(dir, "bad"+descriptorExt)); err != nil {
		t.Errorf("malformed descriptor was removed: %v", err)
	}
}

func TestWatcher_RunIngestsNewPairs(t *testing.T) {
	dir := t.TempDir()
	buffer := newCaptureBuffer()
	capturedAt := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	w := NewWatcher(dir, buffer, 20*time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to start, then drop a pair.
	time.Sleep(50 * time.Millisecond)
	writePair(t, dir, "capture-001", []byte("audio"), capturedAt)

	deadline := time.After(2 * time.Second)
	for len(buffer.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("pair was not ingested")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	got := buffer.snapshot()
	if len(got) != 1 || string(got[0]) != "audio" {
		t.Errorf("ingested %v, want the dropped pair", got)
	}
	if !buffer.captured[0].Equal(capturedAt) {
		t.Errorf("captured at = %v, want %v", buffer.captured[0], capturedAt)
	}
}

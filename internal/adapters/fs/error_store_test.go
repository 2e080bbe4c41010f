package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
)

func newTestErrorStore(t *testing.T) *ErrorStore {
	t.Helper()
	store, err := NewErrorStore(t.TempDir(), nopLogger{})
	if err != nil {
		t.Fatalf("NewErrorStore: %v", err)
	}
	return store
}

func testSample(id string) domain.Sample {
	return domain.Sample{
		ID:              id,
		Payload:         []byte("payload-" + id),
		CapturedAt:      time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		DurationSeconds: domain.DefaultDurationSeconds,
	}
}

func TestErrorStore_QuarantineAndGet(t *testing.T) {
	store := newTestErrorStore(t)
	ctx := context.Background()

	s := testSample("dev01-20260826-00000001")
	if err := store.Quarantine(ctx, s, domain.KindAuthRejected, "certificate rejected", 1); err != nil {
		t.Fatalf("quarantine: %v", err)
	}

	entry, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Sample.ID != s.ID {
		t.Errorf("id = %s, want %s", entry.Sample.ID, s.ID)
	}
	if string(entry.Sample.Payload) != string(s.Payload) {
		t.Errorf("payload = %q, want %q", entry.Sample.Payload, s.Payload)
	}
	if entry.LastError != domain.KindAuthRejected {
		t.Errorf("kind = %s, want auth_rejected", entry.LastError)
	}
	if entry.Detail != "certificate rejected" {
		t.Errorf("detail = %q, want %q", entry.Detail, "certificate rejected")
	}
	if entry.AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", entry.AttemptCount)
	}
	if entry.QuarantinedAt.IsZero() {
		t.Error("quarantined-at timestamp is zero")
	}
}

func TestErrorStore_QuarantineIsIdempotent(t *testing.T) {
	store := newTestErrorStore(t)
	ctx := context.Background()

	s := testSample("dev01-20260826-00000001")
	if err := store.Quarantine(ctx, s, domain.KindTransient, "first", 3); err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	// Replay after a crash in the quarantine window must not overwrite.
	if err := store.Quarantine(ctx, s, domain.KindMalformed, "second", 9); err != nil {
		t.Fatalf("replayed quarantine: %v", err)
	}

	entry, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Detail != "first" {
		t.Errorf("detail = %q, want the original record preserved", entry.Detail)
	}
	if entry.AttemptCount != 3 {
		t.Errorf("attempt count = %d, want 3", entry.AttemptCount)
	}
}

func TestErrorStore_ListInCaptureOrder(t *testing.T) {
	store := newTestErrorStore(t)
	ctx := context.Background()

	// Quarantined out of capture order.
	for _, id := range []string{
		"dev01-20260826-00000003",
		"dev01-20260826-00000001",
		"dev01-20260826-00000002",
	} {
		if err := store.Quarantine(ctx, testSample(id), domain.KindTransient, "x", 5); err != nil {
			t.Fatalf("quarantine %s: %v", id, err)
		}
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("list returned %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Sample.ID >= entries[i].Sample.ID {
			t.Errorf("entries out of order: %s before %s", entries[i-1].Sample.ID, entries[i].Sample.ID)
		}
	}
	// List omits payloads.
	if entries[0].Sample.Payload != nil {
		t.Error("list loaded payloads, want metadata only")
	}
}

func TestErrorStore_GetUnknownID(t *testing.T) {
	store := newTestErrorStore(t)

	_, err := store.Get(context.Background(), "dev01-20260826-00000099")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get of unknown id = %v, want ErrNotFound", err)
	}
}

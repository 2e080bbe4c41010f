package ports

import (
	"context"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
)

// BufferStore is the durable FIFO queue of samples awaiting delivery.
// Entries survive process restarts; every state transition is committed
// atomically (write-temp, fsync, rename or equivalent) so a partial write
// is never visible after a crash.
type BufferStore interface {
	// Enqueue assigns the next sample id, persists a new entry with
	// attemptCount=0 and state=Pending, and returns the stored sample.
	// Returns a *domain.StorageError if the write did not complete durably.
	Enqueue(ctx context.Context, payload []byte, capturedAt time.Time) (domain.Sample, error)

	// PeekOldestPending returns the oldest Pending entry in capture order.
	// Entries already InFlight are never returned. Returns
	// domain.ErrNotFound when no pending entry exists.
	PeekOldestPending(ctx context.Context) (domain.BufferEntry, error)

	// MarkInFlight atomically transitions Pending -> InFlight. Returns a
	// *domain.ConflictError if the entry is not currently Pending, guarding
	// against double dispatch.
	MarkInFlight(ctx context.Context, id string) error

	// Ack permanently removes the entry. Idempotent: acking an absent id is
	// a no-op success, so a crash between remote ack and local removal is
	// safe to replay.
	Ack(ctx context.Context, id string) error

	// Requeue transitions InFlight -> Pending with the updated attempt
	// count after a retryable failure. Returns a *domain.ConflictError if
	// the entry is not InFlight.
	Requeue(ctx context.Context, id string, attemptCount int) error

	// Remove transitions InFlight -> absent; used when migrating a sample
	// to the error store. Acking-style idempotence does not apply: removing
	// an entry that is not InFlight is a *domain.ConflictError, removing an
	// absent id is a no-op success (the quarantine path may be replayed
	// after a crash).
	Remove(ctx context.Context, id string) error

	// Discard unconditionally removes the entry regardless of state and
	// reports whether anything was removed. Used only by startup
	// reconciliation when the error store already holds the same id.
	Discard(ctx context.Context, id string) (bool, error)

	// RecoverOnStartup scans durable state after an unclean shutdown:
	// temp files are swept, orphaned payloads removed, and every entry left
	// InFlight by a prior crash is reset to Pending with its attempt count
	// preserved. Returns the number of entries reset.
	RecoverOnStartup(ctx context.Context) (int, error)

	// Notifications returns a channel that receives a signal after each
	// successful Enqueue. The drain loop uses it as a cooperative wakeup;
	// signals may be coalesced.
	Notifications() <-chan struct{}
}

package ports

import (
	"context"

	"github.com/orion-sense/sampleship/internal/domain"
)

// ErrorStore is the durable quarantine for samples that exhausted their
// retry budget or failed non-retryably. It is a terminal sink: nothing
// drains it automatically, re-injection is an explicit operator action.
type ErrorStore interface {
	// Quarantine persists an ErrorEntry for the sample. Write-once per
	// sample id; quarantining an id that is already present is a no-op
	// success so the quarantine-then-remove sequence can be replayed after
	// a crash. Returns a *domain.StorageError on a non-durable write.
	Quarantine(ctx context.Context, s domain.Sample, kind domain.ErrorKind, detail string, attemptCount int) error

	// List returns all quarantined entries ordered by sample id
	// (capture order). Payloads are not loaded.
	List(ctx context.Context) ([]domain.ErrorEntry, error)

	// Get returns one entry with its payload loaded.
	// Returns domain.ErrNotFound if the id is not quarantined.
	Get(ctx context.Context, id string) (domain.ErrorEntry, error)
}

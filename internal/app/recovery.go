package app

import (
	"context"
	"fmt"

	"github.com/orion-sense/sampleship/internal/ports"
)

// Recover prepares the durable stores after a (possibly unclean) shutdown:
// it resets entries left InFlight back to Pending, then reconciles the
// crash window of the quarantine path. A sample present in both stores was
// quarantined but not yet removed from the buffer; the error store is
// authoritative, so the buffer copy is discarded.
func Recover(ctx context.Context, buffer ports.BufferStore, errorStore ports.ErrorStore, logger ports.Logger) error {
	reset, err := buffer.RecoverOnStartup(ctx)
	if err != nil {
		return fmt.Errorf("recover buffer: %w", err)
	}
	if reset > 0 {
		logger.Info("reset in-flight entries to pending", ports.Int("count", reset))
	}

	quarantined, err := errorStore.List(ctx)
	if err != nil {
		return fmt.Errorf("list quarantine: %w", err)
	}
	for _, e := range quarantined {
		removed, err := buffer.Discard(ctx, e.Sample.ID)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", e.Sample.ID, err)
		}
		if removed {
			logger.Warn("discarded buffered copy of quarantined sample",
				ports.String("id", e.Sample.ID))
		}
	}
	return nil
}

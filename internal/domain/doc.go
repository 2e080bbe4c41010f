// Package domain contains the core domain entities and value objects for
// sampleship.
//
// This package represents the innermost layer of the architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging)
// and contains only pure business rules.
//
// # Entities
//
//   - [Sample]: A single fixed-duration telemetry capture (id, payload, timestamps)
//   - [BufferEntry]: A sample plus transmission metadata in the durable queue
//   - [ErrorEntry]: A quarantined sample in the durable dead-letter store
//
// # Invariants
//
// A captured sample exists in exactly one of the buffer store, the error
// store, or in flight inside the transmitter at any instant. AttemptCount
// is monotonically non-decreasing per sample and persists across restarts.
// The legal transitions per sample are:
//
//	Pending -> InFlight -> Pending (retry)
//	                    -> removed (acked)
//	                    -> removed + quarantined (terminal failure)
//
// Any other transition is a [ConflictError].
package domain

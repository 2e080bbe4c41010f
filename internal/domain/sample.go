package domain

import "time"

// DefaultDurationSeconds is the fixed capture window length.
// Every sample produced by the capture side covers exactly this many seconds.
const DefaultDurationSeconds = 5

// Sample is a single fixed-duration telemetry capture.
// It is immutable once created; its ID is the dedup key used by the
// receiver and by both durable stores.
type Sample struct {
	// ID is the unique, monotonically increasing identifier assigned
	// when the sample enters the buffer (e.g. "raspi-01-20260826-00000042").
	ID string `json:"id"`

	// Payload is the opaque captured data (e.g. a WAV-encoded window).
	Payload []byte `json:"-"`

	// CapturedAt is the UTC timestamp of the start of the capture window.
	CapturedAt time.Time `json:"captured_at"`

	// DurationSeconds is the capture window length.
	DurationSeconds int `json:"duration_seconds"`
}

// EntryState is the durable transmission state of a buffered sample.
type EntryState string

const (
	// StatePending means the entry is waiting for a transmission attempt.
	StatePending EntryState = "pending"

	// StateInFlight means a transmitter worker has claimed the entry and a
	// send attempt may be in progress. InFlight is never trusted across a
	// restart; recovery resets it to Pending.
	StateInFlight EntryState = "in_flight"
)

// BufferEntry is a Sample plus its transmission metadata as persisted in
// the buffer store.
type BufferEntry struct {
	Sample Sample

	// AttemptCount is the number of completed send attempts. It is
	// monotonically non-decreasing and survives restarts.
	AttemptCount int

	// LastAttemptAt is the start time of the most recent attempt, zero if
	// the sample has never been tried.
	LastAttemptAt time.Time

	State EntryState
}

// ErrorKind classifies a failed send attempt.
type ErrorKind string

const (
	// KindTransient covers timeouts, connection resets and receiver-side
	// 5xx responses. Transient failures are retried up to the attempt budget.
	KindTransient ErrorKind = "transient"

	// KindAuthRejected means the credential was missing, expired or refused
	// by the peer. Never retried.
	KindAuthRejected ErrorKind = "auth_rejected"

	// KindMalformed means the receiver rejected the request as invalid.
	// Never retried.
	KindMalformed ErrorKind = "malformed"
)

// Retryable reports whether a failure of this kind consumes retry budget
// rather than quarantining immediately.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// ErrorEntry is a quarantined Sample as persisted in the error store.
// Write-once; the error store is a terminal sink, not a second queue.
type ErrorEntry struct {
	Sample Sample

	// AttemptCount is the attempt count at the moment of quarantine.
	AttemptCount int

	// LastError is the classification of the final failed attempt.
	LastError ErrorKind

	// Detail is the human-readable failure detail from the final attempt.
	Detail string

	QuarantinedAt time.Time
}

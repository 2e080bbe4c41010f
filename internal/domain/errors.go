package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by the public API; check with errors.Is / errors.As.
var (
	// ErrNotFound is returned when a store has no entry for the requested
	// id, and by PeekOldestPending when the queue has no pending entries.
	ErrNotFound = errors.New("sampleship: entry not found")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("sampleship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("sampleship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("sampleship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("sampleship: invalid configuration")

	// ErrLocked is returned when another process already owns the data directory.
	ErrLocked = errors.New("sampleship: data directory locked by another process")
)

// StorageError reports a failed durable read or write. The operation it
// aborted must not have corrupted previously committed state.
type StorageError struct {
	Op   string // "enqueue", "mark_in_flight", ...
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConflictError reports an illegal entry state transition, e.g. marking an
// entry in flight that is not pending. The offending operation is a no-op.
type ConflictError struct {
	ID   string
	From EntryState
	To   EntryState
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: illegal transition %s -> %s", e.ID, e.From, e.To)
}

// SendError is the failure result of a single Channel.Send attempt.
type SendError struct {
	Kind   ErrorKind
	Detail string
	Err    error // underlying transport error, may be nil
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send failed (%s): %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("send failed (%s): %s", e.Kind, e.Detail)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether the attempt should consume retry budget
// rather than quarantining the sample immediately.
func (e *SendError) Retryable() bool { return e.Kind.Retryable() }

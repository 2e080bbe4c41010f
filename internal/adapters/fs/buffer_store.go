package fs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/internal/ports"
)

const (
	metaExt    = ".json"
	payloadExt = ".payload"

	// corruptExt marks meta files that could not be parsed or lost their
	// payload. They are moved aside, never silently deleted.
	corruptExt = ".corrupt"
)

// entryMeta is the on-disk form of a buffer entry's metadata. The meta
// file is the commit point: the payload is written and synced first, so a
// visible meta always has a complete payload next to it.
type entryMeta struct {
	ID              string            `json:"id"`
	CapturedAt      time.Time         `json:"captured_at"`
	DurationSeconds int               `json:"duration_seconds"`
	AttemptCount    int               `json:"attempt_count"`
	LastAttemptAt   time.Time         `json:"last_attempt_at"`
	State           domain.EntryState `json:"state"`
}

// BufferStore implements ports.BufferStore on a directory of per-entry
// files: <id>.payload plus <id>.json, with a sequence.json tracking id
// assignment. All transitions are serialized by a mutex and committed via
// atomic file replacement, making MarkInFlight a compare-and-set against
// durable state.
type BufferStore struct {
	dir      string
	deviceID string
	logger   ports.Logger
	now      func() time.Time

	mu     sync.Mutex
	seq    sequence
	notify chan struct{}
}

var _ ports.BufferStore = (*BufferStore)(nil)

// NewBufferStore opens (creating if needed) the buffer directory and loads
// the id sequence.
func NewBufferStore(dir, deviceID string, logger ports.Logger) (*BufferStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &domain.StorageError{Op: "open", Path: dir, Err: err}
	}

	seq, err := loadSequence(filepath.Join(dir, sequenceFileName))
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Path: dir, Err: err}
	}

	return &BufferStore{
		dir:      dir,
		deviceID: deviceID,
		logger:   logger,
		now:      time.Now,
		seq:      seq,
		notify:   make(chan struct{}, 1),
	}, nil
}

// Notifications returns the enqueue wakeup channel. Signals are coalesced.
func (s *BufferStore) Notifications() <-chan struct{} {
	return s.notify
}

// Enqueue assigns the next id and durably persists a new Pending entry.
// The sequence advance commits first, then the payload, then the meta
// file; a crash between the steps leaves at most an orphaned payload,
// which recovery sweeps.
func (s *BufferStore) Enqueue(ctx context.Context, payload []byte, capturedAt time.Time) (domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.seq.next(s.now())
	if err := writeJSONAtomic(filepath.Join(s.dir, sequenceFileName), next); err != nil {
		return domain.Sample{}, &domain.StorageError{Op: "enqueue", Path: s.dir, Err: err}
	}
	s.seq = next
	id := next.id(s.deviceID)

	if err := writeFileAtomic(s.payloadPath(id), payload, 0o600); err != nil {
		return domain.Sample{}, &domain.StorageError{Op: "enqueue", Path: s.payloadPath(id), Err: err}
	}

	meta := entryMeta{
		ID:              id,
		CapturedAt:      capturedAt.UTC(),
		DurationSeconds: domain.DefaultDurationSeconds,
		AttemptCount:    0,
		State:           domain.StatePending,
	}
	if err := writeJSONAtomic(s.metaPath(id), meta); err != nil {
		return domain.Sample{}, &domain.StorageError{Op: "enqueue", Path: s.metaPath(id), Err: err}
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}

	return domain.Sample{
		ID:              id,
		Payload:         payload,
		CapturedAt:      meta.CapturedAt,
		DurationSeconds: meta.DurationSeconds,
	}, nil
}

// PeekOldestPending returns the oldest Pending entry with its payload
// loaded, or domain.ErrNotFound when the queue holds no pending entries.
func (s *BufferStore) PeekOldestPending(ctx context.Context) (domain.BufferEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDs()
	if err != nil {
		return domain.BufferEntry{}, &domain.StorageError{Op: "peek", Path: s.dir, Err: err}
	}

	for _, id := range ids {
		meta, err := s.readMeta(id)
		if err != nil {
			s.logger.Error("unreadable buffer meta, skipping",
				ports.String("id", id), ports.Err(err))
			continue
		}
		if meta.State != domain.StatePending {
			continue
		}

		payload, err := os.ReadFile(s.payloadPath(id))
		if err != nil {
			s.logger.Error("buffer payload unreadable, skipping",
				ports.String("id", id), ports.Err(err))
			continue
		}

		return domain.BufferEntry{
			Sample: domain.Sample{
				ID:              meta.ID,
				Payload:         payload,
				CapturedAt:      meta.CapturedAt,
				DurationSeconds: meta.DurationSeconds,
			},
			AttemptCount:  meta.AttemptCount,
			LastAttemptAt: meta.LastAttemptAt,
			State:         meta.State,
		}, nil
	}

	return domain.BufferEntry{}, domain.ErrNotFound
}

// MarkInFlight atomically transitions Pending -> InFlight.
func (s *BufferStore) MarkInFlight(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return &domain.StorageError{Op: "mark_in_flight", Path: s.metaPath(id), Err: err}
	}
	if meta.State != domain.StatePending {
		return &domain.ConflictError{ID: id, From: meta.State, To: domain.StateInFlight}
	}

	meta.State = domain.StateInFlight
	meta.LastAttemptAt = s.now().UTC()
	if err := writeJSONAtomic(s.metaPath(id), meta); err != nil {
		return &domain.StorageError{Op: "mark_in_flight", Path: s.metaPath(id), Err: err}
	}
	return nil
}

// Ack permanently removes the entry. Idempotent: an absent id is a no-op
// success so the removal step itself can crash and be replayed.
func (s *BufferStore) Ack(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFiles("ack", id)
}

// Requeue transitions InFlight -> Pending with the updated attempt count.
func (s *BufferStore) Requeue(ctx context.Context, id string, attemptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return &domain.StorageError{Op: "requeue", Path: s.metaPath(id), Err: err}
	}
	if meta.State != domain.StateInFlight {
		return &domain.ConflictError{ID: id, From: meta.State, To: domain.StatePending}
	}
	if attemptCount < meta.AttemptCount {
		// attemptCount is monotonically non-decreasing.
		attemptCount = meta.AttemptCount
	}

	meta.State = domain.StatePending
	meta.AttemptCount = attemptCount
	if err := writeJSONAtomic(s.metaPath(id), meta); err != nil {
		return &domain.StorageError{Op: "requeue", Path: s.metaPath(id), Err: err}
	}
	return nil
}

// Remove transitions InFlight -> absent for quarantine migration. An
// absent id is a no-op success (quarantine replay after a crash); any
// other state is a conflict.
func (s *BufferStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &domain.StorageError{Op: "remove", Path: s.metaPath(id), Err: err}
	}
	if meta.State != domain.StateInFlight {
		return &domain.ConflictError{ID: id, From: meta.State, To: domain.EntryState("absent")}
	}

	return s.removeFiles("remove", id)
}

// Discard unconditionally removes the entry; used by startup reconciliation.
func (s *BufferStore) Discard(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.metaPath(id)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &domain.StorageError{Op: "discard", Path: s.metaPath(id), Err: err}
	}
	if err := s.removeFiles("discard", id); err != nil {
		return false, err
	}
	return true, nil
}

// RecoverOnStartup sweeps uncommitted temp files and orphaned payloads,
// moves unreadable metas aside, resets InFlight entries to Pending with
// their attempt counts preserved, and rebuilds the id sequence when the
// sequence file is missing.
func (s *BufferStore) RecoverOnStartup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.listDir()
	if err != nil {
		return 0, &domain.StorageError{Op: "recover", Path: s.dir, Err: err}
	}

	metas := map[string]bool{}
	payloads := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, tmpSuffix):
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				s.logger.Warn("failed to sweep temp file",
					ports.String("file", name), ports.Err(err))
			}
		case name == sequenceFileName || strings.HasSuffix(name, corruptExt):
		case strings.HasSuffix(name, metaExt):
			metas[strings.TrimSuffix(name, metaExt)] = true
		case strings.HasSuffix(name, payloadExt):
			payloads[strings.TrimSuffix(name, payloadExt)] = true
		}
	}

	// Payload without meta: the enqueue (or ack removal) crashed between
	// the two files. The entry was never committed (or already acked).
	for id := range payloads {
		if metas[id] {
			continue
		}
		if err := os.Remove(s.payloadPath(id)); err != nil {
			s.logger.Warn("failed to sweep orphan payload",
				ports.String("id", id), ports.Err(err))
		}
	}

	reset := 0
	maxSeq := s.seq
	for id := range metas {
		meta, err := s.readMeta(id)
		if err != nil {
			s.quarantineCorrupt(id, err)
			continue
		}
		if !payloads[id] {
			s.quarantineCorrupt(id, os.ErrNotExist)
			continue
		}

		if meta.State == domain.StateInFlight {
			// A crash may have happened before or after the remote side
			// processed the send; at-least-once accepts the duplicate.
			meta.State = domain.StatePending
			if err := writeJSONAtomic(s.metaPath(id), meta); err != nil {
				return reset, &domain.StorageError{Op: "recover", Path: s.metaPath(id), Err: err}
			}
			reset++
		}

		if date, n, ok := parseIDCounter(id, s.deviceID); ok {
			if date > maxSeq.Date || (date == maxSeq.Date && n > maxSeq.Counter) {
				maxSeq = sequence{Date: date, Counter: n}
			}
		}
	}

	if maxSeq != s.seq {
		if err := writeJSONAtomic(filepath.Join(s.dir, sequenceFileName), maxSeq); err != nil {
			return reset, &domain.StorageError{Op: "recover", Path: s.dir, Err: err}
		}
		s.seq = maxSeq
	}

	return reset, nil
}

// quarantineCorrupt moves a broken meta file aside so it stops blocking
// the queue without being silently dropped.
func (s *BufferStore) quarantineCorrupt(id string, cause error) {
	s.logger.Error("corrupt buffer entry, moving aside",
		ports.String("id", id), ports.Err(cause))
	if err := os.Rename(s.metaPath(id), s.metaPath(id)+corruptExt); err != nil {
		s.logger.Error("failed to move corrupt meta",
			ports.String("id", id), ports.Err(err))
	}
	if err := os.Rename(s.payloadPath(id), s.payloadPath(id)+corruptExt); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to move corrupt payload",
			ports.String("id", id), ports.Err(err))
	}
}

// removeFiles deletes the meta first (the commit point), then the payload,
// so a crash in between leaves only an orphan payload for recovery.
func (s *BufferStore) removeFiles(op, id string) error {
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return &domain.StorageError{Op: op, Path: s.metaPath(id), Err: err}
	}
	if err := os.Remove(s.payloadPath(id)); err != nil && !os.IsNotExist(err) {
		return &domain.StorageError{Op: op, Path: s.payloadPath(id), Err: err}
	}
	return nil
}

// listIDs returns committed entry ids in capture (lexicographic) order.
func (s *BufferStore) listIDs() ([]string, error) {
	names, err := s.listDir()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if name == sequenceFileName || !strings.HasSuffix(name, metaExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, metaExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *BufferStore) listDir() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *BufferStore) readMeta(id string) (entryMeta, error) {
	var meta entryMeta
	if err := readJSON(s.metaPath(id), &meta); err != nil {
		return entryMeta{}, err
	}
	return meta, nil
}

func (s *BufferStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+metaExt)
}

func (s *BufferStore) payloadPath(id string) string {
	return filepath.Join(s.dir, id+payloadExt)
}

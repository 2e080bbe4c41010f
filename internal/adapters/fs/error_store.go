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

// errorMeta is the on-disk form of a quarantined entry.
type errorMeta struct {
	ID              string           `json:"id"`
	CapturedAt      time.Time        `json:"captured_at"`
	DurationSeconds int              `json:"duration_seconds"`
	AttemptCount    int              `json:"attempt_count"`
	Kind            domain.ErrorKind `json:"error_kind"`
	Detail          string           `json:"error_detail"`
	QuarantinedAt   time.Time        `json:"quarantined_at"`
}

// ErrorStore implements ports.ErrorStore on a directory of per-entry
// files, using the same payload-then-meta commit discipline as the buffer
// store. Entries are write-once and retained until an operator intervenes.
type ErrorStore struct {
	dir    string
	logger ports.Logger
	now    func() time.Time

	mu sync.Mutex
}

var _ ports.ErrorStore = (*ErrorStore)(nil)

// NewErrorStore opens (creating if needed) the quarantine directory.
func NewErrorStore(dir string, logger ports.Logger) (*ErrorStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &domain.StorageError{Op: "open", Path: dir, Err: err}
	}
	return &ErrorStore{dir: dir, logger: logger, now: time.Now}, nil
}

// Quarantine durably persists the sample and its failure record.
// Idempotent per id: replaying the quarantine path after a crash is a
// no-op once the meta file exists.
func (s *ErrorStore) Quarantine(ctx context.Context, sample domain.Sample, kind domain.ErrorKind, detail string, attemptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaPath := s.metaPath(sample.ID)
	if _, err := os.Stat(metaPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &domain.StorageError{Op: "quarantine", Path: metaPath, Err: err}
	}

	if err := writeFileAtomic(s.payloadPath(sample.ID), sample.Payload, 0o600); err != nil {
		return &domain.StorageError{Op: "quarantine", Path: s.payloadPath(sample.ID), Err: err}
	}

	meta := errorMeta{
		ID:              sample.ID,
		CapturedAt:      sample.CapturedAt,
		DurationSeconds: sample.DurationSeconds,
		AttemptCount:    attemptCount,
		Kind:            kind,
		Detail:          detail,
		QuarantinedAt:   s.now().UTC(),
	}
	if err := writeJSONAtomic(metaPath, meta); err != nil {
		return &domain.StorageError{Op: "quarantine", Path: metaPath, Err: err}
	}
	return nil
}

// List returns all quarantined entries in capture order, without payloads.
func (s *ErrorStore) List(ctx context.Context) ([]domain.ErrorEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDs()
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Path: s.dir, Err: err}
	}

	entries := make([]domain.ErrorEntry, 0, len(ids))
	for _, id := range ids {
		meta, err := s.readMeta(id)
		if err != nil {
			s.logger.Error("unreadable quarantine meta, skipping",
				ports.String("id", id), ports.Err(err))
			continue
		}
		entries = append(entries, meta.toEntry(nil))
	}
	return entries, nil
}

// Get returns one quarantined entry with its payload loaded.
func (s *ErrorStore) Get(ctx context.Context, id string) (domain.ErrorEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrorEntry{}, domain.ErrNotFound
		}
		return domain.ErrorEntry{}, &domain.StorageError{Op: "get", Path: s.metaPath(id), Err: err}
	}

	payload, err := os.ReadFile(s.payloadPath(id))
	if err != nil && !os.IsNotExist(err) {
		return domain.ErrorEntry{}, &domain.StorageError{Op: "get", Path: s.payloadPath(id), Err: err}
	}
	return meta.toEntry(payload), nil
}

// PayloadPath returns the on-disk payload location for an entry; used by
// the operator export command.
func (s *ErrorStore) PayloadPath(id string) string {
	return s.payloadPath(id)
}

func (m errorMeta) toEntry(payload []byte) domain.ErrorEntry {
	return domain.ErrorEntry{
		Sample: domain.Sample{
			ID:              m.ID,
			Payload:         payload,
			CapturedAt:      m.CapturedAt,
			DurationSeconds: m.DurationSeconds,
		},
		AttemptCount:  m.AttemptCount,
		LastError:     m.Kind,
		Detail:        m.Detail,
		QuarantinedAt: m.QuarantinedAt,
	}
}

func (s *ErrorStore) listIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), metaExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ErrorStore) readMeta(id string) (errorMeta, error) {
	var meta errorMeta
	if err := readJSON(s.metaPath(id), &meta); err != nil {
		return errorMeta{}, err
	}
	return meta, nil
}

func (s *ErrorStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+metaExt)
}

func (s *ErrorStore) payloadPath(id string) string {
	return filepath.Join(s.dir, id+payloadExt)
}

// Package inbox ingests completed samples handed over by the external
// capture process. The producer drops a payload file and then commits it
// with a small JSON descriptor; the watcher enqueues the pair into the
// buffer store and removes it from the inbox.
package inbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/orion-sense/sampleship/internal/ports"
)

const (
	descriptorExt = ".json"
	payloadExt    = ".bin"
)

// descriptor is the producer-written capture metadata. Its presence is the
// handover commit point: the payload file must already be complete when
// the descriptor appears.
type descriptor struct {
	CapturedAt      time.Time `json:"captured_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// Watcher moves finished captures from the inbox directory into the
// buffer store. It reacts to fsnotify events and additionally sweeps the
// directory on a timer, so samples dropped while the process was down (or
// during a missed event) are still picked up.
type Watcher struct {
	dir           string
	buffer        ports.BufferStore
	logger        ports.Logger
	sweepInterval time.Duration
}

// NewWatcher creates a watcher over dir feeding the given buffer store.
func NewWatcher(dir string, buffer ports.BufferStore, sweepInterval time.Duration, logger ports.Logger) *Watcher {
	if sweepInterval <= 0 {
		sweepInterval = 2 * time.Second
	}
	return &Watcher{
		dir:           dir,
		buffer:        buffer,
		logger:        logger,
		sweepInterval: sweepInterval,
	}
}

// Run watches the inbox until ctx is canceled. The initial sweep ingests
// anything left over from a previous run.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, descriptorExt) {
				continue
			}
			w.ingest(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", ports.Err(err))

		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep ingests every committed pair currently in the inbox, oldest first.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("inbox sweep failed", ports.Err(err))
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), descriptorExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, filepath.Join(w.dir, name))
	}
}

// ingest enqueues one committed pair and then removes it from the inbox.
// A crash between the enqueue and the removal re-ingests the pair under a
// fresh sample id on the next sweep; the handover boundary is at-least-once
// and the window is accepted rather than tracked.
func (w *Watcher) ingest(ctx context.Context, descriptorPath string) {
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("inbox descriptor unreadable", ports.String("file", descriptorPath), ports.Err(err))
		}
		return
	}

	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		w.logger.Warn("inbox descriptor malformed, skipping",
			ports.String("file", descriptorPath), ports.Err(err))
		return
	}

	payloadPath := strings.TrimSuffix(descriptorPath, descriptorExt) + payloadExt
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		w.logger.Warn("inbox payload missing, skipping",
			ports.String("file", payloadPath), ports.Err(err))
		return
	}

	sample, err := w.buffer.Enqueue(ctx, payload, desc.CapturedAt)
	if err != nil {
		// Leave the pair in place; the next sweep retries.
		w.logger.Error("inbox enqueue failed", ports.String("file", descriptorPath), ports.Err(err))
		return
	}

	if err := os.Remove(descriptorPath); err != nil {
		w.logger.Error("failed to remove ingested descriptor",
			ports.String("file", descriptorPath), ports.Err(err))
	}
	if err := os.Remove(payloadPath); err != nil {
		w.logger.Error("failed to remove ingested payload",
			ports.String("file", payloadPath), ports.Err(err))
	}

	w.logger.Info("sample buffered",
		ports.String("id", sample.ID),
		ports.Int("bytes", len(payload)),
	)
}

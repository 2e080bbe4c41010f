package sampleship

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	channelAdapter "github.com/orion-sense/sampleship/internal/adapters/channel"
	"github.com/orion-sense/sampleship/internal/adapters/fs"
	"github.com/orion-sense/sampleship/internal/adapters/inbox"
	"github.com/orion-sense/sampleship/internal/app"
	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/internal/ports"
)

// lockFileName guards the data directory against a second transmitter
// instance; two processes draining one buffer would break single-flight.
const lockFileName = "sampleship.lock"

// Transmitter is the embeddable store-and-forward telemetry transmitter.
// Use New() to create an instance, then Start() to begin draining.
type Transmitter struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	buffer    ports.BufferStore
	quarant   ports.ErrorStore
	channel   ports.Channel
	core      *app.Transmitter
	inbox     *inbox.Watcher
	lock      *flock.Flock
	logger    ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Transmitter with the given configuration.
// The instance starts in the Stopped state; call Start() to begin.
func New(cfg Config, opts ...Option) (*Transmitter, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	buffer, err := fs.NewBufferStore(cfg.BufferDir, cfg.DeviceID, logger)
	if err != nil {
		return nil, err
	}
	quarant, err := fs.NewErrorStore(cfg.ErrorDir, logger)
	if err != nil {
		return nil, err
	}

	var ch ports.Channel
	if o.channel != nil {
		ch = o.channel
	} else {
		chCfg := channelAdapter.Config{
			Endpoint: cfg.ReceiverEndpoint,
			DeviceID: cfg.DeviceID,
			Credentials: channelAdapter.Credentials{
				CertFile: cfg.CertFile,
				KeyFile:  cfg.KeyFile,
				CAFile:   cfg.CAFile,
			},
		}
		if o.httpClient != nil {
			ch = channelAdapter.NewWithHTTPClient(chCfg, o.httpClient, logger)
		} else {
			ch = channelAdapter.New(chCfg, logger)
		}
	}

	core := app.NewTransmitter(app.TransmitterConfig{
		MaxAttempts:  cfg.MaxAttempts,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		SendTimeout:  cfg.SendTimeout,
		PollInterval: cfg.PollInterval,
		Once:         cfg.Once,
	}, buffer, quarant, ch, logger)

	var watcher *inbox.Watcher
	if cfg.InboxDir != "" {
		watcher = inbox.NewWatcher(cfg.InboxDir, buffer, cfg.PollInterval, logger)
	}

	return &Transmitter{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger),
		buffer:    buffer,
		quarant:   quarant,
		channel:   ch,
		core:      core,
		inbox:     watcher,
		lock:      flock.New(filepath.Join(cfg.DataDir, lockFileName)),
		logger:    logger,
	}, nil
}

// Start acquires the data-directory lock, recovers durable state, and
// begins draining in the background. Returns immediately; the provided
// context bounds the lifetime of the drain loop.
func (t *Transmitter) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	locked, err := t.lock.TryLock()
	if err == nil && !locked {
		err = domain.ErrLocked
	}
	if err != nil {
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "lock acquisition failed")
		return err
	}

	if err := app.Recover(ctx, t.buffer, t.quarant, t.logger); err != nil {
		_ = t.lock.Unlock()
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "recovery failed")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.lifecycle.SetCancel(cancel)

	if t.inbox != nil {
		t.lifecycle.AddWorker()
		go func() {
			defer t.lifecycle.WorkerDone()
			if err := t.inbox.Run(runCtx); err != nil && err != context.Canceled {
				t.logger.Error("inbox watcher stopped", ports.Err(err))
			}
		}()
	}

	t.lifecycle.AddWorker()
	go func() {
		defer t.lifecycle.WorkerDone()

		if err := t.lifecycle.TransitionTo(app.StateRunning, "drain loop starting"); err != nil {
			t.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := t.core.Run(runCtx)
		if err != nil && err != context.Canceled {
			t.logger.Error("drain loop error", ports.Err(err))
			_ = t.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			return
		}
		if t.config.Once {
			// Drained everything that was buffered; stop cleanly.
			cancel()
			_ = t.channel.Close()
			_ = t.lock.Unlock()
			_ = t.lifecycle.TransitionTo(app.StateStopping, "once mode drained")
			_ = t.lifecycle.TransitionTo(app.StateStopped, "once mode drained")
		}
	}()

	return nil
}

// Stop gracefully shuts the transmitter down. An in-flight send either
// completes or is abandoned at its timeout; an abandoned entry stays
// InFlight on disk and is reset to Pending on the next startup.
func (t *Transmitter) Stop() error {
	t.mu.Lock()

	if !t.lifecycle.CanStop() {
		t.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	err := t.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if closeErr := t.channel.Close(); closeErr != nil {
		t.logger.Warn("channel close failed", ports.Err(closeErr))
	}
	if unlockErr := t.lock.Unlock(); unlockErr != nil {
		t.logger.Warn("lock release failed", ports.Err(unlockErr))
	}

	if err != nil {
		return err
	}
	return t.lifecycle.TransitionTo(app.StateStopped, "shutdown complete")
}

// Wait blocks until the background workers have exited, either after
// Stop() or after a once-mode drain completes.
func (t *Transmitter) Wait() {
	t.lifecycle.Wait()
}

// State returns the current lifecycle state.
func (t *Transmitter) State() app.State {
	return t.lifecycle.State()
}

// Enqueue hands a completed capture to the durable buffer. This is the
// programmatic producer interface; file-based producers use the inbox
// directory instead. Safe to call while the drain loop runs.
func (t *Transmitter) Enqueue(ctx context.Context, payload []byte, capturedAt time.Time) (domain.Sample, error) {
	return t.buffer.Enqueue(ctx, payload, capturedAt)
}

// Quarantined returns the current quarantine contents for inspection.
func (t *Transmitter) Quarantined(ctx context.Context) ([]domain.ErrorEntry, error) {
	return t.quarant.List(ctx)
}

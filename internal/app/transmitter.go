package app

import (
	"context"
	"errors"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/internal/ports"
)

// TransmitterConfig contains the retry and scheduling policy for the drain loop.
type TransmitterConfig struct {
	// MaxAttempts is the total send attempt budget per sample (>= 1).
	MaxAttempts int

	// BaseBackoff and MaxBackoff bound the exponential retry delay.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// SendTimeout bounds each individual Channel.Send attempt.
	SendTimeout time.Duration

	// PollInterval is the idle wakeup period when the queue is empty.
	PollInterval time.Duration

	// Once makes Run return once the queue is drained instead of waiting
	// for new samples.
	Once bool
}

// Transmitter drains the buffer store continuously: it claims the oldest
// pending sample, drives one send attempt against the channel, and applies
// the retry policy. Terminal failures move the sample to the error store.
//
// One Transmitter runs one logical worker; correctness does not depend on
// concurrency because every claim goes through the store's atomic
// MarkInFlight transition.
type Transmitter struct {
	cfg     TransmitterConfig
	buffer  ports.BufferStore
	quarant ports.ErrorStore
	channel ports.Channel
	logger  ports.Logger
	backoff Backoff
}

// NewTransmitter creates a transmitter over the given stores and channel.
func NewTransmitter(
	cfg TransmitterConfig,
	buffer ports.BufferStore,
	errorStore ports.ErrorStore,
	channel ports.Channel,
	logger ports.Logger,
) *Transmitter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Transmitter{
		cfg:     cfg,
		buffer:  buffer,
		quarant: errorStore,
		channel: channel,
		logger:  logger,
		backoff: NewBackoff(cfg.BaseBackoff, cfg.MaxBackoff),
	}
}

// Run executes the drain loop until ctx is canceled (or, with Once, until
// the queue is empty). A single sample's failure never halts the loop.
func (t *Transmitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := t.buffer.PeekOldestPending(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				if t.cfg.Once {
					return nil
				}
				if err := t.waitForWork(ctx); err != nil {
					return err
				}
				continue
			}

			t.logger.Error("peek failed", ports.Err(err))
			if err := sleepCtx(ctx, t.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		t.deliver(ctx, entry)
	}
}

// waitForWork suspends until a new entry is enqueued, the poll interval
// elapses, or ctx is canceled.
func (t *Transmitter) waitForWork(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.buffer.Notifications():
		return nil
	case <-time.After(t.cfg.PollInterval):
		return nil
	}
}

// deliver drives one send attempt for the entry and applies the retry
// policy to the outcome.
func (t *Transmitter) deliver(ctx context.Context, entry domain.BufferEntry) {
	id := entry.Sample.ID

	if err := t.buffer.MarkInFlight(ctx, id); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			// Another path already claimed it; not ours to send.
			t.logger.Warn("claim conflict, skipping", ports.String("id", id), ports.Err(err))
			return
		}
		// Paced like a peek failure: the entry is still Pending and will
		// be re-peeked, so an unpaced return would spin on a bad disk.
		t.logger.Error("mark in-flight failed", ports.String("id", id), ports.Err(err))
		_ = sleepCtx(ctx, t.cfg.PollInterval)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.cfg.SendTimeout)
	start := time.Now()
	err := t.channel.Send(sendCtx, entry.Sample)
	cancel()

	if err == nil {
		if ackErr := t.buffer.Ack(ctx, id); ackErr != nil {
			// The remote side has the sample; the entry stays InFlight and
			// recovery will resend it. At-least-once accepts the duplicate.
			t.logger.Error("ack removal failed", ports.String("id", id), ports.Err(ackErr))
			return
		}
		t.logger.Info("sample acked",
			ports.String("id", id),
			ports.Int("attempts", entry.AttemptCount+1),
			ports.Duration("duration", time.Since(start)),
		)
		return
	}

	attempts := entry.AttemptCount + 1
	kind, detail := classify(err)

	if !kind.Retryable() {
		t.logger.Warn("non-retryable failure, quarantining",
			ports.String("id", id),
			ports.String("kind", string(kind)),
			ports.Err(err),
		)
		t.quarantine(ctx, entry.Sample, kind, detail, attempts)
		return
	}

	if attempts >= t.cfg.MaxAttempts {
		t.logger.Warn("retry budget exhausted, quarantining",
			ports.String("id", id),
			ports.Int("attempts", attempts),
			ports.Err(err),
		)
		t.quarantine(ctx, entry.Sample, kind, detail, attempts)
		return
	}

	if reqErr := t.buffer.Requeue(ctx, id, attempts); reqErr != nil {
		t.logger.Error("requeue failed", ports.String("id", id), ports.Err(reqErr))
		return
	}

	delay := t.backoff.Delay(entry.AttemptCount)
	t.logger.Warn("send failed, will retry",
		ports.String("id", id),
		ports.Int("attempts", attempts),
		ports.Duration("retry_in", delay),
		ports.Err(err),
	)
	_ = sleepCtx(ctx, delay)
}

// quarantine moves a sample to the error store: the error entry is written
// first, then the buffer entry is removed. A crash between the two leaves
// the sample in both stores, which startup reconciliation resolves in the
// error store's favor.
func (t *Transmitter) quarantine(ctx context.Context, s domain.Sample, kind domain.ErrorKind, detail string, attempts int) {
	if err := t.quarant.Quarantine(ctx, s, kind, detail, attempts); err != nil {
		// Keep the entry durable in the buffer so the sample is not lost;
		// it will be retried and re-quarantined on a later pass.
		t.logger.Error("quarantine write failed", ports.String("id", s.ID), ports.Err(err))
		if reqErr := t.buffer.Requeue(ctx, s.ID, attempts); reqErr != nil {
			t.logger.Error("requeue after failed quarantine failed",
				ports.String("id", s.ID), ports.Err(reqErr))
		}
		return
	}

	if err := t.buffer.Remove(ctx, s.ID); err != nil {
		t.logger.Error("buffer removal after quarantine failed",
			ports.String("id", s.ID), ports.Err(err))
	}
}

// classify maps a send failure to its error kind and detail.
// Unknown errors and context timeouts count as transient.
func classify(err error) (domain.ErrorKind, string) {
	var sendErr *domain.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind, sendErr.Detail
	}
	return domain.KindTransient, err.Error()
}

// sleepCtx sleeps for d unless ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ParaLedger/internal/engine"
	"ParaLedger/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres.
// The persist channel uses BLOCKING sends from the engine, so if this worker
// falls behind, the engine stalls — guaranteeing no event is lost.
//
// Each flush is one transaction: the event rows plus the policy and treasury
// projections derived from them, so readers of the projection tables never
// see a row ahead of the durable event log.
type Worker struct {
	writer       *EventLogWriter
	inputChan    <-chan engine.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan engine.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// batch accumulates outputs between flushes. Projections keep only the
// newest row per policy slot and the newest treasury status.
type batch struct {
	events   []EventRow
	policies map[string]PolicyRow
	status   *StatusRow
}

func newBatch(capacity int) *batch {
	return &batch{
		events:   make([]EventRow, 0, capacity),
		policies: make(map[string]PolicyRow),
	}
}

func (b *batch) add(out engine.Output) {
	env := out.Envelope

	var account *string
	if env.Account != uuid.Nil {
		s := env.Account.String()
		account = &s
	}

	b.events = append(b.events, EventRow{
		Sequence:  env.Sequence,
		EventType: env.EventType.String(),
		Account:   account,
		Payload:   MarshalPayload(env.Payload),
		StateHash: env.StateHash[:],
		PrevHash:  env.PrevHash[:],
		Timestamp: env.Timestamp,
	})

	if out.Policy != nil {
		row := PolicyRow{
			Account:             out.Policy.Account.String(),
			PremiumAmount:       int64(out.Policy.PremiumAmount),
			StartTime:           out.Policy.StartTime,
			DurationYears:       int32(out.Policy.DurationYears),
			HasClaim:            out.Policy.HasClaim,
			IsActive:            out.Policy.IsActive,
			LastRewardClaim:     out.Policy.LastRewardClaim,
			TotalRewardsClaimed: int64(out.Policy.TotalRewardsClaimed),
			Version:             out.Policy.Version,
			UpdatedSeq:          env.Sequence,
		}
		if prev, ok := b.policies[row.Account]; !ok || prev.UpdatedSeq < row.UpdatedSeq {
			b.policies[row.Account] = row
		}
	}

	status := StatusRow{
		PoolBalance:            int64(out.Status.PoolBalance),
		MinBalance:             int64(out.Status.MinBalance),
		TotalPremiumsCollected: int64(out.Status.TotalPremiumsCollected),
		TotalClaimsPaid:        int64(out.Status.TotalClaimsPaid),
		TotalRewardsPaid:       int64(out.Status.TotalRewardsPaid),
		Paused:                 out.Status.Paused,
		UpdatedSeq:             env.Sequence,
	}
	if b.status == nil || b.status.UpdatedSeq < status.UpdatedSeq {
		b.status = &status
	}
}

func (b *batch) reset() {
	b.events = b.events[:0]
	b.policies = make(map[string]PolicyRow)
	b.status = nil
}

// Run starts the worker loop. It batches incoming outputs and flushes either
// when the batch is full or the flush timeout expires. Blocks until ctx is
// cancelled or the input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	b := newBatch(w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(b.events) > 0 {
				if err := w.flush(context.Background(), b); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				if len(b.events) > 0 {
					if err := w.flush(context.Background(), b); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			b.add(out)

			if len(b.events) >= w.batchSize {
				if err := w.flushWithRetry(ctx, b); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				b.reset()
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(b.events) > 0 {
				if err := w.flushWithRetry(ctx, b); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				b.reset()
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker never
// drops events — it retries until the write succeeds or the context is
// cancelled, at which point it makes one final attempt with a background
// context so the batch is not lost on graceful shutdown.
func (w *Worker) flushWithRetry(ctx context.Context, b *batch) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(b.events)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), b); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, b)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, b *batch) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, b.events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	for _, row := range b.policies {
		if err := w.writer.UpsertPolicy(ctx, tx, row); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("upsert_policy").Inc()
			}
			return err
		}
	}

	if b.status != nil {
		if err := w.writer.UpsertStatus(ctx, tx, *b.status); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("upsert_status").Inc()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(b.events)))
		w.metrics.PersistEventsWritten.Add(float64(len(b.events)))
		if len(b.events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(b.events[len(b.events)-1].Sequence))
		}
	}

	return nil
}

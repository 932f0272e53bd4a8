package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"ParaLedger/internal/engine"
	"ParaLedger/internal/observability"
)

// OutboundPublisher publishes applied events to NATS for downstream
// consumers. Subjects follow the pattern: insurance.ledger.events.{event_type}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// OutboundEvent is the wire form of an applied event.
type OutboundEvent struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	Account   uuid.UUID   `json:"account"`
	Payload   interface{} `json:"payload"`
	StateHash string      `json:"state_hash"`
	PrevHash  string      `json:"prev_hash"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output, metrics *observability.Metrics, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run starts the outbound publisher loop. Publish failures are non-fatal:
// downstream consumers can read the event log directly.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				op.log.Warn().
					Int64("sequence", out.Envelope.Sequence).
					Err(err).
					Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope
	evt := OutboundEvent{
		Sequence:  env.Sequence,
		EventType: env.EventType.String(),
		Account:   env.Account,
		Payload:   env.Payload,
		StateHash: hex.EncodeToString(env.StateHash[:]),
		PrevHash:  hex.EncodeToString(env.PrevHash[:]),
		Timestamp: env.Timestamp,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("insurance.ledger.events.%s", env.EventType.String())
	if _, err := op.js.Publish(ctx, subject, data); err != nil {
		return err
	}
	op.metrics.EventsPublished.WithLabelValues(env.EventType.String()).Inc()
	return nil
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PARA_LEDGER_EVENTS",
		Subjects:  []string{"insurance.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

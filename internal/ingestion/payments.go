package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"ParaLedger/internal/observability"
)

// PayoutPublisher is the value-transfer boundary: each Pay publishes a payout
// instruction to JetStream synchronously. A failed publish is reported to the
// caller, which rolls the enclosing operation back, so an instruction is only
// durable when the state change that caused it committed.
type PayoutPublisher struct {
	js      jetstream.JetStream
	metrics *observability.Metrics
	log     zerolog.Logger
}

// PayoutInstruction is the wire form of an outbound value transfer.
type PayoutInstruction struct {
	PayoutID  uuid.UUID `json:"payout_id"`
	Account   uuid.UUID `json:"account"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPayoutPublisher(js jetstream.JetStream, metrics *observability.Metrics, log zerolog.Logger) *PayoutPublisher {
	return &PayoutPublisher{js: js, metrics: metrics, log: log}
}

// Pay publishes one payout instruction to insurance.ledger.payouts.{account}.
func (p *PayoutPublisher) Pay(ctx context.Context, account uuid.UUID, amount uint64) error {
	instr := PayoutInstruction{
		PayoutID:  uuid.New(),
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(instr)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}

	subject := fmt.Sprintf("insurance.ledger.payouts.%s", account.String())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.metrics.PayoutFailures.Inc()
		p.log.Error().
			Str("account", account.String()).
			Uint64("amount", amount).
			Err(err).
			Msg("payout publish failed")
		return fmt.Errorf("publish payout: %w", err)
	}

	p.metrics.PayoutsPublished.Inc()
	p.log.Debug().
		Str("payout_id", instr.PayoutID.String()).
		Str("account", account.String()).
		Uint64("amount", amount).
		Msg("payout published")
	return nil
}

// EnsurePayoutStream creates the payout instructions stream.
func EnsurePayoutStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PARA_LEDGER_PAYOUTS",
		Subjects:  []string{"insurance.ledger.payouts.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create payout stream: %w", err)
	}
	return nil
}

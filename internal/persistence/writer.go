package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// EventLogWriter writes events and projection rows to Postgres using batch
// inserts. Multi-row INSERT is used as a portable alternative to COPY;
// switch to pgx CopyFrom for production-grade throughput.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence  int64
	EventType string
	Account   *string // nil for system-wide events
	Payload   []byte  // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

// PolicyRow represents a row in projections.policies
type PolicyRow struct {
	Account             string
	PremiumAmount       int64
	StartTime           time.Time
	DurationYears       int32
	HasClaim            bool
	IsActive            bool
	LastRewardClaim     time.Time
	TotalRewardsClaimed int64
	Version             int64
	UpdatedSeq          int64
}

// StatusRow represents the single row in projections.treasury_status
type StatusRow struct {
	PoolBalance            int64
	MinBalance             int64
	TotalPremiumsCollected int64
	TotalClaimsPaid        int64
	TotalRewardsPaid       int64
	Paused                 bool
	UpdatedSeq             int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to event_log.events using
// multi-row INSERT inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, account, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventType, e.Account,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertPolicy writes the current state of one policy slot to
// projections.policies. Rows from stale sequences never overwrite newer ones.
func (w *EventLogWriter) UpsertPolicy(ctx context.Context, tx *sql.Tx, p PolicyRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.policies
			(account, premium_amount, start_time, duration_years, has_claim,
			 is_active, last_reward_claim, total_rewards_claimed, version, updated_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account) DO UPDATE SET
			premium_amount        = EXCLUDED.premium_amount,
			start_time            = EXCLUDED.start_time,
			duration_years        = EXCLUDED.duration_years,
			has_claim             = EXCLUDED.has_claim,
			is_active             = EXCLUDED.is_active,
			last_reward_claim     = EXCLUDED.last_reward_claim,
			total_rewards_claimed = EXCLUDED.total_rewards_claimed,
			version               = EXCLUDED.version,
			updated_seq           = EXCLUDED.updated_seq
		WHERE projections.policies.updated_seq < EXCLUDED.updated_seq
	`, p.Account, p.PremiumAmount, p.StartTime, p.DurationYears, p.HasClaim,
		p.IsActive, p.LastRewardClaim, p.TotalRewardsClaimed, p.Version, p.UpdatedSeq)
	return err
}

// UpsertStatus writes the treasury status singleton to
// projections.treasury_status.
func (w *EventLogWriter) UpsertStatus(ctx context.Context, tx *sql.Tx, s StatusRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.treasury_status
			(id, pool_balance, min_balance, premiums_collected, claims_paid,
			 rewards_paid, paused, updated_seq)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			pool_balance       = EXCLUDED.pool_balance,
			min_balance        = EXCLUDED.min_balance,
			premiums_collected = EXCLUDED.premiums_collected,
			claims_paid        = EXCLUDED.claims_paid,
			rewards_paid       = EXCLUDED.rewards_paid,
			paused             = EXCLUDED.paused,
			updated_seq        = EXCLUDED.updated_seq
		WHERE projections.treasury_status.updated_seq < EXCLUDED.updated_seq
	`, s.PoolBalance, s.MinBalance, s.TotalPremiumsCollected, s.TotalClaimsPaid,
		s.TotalRewardsPaid, s.Paused, s.UpdatedSeq)
	return err
}

// MarshalPayload is a convenience wrapper for JSON-encoding event payloads.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}

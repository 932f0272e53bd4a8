package query

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Service provides read-only access to the projection tables and the event
// log. All responses include as_of_sequence for freshness semantics: the
// highest sequence the projections had applied when the query ran.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetPolicy returns the projected policy slot for one account.
func (s *Service) GetPolicy(ctx context.Context, account uuid.UUID) (*PolicyResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p PolicyResponse
	p.Account = account
	p.AsOfSequence = asOfSeq

	err = s.db.QueryRowContext(ctx, `
		SELECT premium_amount, start_time, duration_years, has_claim,
		       is_active, last_reward_claim, total_rewards_claimed, version
		FROM projections.policies
		WHERE account = $1
	`, account).Scan(
		&p.PremiumAmount, &p.StartTime, &p.DurationYears, &p.HasClaim,
		&p.IsActive, &p.LastRewardClaim, &p.TotalRewardsClaimed, &p.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetStatus returns the projected treasury status.
func (s *Service) GetStatus(ctx context.Context) (*StatusResponse, error) {
	var st StatusResponse
	err := s.db.QueryRowContext(ctx, `
		SELECT pool_balance, min_balance, premiums_collected, claims_paid,
		       rewards_paid, paused, updated_seq
		FROM projections.treasury_status
		WHERE id = 1
	`).Scan(
		&st.PoolBalance, &st.MinBalance, &st.PremiumsCollected,
		&st.ClaimsPaid, &st.RewardsPaid, &st.Paused, &st.AsOfSequence,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetEvents returns a page of the event log starting at fromSequence.
func (s *Service) GetEvents(ctx context.Context, fromSequence int64, limit int) ([]EventResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, account, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetAccountEvents returns a page of one account's events, newest first.
func (s *Service) GetAccountEvents(ctx context.Context, account uuid.UUID, limit int) ([]EventResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, account, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE account = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// VerifyChain walks the event log and checks that each event's prev_hash
// matches the preceding event's state_hash.
func (s *Service) VerifyChain(ctx context.Context) (*IntegrityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, state_hash, prev_hash
		FROM event_log.events
		ORDER BY sequence ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &IntegrityReport{ChainIntact: true}
	var prevState []byte
	first := true

	for rows.Next() {
		var seq int64
		var stateHash, prevHash []byte
		if err := rows.Scan(&seq, &stateHash, &prevHash); err != nil {
			return nil, err
		}
		report.EventsChecked++

		if !first && !bytes.Equal(prevHash, prevState) {
			report.ChainIntact = false
			report.FirstBreakSeq = seq
			report.Detail = fmt.Sprintf("prev_hash mismatch at sequence %d", seq)
			return report, rows.Err()
		}

		prevState = stateHash
		first = false
	}

	return report, rows.Err()
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(updated_seq), 0) FROM projections.treasury_status
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func scanEvents(rows *sql.Rows) ([]EventResponse, error) {
	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		var account sql.NullString
		var payload []byte
		var stateHash, prevHash []byte
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &account, &payload,
			&stateHash, &prevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		if account.Valid {
			id, err := uuid.Parse(account.String)
			if err == nil {
				e.Account = &id
			}
		}
		e.Payload = json.RawMessage(payload)
		e.StateHash = hex.EncodeToString(stateHash)
		e.PrevHash = hex.EncodeToString(prevHash)
		events = append(events, e)
	}
	return events, rows.Err()
}

package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PolicyResponse represents a policy slot for API queries.
type PolicyResponse struct {
	Account             uuid.UUID `json:"account"`
	PremiumAmount       int64     `json:"premium_amount"`
	StartTime           time.Time `json:"start_time"`
	DurationYears       int32     `json:"duration_years"`
	HasClaim            bool      `json:"has_claim"`
	IsActive            bool      `json:"is_active"`
	LastRewardClaim     time.Time `json:"last_reward_claim"`
	TotalRewardsClaimed int64     `json:"total_rewards_claimed"`
	Version             int64     `json:"version"`
	AsOfSequence        int64     `json:"as_of_sequence"`
}

// StatusResponse represents the treasury status for API queries.
type StatusResponse struct {
	PoolBalance       int64 `json:"pool_balance"`
	MinBalance        int64 `json:"min_balance"`
	PremiumsCollected int64 `json:"premiums_collected"`
	ClaimsPaid        int64 `json:"claims_paid"`
	RewardsPaid       int64 `json:"rewards_paid"`
	Paused            bool  `json:"paused"`
	AsOfSequence      int64 `json:"as_of_sequence"`
}

// EventResponse represents an event log entry for API queries.
type EventResponse struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	Account   *uuid.UUID      `json:"account,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// IntegrityReport is the result of a hash chain verification pass.
type IntegrityReport struct {
	EventsChecked int64  `json:"events_checked"`
	ChainIntact   bool   `json:"chain_intact"`
	FirstBreakSeq int64  `json:"first_break_seq,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

package treasury

import (
	"errors"
	"fmt"

	chmath "ParaLedger/internal/math"
)

var (
	// ErrInsufficientBalance means the requested debit exceeds the pool.
	ErrInsufficientBalance = errors.New("insufficient contract balance")

	// ErrBelowMinimumBalance means an owner withdrawal would breach the
	// solvency floor.
	ErrBelowMinimumBalance = errors.New("withdrawal would breach minimum balance")
)

// Guard tracks the pooled funds and enforces the solvency floor.
// The three aggregate counters are append-only: they only ever increase
// over the life of the ledger (a rolled-back operation restores the
// pre-operation snapshot, so its increments were never observable).
type Guard struct {
	poolBalance uint64
	minBalance  uint64

	totalPremiumsCollected uint64
	totalClaimsPaid        uint64
	totalRewardsPaid       uint64
}

// Status is the read view over the treasury.
type Status struct {
	PoolBalance            uint64 `json:"pool_balance"`
	MinBalance             uint64 `json:"min_balance"`
	TotalPremiumsCollected uint64 `json:"total_premiums_collected"`
	TotalClaimsPaid        uint64 `json:"total_claims_paid"`
	TotalRewardsPaid       uint64 `json:"total_rewards_paid"`
}

// Snapshot is the full serializable guard state, used both for persistence
// snapshots and for all-or-nothing operation rollback.
type Snapshot struct {
	PoolBalance            uint64 `json:"pool_balance"`
	MinBalance             uint64 `json:"min_balance"`
	TotalPremiumsCollected uint64 `json:"total_premiums_collected"`
	TotalClaimsPaid        uint64 `json:"total_claims_paid"`
	TotalRewardsPaid       uint64 `json:"total_rewards_paid"`
}

func NewGuard(minBalance uint64) *Guard {
	return &Guard{minBalance: minBalance}
}

// Deposit adds funds to the pool. Overflow aborts the operation.
func (g *Guard) Deposit(amount uint64) error {
	pool, err := chmath.Add(g.poolBalance, amount)
	if err != nil {
		return fmt.Errorf("pool deposit: %w", err)
	}
	g.poolBalance = pool
	return nil
}

// Debit removes funds from the pool for a policy payout. Payouts are bounded
// by entitlement, not by the floor; only owner withdrawals respect the floor.
func (g *Guard) Debit(amount uint64) error {
	pool, err := chmath.Sub(g.poolBalance, amount)
	if err != nil {
		return fmt.Errorf("%w: pool=%d requested=%d", ErrInsufficientBalance, g.poolBalance, amount)
	}
	g.poolBalance = pool
	return nil
}

// WithdrawOwner removes funds for the owner, enforcing the solvency floor.
// The floor check uses checked subtraction: a request larger than the pool
// fails here rather than wrapping to a huge remainder.
func (g *Guard) WithdrawOwner(amount uint64) error {
	remaining, err := chmath.Sub(g.poolBalance, amount)
	if err != nil {
		return fmt.Errorf("%w: pool=%d requested=%d", ErrInsufficientBalance, g.poolBalance, amount)
	}
	if remaining < g.minBalance {
		return fmt.Errorf("%w: remaining=%d floor=%d", ErrBelowMinimumBalance, remaining, g.minBalance)
	}
	g.poolBalance = remaining
	return nil
}

// SetMinBalance replaces the solvency floor. No bound beyond owner
// authorization: the owner is trusted for this parameter.
func (g *Guard) SetMinBalance(newMin uint64) {
	g.minBalance = newMin
}

func (g *Guard) RecordPremium(amount uint64) error {
	total, err := chmath.Add(g.totalPremiumsCollected, amount)
	if err != nil {
		return fmt.Errorf("premiums counter: %w", err)
	}
	g.totalPremiumsCollected = total
	return nil
}

func (g *Guard) RecordClaim(amount uint64) error {
	total, err := chmath.Add(g.totalClaimsPaid, amount)
	if err != nil {
		return fmt.Errorf("claims counter: %w", err)
	}
	g.totalClaimsPaid = total
	return nil
}

func (g *Guard) RecordReward(amount uint64) error {
	total, err := chmath.Add(g.totalRewardsPaid, amount)
	if err != nil {
		return fmt.Errorf("rewards counter: %w", err)
	}
	g.totalRewardsPaid = total
	return nil
}

func (g *Guard) PoolBalance() uint64 { return g.poolBalance }
func (g *Guard) MinBalance() uint64  { return g.minBalance }

func (g *Guard) Status() Status {
	return Status{
		PoolBalance:            g.poolBalance,
		MinBalance:             g.minBalance,
		TotalPremiumsCollected: g.totalPremiumsCollected,
		TotalClaimsPaid:        g.totalClaimsPaid,
		TotalRewardsPaid:       g.totalRewardsPaid,
	}
}

// Snapshot captures the full guard state.
func (g *Guard) Snapshot() Snapshot {
	return Snapshot{
		PoolBalance:            g.poolBalance,
		MinBalance:             g.minBalance,
		TotalPremiumsCollected: g.totalPremiumsCollected,
		TotalClaimsPaid:        g.totalClaimsPaid,
		TotalRewardsPaid:       g.totalRewardsPaid,
	}
}

// Restore overwrites the guard state from a snapshot.
func (g *Guard) Restore(s Snapshot) {
	g.poolBalance = s.PoolBalance
	g.minBalance = s.MinBalance
	g.totalPremiumsCollected = s.TotalPremiumsCollected
	g.totalClaimsPaid = s.TotalClaimsPaid
	g.totalRewardsPaid = s.TotalRewardsPaid
}

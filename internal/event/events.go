// internal/event/events.go
package event

import "github.com/google/uuid"

// Payload types carried inside Envelope. Ordering of events within one
// operation matches the order the corresponding state changes occurred.

type PolicyCreated struct {
	Account       uuid.UUID `json:"account"`
	Premium       uint64    `json:"premium"`
	DurationYears uint32    `json:"duration_years"`
	Deposited     uint64    `json:"deposited"`
}

type ClaimFiled struct {
	Account uuid.UUID `json:"account"`
	Amount  uint64    `json:"amount"`
}

type RewardClaimed struct {
	Account uuid.UUID `json:"account"`
	Amount  uint64    `json:"amount"`
}

// PolicyFinalized is emitted when a reward claim finds the coverage window
// fully elapsed and clears the active flag, freeing the slot for reuse.
type PolicyFinalized struct {
	Account             uuid.UUID `json:"account"`
	TotalRewardsClaimed uint64    `json:"total_rewards_claimed"`
}

type FundsWithdrawn struct {
	Owner  uuid.UUID `json:"owner"`
	Amount uint64    `json:"amount"`
}

type MinBalanceUpdated struct {
	NewMin uint64 `json:"new_min"`
}

type OwnershipTransferInitiated struct {
	Current uuid.UUID `json:"current"`
	Pending uuid.UUID `json:"pending"`
}

type OwnershipTransferred struct {
	Previous uuid.UUID `json:"previous"`
	New      uuid.UUID `json:"new"`
}

type SystemPaused struct {
	By uuid.UUID `json:"by"`
}

type SystemUnpaused struct {
	By uuid.UUID `json:"by"`
}

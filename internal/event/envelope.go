package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePolicyCreated
	EventTypeClaimFiled
	EventTypeRewardClaimed
	EventTypePolicyFinalized
	EventTypeFundsWithdrawn
	EventTypeMinBalanceUpdated
	EventTypeOwnershipTransferInitiated
	EventTypeOwnershipTransferred
	EventTypeSystemPaused
	EventTypeSystemUnpaused
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	EventType EventType

	// Account context (uuid.Nil for system-wide events)
	Account uuid.UUID

	// Engine clock timestamp at emission
	Timestamp time.Time

	// Event-specific payload, JSON-encoded at the persistence boundary
	Payload any

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// TypeFromString maps a stored event type name back to its discriminator.
func TypeFromString(s string) EventType {
	switch s {
	case "PolicyCreated":
		return EventTypePolicyCreated
	case "ClaimFiled":
		return EventTypeClaimFiled
	case "RewardClaimed":
		return EventTypeRewardClaimed
	case "PolicyFinalized":
		return EventTypePolicyFinalized
	case "FundsWithdrawn":
		return EventTypeFundsWithdrawn
	case "MinContractBalanceUpdated":
		return EventTypeMinBalanceUpdated
	case "OwnershipTransferInitiated":
		return EventTypeOwnershipTransferInitiated
	case "OwnershipTransferred":
		return EventTypeOwnershipTransferred
	case "SystemPaused":
		return EventTypeSystemPaused
	case "SystemUnpaused":
		return EventTypeSystemUnpaused
	default:
		return EventTypeUnknown
	}
}

func (et EventType) String() string {
	switch et {
	case EventTypePolicyCreated:
		return "PolicyCreated"
	case EventTypeClaimFiled:
		return "ClaimFiled"
	case EventTypeRewardClaimed:
		return "RewardClaimed"
	case EventTypePolicyFinalized:
		return "PolicyFinalized"
	case EventTypeFundsWithdrawn:
		return "FundsWithdrawn"
	case EventTypeMinBalanceUpdated:
		return "MinContractBalanceUpdated"
	case EventTypeOwnershipTransferInitiated:
		return "OwnershipTransferInitiated"
	case EventTypeOwnershipTransferred:
		return "OwnershipTransferred"
	case EventTypeSystemPaused:
		return "SystemPaused"
	case EventTypeSystemUnpaused:
		return "SystemUnpaused"
	default:
		return "Unknown"
	}
}

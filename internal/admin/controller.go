package admin

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotOwner means the caller is not the current owner.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrUnauthorizedOwnershipClaim means the caller is not the designated
	// pending owner.
	ErrUnauthorizedOwnershipClaim = errors.New("caller is not the pending owner")

	// ErrInvalidAddress means a zero identity or a re-designation of the
	// current owner.
	ErrInvalidAddress = errors.New("invalid owner address")

	// ErrSystemPaused means a mutating operation was attempted while paused.
	ErrSystemPaused = errors.New("system is paused")
)

// TransferState is the ownership handshake state machine.
type TransferState int32

const (
	TransferStateStable TransferState = iota
	TransferStatePending
)

func (ts TransferState) String() string {
	switch ts {
	case TransferStateStable:
		return "Stable"
	case TransferStatePending:
		return "PendingTransfer"
	default:
		return "Unknown"
	}
}

// Controller holds the single-owner field, the pending-owner handshake, and
// the pause gate consulted before every state-mutating operation.
type Controller struct {
	owner         uuid.UUID
	pendingOwner  uuid.UUID
	transferState TransferState
	paused        bool
}

// Snapshot is the serializable controller state.
type Snapshot struct {
	Owner         uuid.UUID     `json:"owner"`
	PendingOwner  uuid.UUID     `json:"pending_owner"`
	TransferState TransferState `json:"transfer_state"`
	Paused        bool          `json:"paused"`
}

func NewController(owner uuid.UUID) *Controller {
	return &Controller{
		owner:         owner,
		transferState: TransferStateStable,
	}
}

func (c *Controller) Owner() uuid.UUID        { return c.owner }
func (c *Controller) PendingOwner() uuid.UUID { return c.pendingOwner }
func (c *Controller) State() TransferState    { return c.transferState }
func (c *Controller) Paused() bool            { return c.paused }

// RequireOwner fails unless the caller is the current owner.
func (c *Controller) RequireOwner(caller uuid.UUID) error {
	if caller != c.owner {
		return ErrNotOwner
	}
	return nil
}

// RequireNotPaused gates every value-moving or state-creating operation.
// Read-only views never consult this gate.
func (c *Controller) RequireNotPaused() error {
	if c.paused {
		return ErrSystemPaused
	}
	return nil
}

// InitiateTransfer designates a pending owner. Only the current owner may
// initiate; the zero identity and the current owner are rejected.
func (c *Controller) InitiateTransfer(caller, newOwner uuid.UUID) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	if newOwner == uuid.Nil || newOwner == c.owner {
		return ErrInvalidAddress
	}
	c.pendingOwner = newOwner
	c.transferState = TransferStatePending
	return nil
}

// ClaimOwnership completes the handshake. Only the exact account named by the
// most recent InitiateTransfer may claim; everyone else fails, including the
// current owner. Returns the previous owner for event emission.
func (c *Controller) ClaimOwnership(caller uuid.UUID) (uuid.UUID, error) {
	if c.transferState != TransferStatePending || caller != c.pendingOwner {
		return uuid.Nil, ErrUnauthorizedOwnershipClaim
	}
	previous := c.owner
	c.owner = c.pendingOwner
	c.pendingOwner = uuid.Nil
	c.transferState = TransferStateStable
	return previous, nil
}

// Pause sets the pause gate. Owner-only.
func (c *Controller) Pause(caller uuid.UUID) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	c.paused = true
	return nil
}

// Unpause clears the pause gate. Owner-only.
func (c *Controller) Unpause(caller uuid.UUID) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}
	c.paused = false
	return nil
}

// Snapshot captures the controller state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Owner:         c.owner,
		PendingOwner:  c.pendingOwner,
		TransferState: c.transferState,
		Paused:        c.paused,
	}
}

// Restore overwrites the controller state from a snapshot.
func (c *Controller) Restore(s Snapshot) {
	c.owner = s.Owner
	c.pendingOwner = s.PendingOwner
	c.transferState = s.TransferState
	c.paused = s.Paused
}

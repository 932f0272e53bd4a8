package admin_test

import (
	"errors"
	"testing"

	"ParaLedger/internal/admin"

	"github.com/google/uuid"
)

func TestInitiateTransfer_OwnerOnly(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	next := uuid.New()
	c := admin.NewController(owner)

	if err := c.InitiateTransfer(stranger, next); !errors.Is(err, admin.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := c.InitiateTransfer(owner, next); err != nil {
		t.Fatalf("owner initiate: %v", err)
	}
	if c.State() != admin.TransferStatePending {
		t.Errorf("state: got %v, want PendingTransfer", c.State())
	}
}

func TestInitiateTransfer_RejectsZeroAndSelf(t *testing.T) {
	owner := uuid.New()
	c := admin.NewController(owner)

	if err := c.InitiateTransfer(owner, uuid.Nil); !errors.Is(err, admin.ErrInvalidAddress) {
		t.Errorf("zero identity: expected ErrInvalidAddress, got %v", err)
	}
	if err := c.InitiateTransfer(owner, owner); !errors.Is(err, admin.ErrInvalidAddress) {
		t.Errorf("self transfer: expected ErrInvalidAddress, got %v", err)
	}
}

func TestClaimOwnership_OnlyPendingOwner(t *testing.T) {
	owner := uuid.New()
	next := uuid.New()
	stranger := uuid.New()
	c := admin.NewController(owner)

	// No transfer in flight
	if _, err := c.ClaimOwnership(next); !errors.Is(err, admin.ErrUnauthorizedOwnershipClaim) {
		t.Errorf("expected ErrUnauthorizedOwnershipClaim, got %v", err)
	}

	if err := c.InitiateTransfer(owner, next); err != nil {
		t.Fatal(err)
	}

	if _, err := c.ClaimOwnership(stranger); !errors.Is(err, admin.ErrUnauthorizedOwnershipClaim) {
		t.Errorf("stranger claim: expected ErrUnauthorizedOwnershipClaim, got %v", err)
	}
	// The current owner cannot claim either
	if _, err := c.ClaimOwnership(owner); !errors.Is(err, admin.ErrUnauthorizedOwnershipClaim) {
		t.Errorf("owner claim: expected ErrUnauthorizedOwnershipClaim, got %v", err)
	}

	prev, err := c.ClaimOwnership(next)
	if err != nil {
		t.Fatalf("pending owner claim: %v", err)
	}
	if prev != owner {
		t.Errorf("previous owner: got %s, want %s", prev, owner)
	}
	if c.Owner() != next {
		t.Errorf("owner: got %s, want %s", c.Owner(), next)
	}
	if c.State() != admin.TransferStateStable {
		t.Errorf("state after claim: got %v, want Stable", c.State())
	}
	if c.PendingOwner() != uuid.Nil {
		t.Errorf("pending owner not cleared")
	}
}

func TestReinitiate_ReplacesPendingOwner(t *testing.T) {
	owner := uuid.New()
	first := uuid.New()
	second := uuid.New()
	c := admin.NewController(owner)

	c.InitiateTransfer(owner, first)
	c.InitiateTransfer(owner, second)

	if _, err := c.ClaimOwnership(first); !errors.Is(err, admin.ErrUnauthorizedOwnershipClaim) {
		t.Errorf("superseded pending owner should fail, got %v", err)
	}
	if _, err := c.ClaimOwnership(second); err != nil {
		t.Errorf("latest pending owner should succeed, got %v", err)
	}
}

func TestPauseGate(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	c := admin.NewController(owner)

	if err := c.RequireNotPaused(); err != nil {
		t.Fatalf("unpaused gate: %v", err)
	}
	if err := c.Pause(stranger); !errors.Is(err, admin.ErrNotOwner) {
		t.Errorf("stranger pause: expected ErrNotOwner, got %v", err)
	}
	if err := c.Pause(owner); err != nil {
		t.Fatal(err)
	}
	if err := c.RequireNotPaused(); !errors.Is(err, admin.ErrSystemPaused) {
		t.Errorf("paused gate: expected ErrSystemPaused, got %v", err)
	}
	if err := c.Unpause(owner); err != nil {
		t.Fatal(err)
	}
	if err := c.RequireNotPaused(); err != nil {
		t.Errorf("gate after unpause: %v", err)
	}
}

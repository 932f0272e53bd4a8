package engine

import (
	"errors"

	"ParaLedger/internal/admin"
	"ParaLedger/internal/guard"
	"ParaLedger/internal/treasury"
)

// Lifecycle and value-movement precondition failures. All are rejected
// before any state mutation; every failure path leaves the pre-call state
// intact exactly.
var (
	ErrInsufficientPremium  = errors.New("deposited value below required premium")
	ErrInvalidDuration      = errors.New("duration outside allowed range")
	ErrPolicyAlreadyExists  = errors.New("active policy already exists for account")
	ErrPolicyNotFound       = errors.New("no active policy for account")
	ErrClaimAlreadyFiled    = errors.New("claim already filed for this policy")
	ErrExcessiveClaimAmount = errors.New("claim amount exceeds premium")
	ErrPolicyNotMatured     = errors.New("policy has not matured")
	ErrPaymentFailed        = errors.New("outbound payment failed")
)

// rejectReason maps an error to a low-cardinality metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientPremium):
		return "insufficient_premium"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrPolicyAlreadyExists):
		return "policy_exists"
	case errors.Is(err, ErrPolicyNotFound):
		return "policy_not_found"
	case errors.Is(err, ErrClaimAlreadyFiled):
		return "claim_filed"
	case errors.Is(err, ErrExcessiveClaimAmount):
		return "excessive_claim"
	case errors.Is(err, ErrPolicyNotMatured):
		return "not_matured"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, admin.ErrSystemPaused):
		return "paused"
	case errors.Is(err, admin.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, admin.ErrUnauthorizedOwnershipClaim):
		return "unauthorized_claim"
	case errors.Is(err, admin.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, guard.ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, treasury.ErrBelowMinimumBalance):
		return "below_min_balance"
	case errors.Is(err, treasury.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "internal"
	}
}

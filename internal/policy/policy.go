package policy

import (
	"time"

	"github.com/google/uuid"
)

// Coverage constants. Durations are whole year-units; accrual and expiry
// arithmetic uses YearSeconds, not calendar years.
const (
	YearSeconds      = 31536000 // 365 days
	RewardPercentage = 4        // percent of premium accrued per elapsed year
	MaxYears         = 3        // maximum coverage duration and accrual horizon
)

// Policy is the per-account insurance record. At most one policy per account
// is active at a time; the slot is reused once IsActive is cleared.
type Policy struct {
	Account             uuid.UUID
	PremiumAmount       uint64
	StartTime           time.Time
	DurationYears       uint32
	HasClaim            bool
	IsActive            bool
	LastRewardClaim     time.Time
	TotalRewardsClaimed uint64
	Version             int64
}

// ExpiresAt returns the end of the coverage window.
func (p *Policy) ExpiresAt() time.Time {
	return p.StartTime.Add(time.Duration(p.DurationYears) * YearSeconds * time.Second)
}

// IsLive reports whether the policy is active AND inside its coverage window.
// Callers gated on this predicate must evaluate it at call time: it depends
// on the live clock, not on state captured at creation.
func (p *Policy) IsLive(now time.Time) bool {
	return p.IsActive && now.Before(p.ExpiresAt())
}

// Expired reports whether the coverage window has fully elapsed.
func (p *Policy) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt())
}

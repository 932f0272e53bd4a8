package reward

import (
	"time"

	chmath "ParaLedger/internal/math"
	"ParaLedger/internal/policy"
)

// Accrued computes the reward entitlement for a policy snapshot at a given
// time. Pure function: no state is read or written here.
//
// Accrual is time-proportional in whole year-units since the last reward
// settlement. Sub-year elapsed time truncates to zero — a policy younger than
// one year-unit since its last settlement has nothing to collect. Elapsed
// time beyond MaxYears caps at the maximum coverage horizon, so a stale
// LastRewardClaim cannot grow entitlement without bound.
func Accrued(pol *policy.Policy, now time.Time) (uint64, error) {
	years := YearsElapsed(pol.LastRewardClaim, now)
	if years > policy.MaxYears {
		years = policy.MaxYears
	}
	if years == 0 {
		return 0, nil
	}

	// premium * RewardPercentage * years / 100, truncating
	pct, err := chmath.Mul(pol.PremiumAmount, policy.RewardPercentage)
	if err != nil {
		return 0, err
	}
	return chmath.MulDiv(pct, years, 100)
}

// YearsElapsed returns floor((now - since) / YearSeconds), zero when now
// precedes since.
func YearsElapsed(since, now time.Time) uint64 {
	if !now.After(since) {
		return 0
	}
	elapsed := now.Unix() - since.Unix()
	return uint64(elapsed) / policy.YearSeconds
}

package reward_test

import (
	"testing"
	"time"

	"ParaLedger/internal/policy"
	"ParaLedger/internal/reward"

	"github.com/google/uuid"
)

func testPolicy(premium uint64, lastClaim time.Time) *policy.Policy {
	return &policy.Policy{
		Account:         uuid.New(),
		PremiumAmount:   premium,
		StartTime:       lastClaim,
		DurationYears:   2,
		IsActive:        true,
		LastRewardClaim: lastClaim,
	}
}

func TestAccrued_SubYearIsZero(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	pol := testPolicy(1_000_000, start)

	now := start.Add(policy.YearSeconds*time.Second - time.Second)
	got, err := reward.Accrued(pol, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("sub-year accrual should be 0, got %d", got)
	}
}

func TestAccrued_OneYearPaysFourPercent(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	pol := testPolicy(1_000_000, start)

	now := start.Add(policy.YearSeconds * time.Second)
	got, err := reward.Accrued(pol, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 40_000 {
		t.Errorf("one year accrual: got %d, want 40_000", got)
	}
}

func TestAccrued_CapsAtMaxYears(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	pol := testPolicy(1_000_000, start)

	// Four years elapsed: pays 4% * 3 = 120_000, not 160_000
	now := start.Add(4 * policy.YearSeconds * time.Second)
	got, err := reward.Accrued(pol, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 120_000 {
		t.Errorf("capped accrual: got %d, want 120_000", got)
	}

	// The cap is independent of how far elapsed time exceeds the horizon
	far := start.Add(40 * policy.YearSeconds * time.Second)
	gotFar, err := reward.Accrued(pol, far)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFar != got {
		t.Errorf("accrual beyond horizon should not grow: got %d, want %d", gotFar, got)
	}
}

func TestAccrued_TruncatesFractionalYears(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	pol := testPolicy(1_000_000, start)

	// 1.9 years elapsed pays exactly one year's worth
	now := start.Add(time.Duration(float64(policy.YearSeconds)*1.9) * time.Second)
	got, err := reward.Accrued(pol, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 40_000 {
		t.Errorf("got %d, want 40_000", got)
	}
}

func TestYearsElapsed_NowBeforeSince(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if got := reward.YearsElapsed(now.Add(time.Hour), now); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

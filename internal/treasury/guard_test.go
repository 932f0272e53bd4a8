package treasury_test

import (
	"errors"
	"testing"

	"ParaLedger/internal/treasury"
)

func TestWithdrawOwner_RespectsFloor(t *testing.T) {
	g := treasury.NewGuard(500)
	if err := g.Deposit(1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := g.WithdrawOwner(500); err != nil {
		t.Fatalf("withdraw within floor: %v", err)
	}
	if g.PoolBalance() != 500 {
		t.Errorf("pool: got %d, want 500", g.PoolBalance())
	}

	// Next withdrawal of any size would breach the floor
	err := g.WithdrawOwner(1)
	if !errors.Is(err, treasury.ErrBelowMinimumBalance) {
		t.Errorf("expected ErrBelowMinimumBalance, got %v", err)
	}
	if g.PoolBalance() != 500 {
		t.Errorf("failed withdrawal must not change pool: got %d", g.PoolBalance())
	}
}

func TestWithdrawOwner_OversizedRequestDoesNotWrap(t *testing.T) {
	g := treasury.NewGuard(0)
	if err := g.Deposit(100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err := g.WithdrawOwner(101)
	if !errors.Is(err, treasury.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if g.PoolBalance() != 100 {
		t.Errorf("pool changed on failed withdrawal: %d", g.PoolBalance())
	}
}

func TestDebit_Underflow(t *testing.T) {
	g := treasury.NewGuard(0)
	if err := g.Debit(1); !errors.Is(err, treasury.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCounters_Accumulate(t *testing.T) {
	g := treasury.NewGuard(0)
	if err := g.RecordPremium(10); err != nil {
		t.Fatal(err)
	}
	if err := g.RecordPremium(5); err != nil {
		t.Fatal(err)
	}
	if err := g.RecordClaim(3); err != nil {
		t.Fatal(err)
	}
	if err := g.RecordReward(2); err != nil {
		t.Fatal(err)
	}

	st := g.Status()
	if st.TotalPremiumsCollected != 15 {
		t.Errorf("premiums: got %d, want 15", st.TotalPremiumsCollected)
	}
	if st.TotalClaimsPaid != 3 {
		t.Errorf("claims: got %d, want 3", st.TotalClaimsPaid)
	}
	if st.TotalRewardsPaid != 2 {
		t.Errorf("rewards: got %d, want 2", st.TotalRewardsPaid)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	g := treasury.NewGuard(50)
	g.Deposit(1_000)
	g.RecordPremium(1_000)

	snap := g.Snapshot()

	g.Debit(400)
	g.RecordClaim(400)
	g.SetMinBalance(999)

	g.Restore(snap)
	st := g.Status()
	if st.PoolBalance != 1_000 || st.MinBalance != 50 || st.TotalClaimsPaid != 0 {
		t.Errorf("restore did not revert state: %+v", st)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ParaLedger/internal/admin"
	"ParaLedger/internal/engine"
	"ParaLedger/internal/persistence"
	"ParaLedger/internal/policy"
	"ParaLedger/internal/treasury"
)

// Conversions between the engine's in-memory snapshot state and the
// persistence wire form.

func engineStateToSnapshot(state *engine.SnapshotState) *persistence.SnapshotData {
	snap := &persistence.SnapshotData{
		Sequence:  state.Sequence,
		StateHash: state.StateHash[:],
		Policies:  make([]persistence.PolicySnap, 0, len(state.Policies)),
		Treasury: persistence.TreasurySnap{
			PoolBalance:            state.Treasury.PoolBalance,
			MinBalance:             state.Treasury.MinBalance,
			TotalPremiumsCollected: state.Treasury.TotalPremiumsCollected,
			TotalClaimsPaid:        state.Treasury.TotalClaimsPaid,
			TotalRewardsPaid:       state.Treasury.TotalRewardsPaid,
		},
		Admin: persistence.AdminStateSnap{
			Owner:         state.Admin.Owner.String(),
			PendingOwner:  state.Admin.PendingOwner.String(),
			TransferState: int32(state.Admin.TransferState),
			Paused:        state.Admin.Paused,
		},
		CreatedAt: time.Now(),
	}

	for _, pol := range state.Policies {
		snap.Policies = append(snap.Policies, persistence.PolicySnap{
			Account:             pol.Account.String(),
			PremiumAmount:       pol.PremiumAmount,
			StartTime:           pol.StartTime,
			DurationYears:       pol.DurationYears,
			HasClaim:            pol.HasClaim,
			IsActive:            pol.IsActive,
			LastRewardClaim:     pol.LastRewardClaim,
			TotalRewardsClaimed: pol.TotalRewardsClaimed,
			Version:             pol.Version,
		})
	}

	return snap
}

func snapshotToEngineState(snap *persistence.SnapshotData) (*engine.SnapshotState, error) {
	owner, err := uuid.Parse(snap.Admin.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	pendingOwner, err := uuid.Parse(snap.Admin.PendingOwner)
	if err != nil {
		return nil, fmt.Errorf("parse pending owner: %w", err)
	}

	state := &engine.SnapshotState{
		Sequence: snap.Sequence,
		Policies: make([]*policy.Policy, 0, len(snap.Policies)),
		Treasury: treasury.Snapshot{
			PoolBalance:            snap.Treasury.PoolBalance,
			MinBalance:             snap.Treasury.MinBalance,
			TotalPremiumsCollected: snap.Treasury.TotalPremiumsCollected,
			TotalClaimsPaid:        snap.Treasury.TotalClaimsPaid,
			TotalRewardsPaid:       snap.Treasury.TotalRewardsPaid,
		},
		Admin: admin.Snapshot{
			Owner:         owner,
			PendingOwner:  pendingOwner,
			TransferState: admin.TransferState(snap.Admin.TransferState),
			Paused:        snap.Admin.Paused,
		},
	}
	copy(state.StateHash[:], snap.StateHash)

	for _, ps := range snap.Policies {
		account, err := uuid.Parse(ps.Account)
		if err != nil {
			return nil, fmt.Errorf("parse policy account: %w", err)
		}
		state.Policies = append(state.Policies, &policy.Policy{
			Account:             account,
			PremiumAmount:       ps.PremiumAmount,
			StartTime:           ps.StartTime,
			DurationYears:       ps.DurationYears,
			HasClaim:            ps.HasClaim,
			IsActive:            ps.IsActive,
			LastRewardClaim:     ps.LastRewardClaim,
			TotalRewardsClaimed: ps.TotalRewardsClaimed,
			Version:             ps.Version,
		})
	}

	return state, nil
}

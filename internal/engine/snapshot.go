package engine

import (
	"ParaLedger/internal/admin"
	"ParaLedger/internal/policy"
	"ParaLedger/internal/treasury"
)

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte
	Policies  []*policy.Policy
	Treasury  treasury.Snapshot
	Admin     admin.Snapshot
}

// CreateSnapshotState captures the current in-memory state for persistence.
// Policies are deep-copied: the snapshot is the state exactly as of Sequence,
// and operations applied after the capture must not leak into it — callers
// serialize it outside the engine lock.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	live := e.store.All()
	policies := make([]*policy.Policy, 0, len(live))
	for _, pol := range live {
		snap := *pol
		policies = append(policies, &snap)
	}

	return &SnapshotState{
		Sequence:  e.sequence,
		StateHash: e.chain.tip(),
		Policies:  policies,
		Treasury:  e.treasury.Snapshot(),
		Admin:     e.admin.Snapshot(),
	}
}

// RestoreFromSnapshot restores the engine's in-memory state on warm start.
// The store gets its own copies, so the snapshot stays inert afterwards.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = snap.Sequence
	e.chain.setTip(snap.StateHash)
	for _, pol := range snap.Policies {
		slot := *pol
		e.store.Restore(&slot)
	}
	e.treasury.Restore(snap.Treasury)
	e.admin.Restore(snap.Admin)
}

package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"ParaLedger/internal/event"
	chmath "ParaLedger/internal/math"
	"ParaLedger/internal/policy"
)

// ReplayEvent re-applies one durable event to in-memory state during startup
// recovery. No payments are made and nothing is emitted: the event already
// happened, this only rebuilds the state it produced. Events must be fed in
// sequence order starting at the engine's current sequence.
func (e *Engine) ReplayEvent(evtType event.EventType, payload []byte, timestamp time.Time, sequence int64, stateHash [32]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sequence != e.sequence {
		return fmt.Errorf("replay gap: got sequence %d, expected %d", sequence, e.sequence)
	}

	if err := e.applyReplayed(evtType, payload, timestamp); err != nil {
		return fmt.Errorf("replay sequence %d (%s): %w", sequence, evtType, err)
	}

	e.sequence = sequence + 1
	e.chain.setTip(stateHash)
	return nil
}

func (e *Engine) applyReplayed(evtType event.EventType, payload []byte, timestamp time.Time) error {
	switch evtType {
	case event.EventTypePolicyCreated:
		var p event.PolicyCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if err := e.treasury.Deposit(p.Deposited); err != nil {
			return err
		}
		if err := e.treasury.RecordPremium(p.Premium); err != nil {
			return err
		}
		e.store.Put(&policy.Policy{
			Account:         p.Account,
			PremiumAmount:   p.Premium,
			StartTime:       timestamp,
			DurationYears:   p.DurationYears,
			IsActive:        true,
			LastRewardClaim: timestamp,
		})
		return nil

	case event.EventTypeClaimFiled:
		var p event.ClaimFiled
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		pol := e.store.Get(p.Account)
		if pol == nil {
			return fmt.Errorf("no policy for account %s", p.Account)
		}
		pol.HasClaim = true
		pol.Version++
		if err := e.treasury.Debit(p.Amount); err != nil {
			return err
		}
		return e.treasury.RecordClaim(p.Amount)

	case event.EventTypeRewardClaimed:
		var p event.RewardClaimed
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		pol := e.store.Get(p.Account)
		if pol == nil {
			return fmt.Errorf("no policy for account %s", p.Account)
		}
		pol.LastRewardClaim = timestamp
		total, err := chmath.Add(pol.TotalRewardsClaimed, p.Amount)
		if err != nil {
			return err
		}
		pol.TotalRewardsClaimed = total
		pol.Version++
		if err := e.treasury.RecordReward(p.Amount); err != nil {
			return err
		}
		return e.treasury.Debit(p.Amount)

	case event.EventTypePolicyFinalized:
		var p event.PolicyFinalized
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		pol := e.store.Get(p.Account)
		if pol == nil {
			return fmt.Errorf("no policy for account %s", p.Account)
		}
		pol.IsActive = false
		return nil

	case event.EventTypeFundsWithdrawn:
		var p event.FundsWithdrawn
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return e.treasury.WithdrawOwner(p.Amount)

	case event.EventTypeMinBalanceUpdated:
		var p event.MinBalanceUpdated
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		e.treasury.SetMinBalance(p.NewMin)
		return nil

	case event.EventTypeOwnershipTransferInitiated:
		var p event.OwnershipTransferInitiated
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return e.admin.InitiateTransfer(p.Current, p.Pending)

	case event.EventTypeOwnershipTransferred:
		var p event.OwnershipTransferred
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := e.admin.ClaimOwnership(p.New)
		return err

	case event.EventTypeSystemPaused:
		var p event.SystemPaused
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return e.admin.Pause(p.By)

	case event.EventTypeSystemUnpaused:
		var p event.SystemUnpaused
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return e.admin.Unpause(p.By)

	default:
		return fmt.Errorf("unknown event type")
	}
}

package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"ParaLedger/internal/admin"
	"ParaLedger/internal/event"
	"ParaLedger/internal/guard"
	chmath "ParaLedger/internal/math"
	"ParaLedger/internal/observability"
	"ParaLedger/internal/policy"
	"ParaLedger/internal/reward"
	"ParaLedger/internal/treasury"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Clock is the external time source. The engine never reads the wall clock
// directly; maturity and accrual logic re-evaluate against this at call time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// PaymentSink is the outbound value-transfer boundary. A Pay failure must
// cause the entire enclosing operation to fail with all state changes undone.
type PaymentSink interface {
	Pay(ctx context.Context, account uuid.UUID, amount uint64) error
}

// Output is what the engine emits per event: the envelope for the event log
// and outbound publishing, plus post-event state for the read projections.
// Policy is a copy of the affected policy slot (nil for system-wide events).
type Output struct {
	Envelope *event.Envelope
	Policy   *policy.Policy
	Status   ContractStatus
}

// Config holds engine construction parameters.
type Config struct {
	Owner      uuid.UUID
	MinPremium uint64
	MinBalance uint64
}

// Engine orchestrates policy lifecycle transitions against the store, using
// the reward calculator for accrual, the treasury guard for solvency, and the
// admin controller for authorization and the pause gate.
//
// Every mutating operation holds the re-entrancy guard from entry until after
// the outbound transfer completes, so exactly one logical operation mutates
// state at a time. State marking an operation as done (HasClaim,
// LastRewardClaim, IsActive, pool balance) is committed BEFORE the transfer
// is initiated; if the transfer fails, the operation restores its pre-call
// snapshot and reports failure.
type Engine struct {
	mu      sync.RWMutex
	reentry *guard.ReentrancyGuard

	store    *policy.Store
	treasury *treasury.Guard
	admin    *admin.Controller
	clock    Clock
	payments PaymentSink
	chain    *hashChain

	sequence   int64
	minPremium uint64

	persistChan chan<- Output
	publishChan chan<- Output

	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(
	cfg Config,
	clock Clock,
	payments PaymentSink,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		reentry:     guard.NewReentrancyGuard(),
		store:       policy.NewStore(),
		treasury:    treasury.NewGuard(cfg.MinBalance),
		admin:       admin.NewController(cfg.Owner),
		clock:       clock,
		payments:    payments,
		chain:       newHashChain(),
		minPremium:  cfg.MinPremium,
		persistChan: persistChan,
		publishChan: publishChan,
		metrics:     metrics,
		log:         log,
	}
}

// ============================================================================
// Mutating operations
// ============================================================================

// CreatePolicy stores a new policy for the caller, funded by deposited value.
// The full deposited value enters the pool; the declared premium is what the
// aggregate counter records and what caps any later claim.
func (e *Engine) CreatePolicy(ctx context.Context, caller uuid.UUID, premium uint64, durationYears uint32, deposited uint64) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("create_policy", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admin.RequireNotPaused(); err != nil {
		e.reject("create_policy", err)
		return err
	}
	if premium < e.minPremium || deposited < premium {
		e.reject("create_policy", ErrInsufficientPremium)
		return ErrInsufficientPremium
	}
	if durationYears < 1 || durationYears > policy.MaxYears {
		e.reject("create_policy", ErrInvalidDuration)
		return ErrInvalidDuration
	}
	if e.store.Active(caller) != nil {
		e.reject("create_policy", ErrPolicyAlreadyExists)
		return ErrPolicyAlreadyExists
	}

	tsnap := e.treasury.Snapshot()
	if err := e.treasury.Deposit(deposited); err != nil {
		e.treasury.Restore(tsnap)
		e.reject("create_policy", err)
		return err
	}
	if err := e.treasury.RecordPremium(premium); err != nil {
		e.treasury.Restore(tsnap)
		e.reject("create_policy", err)
		return err
	}

	now := e.clock.Now()
	e.store.Put(&policy.Policy{
		Account:         caller,
		PremiumAmount:   premium,
		StartTime:       now,
		DurationYears:   durationYears,
		IsActive:        true,
		LastRewardClaim: now,
	})

	e.emitLocked(event.EventTypePolicyCreated, caller, now, event.PolicyCreated{
		Account:       caller,
		Premium:       premium,
		DurationYears: durationYears,
		Deposited:     deposited,
	})
	e.applied("create_policy", start)
	return nil
}

// FileClaim pays out a capped refund against a live policy. HasClaim is
// committed before the transfer: a second call arriving during the transfer
// callback observes HasClaim == true and is rejected.
//
// A policy that expired unclaimed cannot file at all; the claim window closes
// with the coverage window.
func (e *Engine) FileClaim(ctx context.Context, caller uuid.UUID, amount uint64) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("file_claim", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()

	if err := e.admin.RequireNotPaused(); err != nil {
		e.mu.Unlock()
		e.reject("file_claim", err)
		return err
	}

	now := e.clock.Now()
	pol := e.store.Get(caller)
	if pol == nil || !pol.IsLive(now) {
		e.mu.Unlock()
		e.reject("file_claim", ErrPolicyNotFound)
		return ErrPolicyNotFound
	}
	if pol.HasClaim {
		e.mu.Unlock()
		e.reject("file_claim", ErrClaimAlreadyFiled)
		return ErrClaimAlreadyFiled
	}
	if amount > pol.PremiumAmount {
		e.mu.Unlock()
		e.reject("file_claim", ErrExcessiveClaimAmount)
		return ErrExcessiveClaimAmount
	}

	prev := *pol
	tsnap := e.treasury.Snapshot()

	pol.HasClaim = true
	pol.Version++

	if err := e.treasury.Debit(amount); err != nil {
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("file_claim", err)
		return err
	}
	if err := e.treasury.RecordClaim(amount); err != nil {
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("file_claim", err)
		return err
	}
	e.mu.Unlock()

	// State is committed; the transfer happens outside the state lock but
	// inside the re-entrancy guard.
	if err := e.payments.Pay(ctx, caller, amount); err != nil {
		e.mu.Lock()
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("file_claim", ErrPaymentFailed)
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.mu.Lock()
	e.emitLocked(event.EventTypeClaimFiled, caller, now, event.ClaimFiled{
		Account: caller,
		Amount:  amount,
	})
	e.mu.Unlock()

	e.applied("file_claim", start)
	return nil
}

// ClaimReward settles accrued time-based rewards. The accrual window is
// keyed off LastRewardClaim, caps at the maximum coverage horizon, and stays
// collectible after the coverage window lapses as long as IsActive is set —
// the settlement that finds the window elapsed also finalizes the policy.
//
// In this exact order: LastRewardClaim advances, TotalRewardsClaimed and the
// rewards-paid counter accumulate, finalization runs, THEN the transfer is
// initiated.
func (e *Engine) ClaimReward(ctx context.Context, caller uuid.UUID) (uint64, error) {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("claim_reward", err)
		return 0, err
	}
	defer e.reentry.Exit()

	e.mu.Lock()

	if err := e.admin.RequireNotPaused(); err != nil {
		e.mu.Unlock()
		e.reject("claim_reward", err)
		return 0, err
	}

	pol := e.store.Active(caller)
	if pol == nil {
		e.mu.Unlock()
		e.reject("claim_reward", ErrPolicyNotFound)
		return 0, ErrPolicyNotFound
	}
	if pol.HasClaim {
		e.mu.Unlock()
		e.reject("claim_reward", ErrClaimAlreadyFiled)
		return 0, ErrClaimAlreadyFiled
	}

	now := e.clock.Now()
	amount, err := reward.Accrued(pol, now)
	if err != nil {
		e.mu.Unlock()
		e.reject("claim_reward", err)
		return 0, fmt.Errorf("reward accrual: %w", err)
	}
	if amount == 0 {
		e.mu.Unlock()
		e.reject("claim_reward", ErrPolicyNotMatured)
		return 0, ErrPolicyNotMatured
	}

	prev := *pol
	tsnap := e.treasury.Snapshot()

	pol.LastRewardClaim = now
	total, err := chmath.Add(pol.TotalRewardsClaimed, amount)
	if err != nil {
		e.mu.Unlock()
		e.reject("claim_reward", err)
		return 0, err
	}
	pol.TotalRewardsClaimed = total
	pol.Version++

	if err := e.treasury.RecordReward(amount); err != nil {
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("claim_reward", err)
		return 0, err
	}
	if err := e.treasury.Debit(amount); err != nil {
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("claim_reward", err)
		return 0, err
	}

	finalized := false
	if pol.Expired(now) {
		pol.IsActive = false
		finalized = true
	}
	e.mu.Unlock()

	if err := e.payments.Pay(ctx, caller, amount); err != nil {
		e.mu.Lock()
		*pol = prev
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("claim_reward", ErrPaymentFailed)
		return 0, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.mu.Lock()
	e.emitLocked(event.EventTypeRewardClaimed, caller, now, event.RewardClaimed{
		Account: caller,
		Amount:  amount,
	})
	if finalized {
		e.emitLocked(event.EventTypePolicyFinalized, caller, now, event.PolicyFinalized{
			Account:             caller,
			TotalRewardsClaimed: pol.TotalRewardsClaimed,
		})
	}
	e.mu.Unlock()

	e.applied("claim_reward", start)
	return amount, nil
}

// WithdrawFunds moves pooled funds to the owner, never below the solvency
// floor.
func (e *Engine) WithdrawFunds(ctx context.Context, caller uuid.UUID, amount uint64) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("withdraw_funds", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()

	if err := e.admin.RequireNotPaused(); err != nil {
		e.mu.Unlock()
		e.reject("withdraw_funds", err)
		return err
	}
	if err := e.admin.RequireOwner(caller); err != nil {
		e.mu.Unlock()
		e.reject("withdraw_funds", err)
		return err
	}

	tsnap := e.treasury.Snapshot()
	if err := e.treasury.WithdrawOwner(amount); err != nil {
		e.mu.Unlock()
		e.reject("withdraw_funds", err)
		return err
	}
	e.mu.Unlock()

	if err := e.payments.Pay(ctx, caller, amount); err != nil {
		e.mu.Lock()
		e.treasury.Restore(tsnap)
		e.mu.Unlock()
		e.reject("withdraw_funds", ErrPaymentFailed)
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.mu.Lock()
	e.emitLocked(event.EventTypeFundsWithdrawn, caller, e.clock.Now(), event.FundsWithdrawn{
		Owner:  caller,
		Amount: amount,
	})
	e.mu.Unlock()

	e.applied("withdraw_funds", start)
	return nil
}

// SetMinContractBalance replaces the solvency floor. Owner-only; callable
// while paused.
func (e *Engine) SetMinContractBalance(ctx context.Context, caller uuid.UUID, newMin uint64) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("set_min_balance", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admin.RequireOwner(caller); err != nil {
		e.reject("set_min_balance", err)
		return err
	}

	e.treasury.SetMinBalance(newMin)
	e.emitLocked(event.EventTypeMinBalanceUpdated, uuid.Nil, e.clock.Now(), event.MinBalanceUpdated{NewMin: newMin})
	e.applied("set_min_balance", start)
	return nil
}

// InitiateOwnershipTransfer designates a pending owner.
func (e *Engine) InitiateOwnershipTransfer(ctx context.Context, caller, newOwner uuid.UUID) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("initiate_ownership", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admin.InitiateTransfer(caller, newOwner); err != nil {
		e.reject("initiate_ownership", err)
		return err
	}

	e.emitLocked(event.EventTypeOwnershipTransferInitiated, uuid.Nil, e.clock.Now(), event.OwnershipTransferInitiated{
		Current: caller,
		Pending: newOwner,
	})
	e.applied("initiate_ownership", start)
	return nil
}

// ClaimOwnership completes the two-step handshake.
func (e *Engine) ClaimOwnership(ctx context.Context, caller uuid.UUID) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("claim_ownership", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	previous, err := e.admin.ClaimOwnership(caller)
	if err != nil {
		e.reject("claim_ownership", err)
		return err
	}

	e.emitLocked(event.EventTypeOwnershipTransferred, uuid.Nil, e.clock.Now(), event.OwnershipTransferred{
		Previous: previous,
		New:      caller,
	})
	e.applied("claim_ownership", start)
	return nil
}

// Pause sets the system-wide pause gate. Owner-only.
func (e *Engine) Pause(ctx context.Context, caller uuid.UUID) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("pause", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admin.Pause(caller); err != nil {
		e.reject("pause", err)
		return err
	}
	e.emitLocked(event.EventTypeSystemPaused, uuid.Nil, e.clock.Now(), event.SystemPaused{By: caller})
	e.applied("pause", start)
	return nil
}

// Unpause clears the pause gate. Owner-only.
func (e *Engine) Unpause(ctx context.Context, caller uuid.UUID) error {
	start := time.Now()
	if err := e.reentry.Enter(); err != nil {
		e.reject("unpause", err)
		return err
	}
	defer e.reentry.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admin.Unpause(caller); err != nil {
		e.reject("unpause", err)
		return err
	}
	e.emitLocked(event.EventTypeSystemUnpaused, uuid.Nil, e.clock.Now(), event.SystemUnpaused{By: caller})
	e.applied("unpause", start)
	return nil
}

// ============================================================================
// Read views — never block behind transfers, never mutate, callable while
// paused.
// ============================================================================

// PolicyDetails returns a copy of the account's policy slot.
func (e *Engine) PolicyDetails(account uuid.UUID) (policy.Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pol := e.store.Get(account)
	if pol == nil {
		return policy.Policy{}, false
	}
	return *pol, true
}

// MaxClaimAmount returns the claim-payout ceiling: the premium for a live,
// unclaimed policy, zero otherwise.
func (e *Engine) MaxClaimAmount(account uuid.UUID) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pol := e.store.Get(account)
	if pol == nil || pol.HasClaim || !pol.IsLive(e.clock.Now()) {
		return 0
	}
	return pol.PremiumAmount
}

// AvailableReward returns the accrual an immediate ClaimReward would settle.
func (e *Engine) AvailableReward(account uuid.UUID) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pol := e.store.Active(account)
	if pol == nil || pol.HasClaim {
		return 0
	}
	amount, err := reward.Accrued(pol, e.clock.Now())
	if err != nil {
		return 0
	}
	return amount
}

// IsPolicyActive reports whether the account's policy is active AND inside
// its coverage window, evaluated against the live clock.
func (e *Engine) IsPolicyActive(account uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pol := e.store.Get(account)
	return pol != nil && pol.IsLive(e.clock.Now())
}

// ContractStatus is the aggregate read view.
type ContractStatus struct {
	treasury.Status
	Paused bool `json:"paused"`
}

func (e *Engine) Status() ContractStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return ContractStatus{
		Status: e.treasury.Status(),
		Paused: e.admin.Paused(),
	}
}

// Owner returns the current owner identity.
func (e *Engine) Owner() uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.admin.Owner()
}

// Sequence returns the current engine sequence number.
func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// StateHash returns the current state hash (chain tip).
func (e *Engine) StateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chain.tip()
}

// ============================================================================
// Emission
// ============================================================================

// emitLocked assigns a sequence, extends the hash chain, and fans the event
// out. Callers hold e.mu and pass the operation's single clock read as now:
// the envelope timestamp must match the instants written into state
// (StartTime, LastRewardClaim), because replay reconstructs those fields from
// the envelope. Persist sends block (backpressure — no event is lost);
// publish sends drop on full, downstream consumers can catch up from the
// event log.
func (e *Engine) emitLocked(evtType event.EventType, account uuid.UUID, now time.Time, payload any) {
	digest := e.stateDigest(account)
	seq := e.sequence
	prev := e.chain.tip()
	hash := e.chain.extend(seq, digest)

	envelope := &event.Envelope{
		Sequence:  seq,
		EventType: evtType,
		Account:   account,
		Timestamp: now,
		Payload:   payload,
		StateHash: hash,
		PrevHash:  prev,
	}
	e.sequence++

	output := Output{
		Envelope: envelope,
		Status: ContractStatus{
			Status: e.treasury.Status(),
			Paused: e.admin.Paused(),
		},
	}
	if pol := e.store.Get(account); pol != nil {
		snap := *pol
		output.Policy = &snap
	}

	if e.persistChan != nil {
		e.persistChan <- output
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.EngineSequence.Set(float64(e.sequence))
	}
}

// stateDigest builds canonical bytes over the treasury totals and the
// affected policy slot for the hash chain.
func (e *Engine) stateDigest(account uuid.UUID) []byte {
	st := e.treasury.Status()

	digest := make([]byte, 0, 96)
	digest = appendUint64LE(digest, st.PoolBalance)
	digest = appendUint64LE(digest, st.MinBalance)
	digest = appendUint64LE(digest, st.TotalPremiumsCollected)
	digest = appendUint64LE(digest, st.TotalClaimsPaid)
	digest = appendUint64LE(digest, st.TotalRewardsPaid)

	if pol := e.store.Get(account); pol != nil {
		digest = append(digest, pol.Account[:]...)
		digest = appendUint64LE(digest, pol.PremiumAmount)
		digest = appendUint64LE(digest, uint64(pol.StartTime.Unix()))
		digest = appendUint64LE(digest, uint64(pol.DurationYears))
		if pol.HasClaim {
			digest = append(digest, 1)
		} else {
			digest = append(digest, 0)
		}
		if pol.IsActive {
			digest = append(digest, 1)
		} else {
			digest = append(digest, 0)
		}
		digest = appendUint64LE(digest, uint64(pol.LastRewardClaim.Unix()))
		digest = appendUint64LE(digest, pol.TotalRewardsClaimed)
	}

	return digest
}

func appendUint64LE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		e.updateGauges()
	}
	e.log.Debug().Str("op", op).Msg("operation applied")
}

func (e *Engine) reject(op string, err error) {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	}
	e.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
}

func (e *Engine) updateGauges() {
	st := e.treasury.Status()
	e.metrics.PoolBalance.Set(float64(st.PoolBalance))
	e.metrics.MinBalance.Set(float64(st.MinBalance))
	e.metrics.PremiumsCollected.Set(float64(st.TotalPremiumsCollected))
	e.metrics.ClaimsPaid.Set(float64(st.TotalClaimsPaid))
	e.metrics.RewardsPaid.Set(float64(st.TotalRewardsPaid))
	e.metrics.ActivePolicies.Set(float64(e.store.ActiveCount()))
}

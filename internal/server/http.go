package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ParaLedger/internal/admin"
	"ParaLedger/internal/engine"
	"ParaLedger/internal/guard"
	"ParaLedger/internal/observability"
	"ParaLedger/internal/query"
	"ParaLedger/internal/treasury"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// accountHeader carries the caller's identity, established by the identity
// layer in front of this service.
const accountHeader = "X-Account-Id"

// Server exposes the operation surface over HTTP/JSON.
type Server struct {
	addr    string
	engine  *engine.Engine
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewServer(addr string, eng *engine.Engine, queries *query.Service, health *observability.HealthChecker, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		engine:  eng,
		queries: queries,
		health:  health,
		log:     log,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/policies", s.createPolicy)
		r.Post("/claims", s.fileClaim)
		r.Post("/rewards/claim", s.claimReward)

		r.Get("/policies/{account}", s.getPolicy)
		r.Get("/policies/{account}/max-claim", s.getMaxClaim)
		r.Get("/policies/{account}/reward", s.getReward)
		r.Get("/policies/{account}/active", s.getActive)
		r.Get("/status", s.getStatus)

		r.Post("/treasury/withdraw", s.withdrawFunds)
		r.Post("/treasury/min-balance", s.setMinBalance)

		r.Post("/admin/ownership/initiate", s.initiateOwnership)
		r.Post("/admin/ownership/claim", s.claimOwnership)
		r.Post("/admin/pause", s.pause)
		r.Post("/admin/unpause", s.unpause)

		if s.queries != nil {
			r.Get("/events", s.listEvents)
			r.Get("/policies/{account}/events", s.listAccountEvents)
			r.Get("/integrity", s.verifyIntegrity)
		}
	})

	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// Mutating handlers
// ============================================================================

type createPolicyRequest struct {
	Premium       uint64 `json:"premium"`
	DurationYears uint32 `json:"duration_years"`
	Deposited     uint64 `json:"deposited"`
}

func (s *Server) createPolicy(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req createPolicyRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.CreatePolicy(r.Context(), caller, req.Premium, req.DurationYears, req.Deposited); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"account":  caller,
		"sequence": s.engine.Sequence(),
	})
}

type claimRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) fileClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.FileClaim(r.Context(), caller, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account": caller,
		"amount":  req.Amount,
	})
}

func (s *Server) claimReward(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	amount, err := s.engine.ClaimReward(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account": caller,
		"amount":  amount,
	})
}

type withdrawRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) withdrawFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.WithdrawFunds(r.Context(), caller, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"amount": req.Amount})
}

type minBalanceRequest struct {
	MinBalance uint64 `json:"min_balance"`
}

func (s *Server) setMinBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req minBalanceRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.SetMinContractBalance(r.Context(), caller, req.MinBalance); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"min_balance": req.MinBalance})
}

type ownershipInitiateRequest struct {
	NewOwner uuid.UUID `json:"new_owner"`
}

func (s *Server) initiateOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req ownershipInitiateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.InitiateOwnershipTransfer(r.Context(), caller, req.NewOwner); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pending_owner": req.NewOwner})
}

func (s *Server) claimOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.engine.ClaimOwnership(r.Context(), caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"owner": caller})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.engine.Pause(r.Context(), caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.engine.Unpause(r.Context(), caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// ============================================================================
// Read views (in-memory engine state)
// ============================================================================

type policyView struct {
	Account             uuid.UUID `json:"account"`
	PremiumAmount       uint64    `json:"premium_amount"`
	StartTime           time.Time `json:"start_time"`
	DurationYears       uint32    `json:"duration_years"`
	ExpiresAt           time.Time `json:"expires_at"`
	HasClaim            bool      `json:"has_claim"`
	IsActive            bool      `json:"is_active"`
	LastRewardClaim     time.Time `json:"last_reward_claim"`
	TotalRewardsClaimed uint64    `json:"total_rewards_claimed"`
	Version             int64     `json:"version"`
}

func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountParam(w, r)
	if !ok {
		return
	}

	pol, found := s.engine.PolicyDetails(account)
	if !found {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "policy not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, policyView{
		Account:             pol.Account,
		PremiumAmount:       pol.PremiumAmount,
		StartTime:           pol.StartTime,
		DurationYears:       pol.DurationYears,
		ExpiresAt:           pol.ExpiresAt(),
		HasClaim:            pol.HasClaim,
		IsActive:            pol.IsActive,
		LastRewardClaim:     pol.LastRewardClaim,
		TotalRewardsClaimed: pol.TotalRewardsClaimed,
		Version:             pol.Version,
	})
}

func (s *Server) getMaxClaim(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"max_claim": s.engine.MaxClaimAmount(account),
	})
}

func (s *Server) getReward(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"reward":  s.engine.AvailableReward(account),
	})
}

func (s *Server) getActive(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"active":  s.engine.IsPolicyActive(account),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()
	hash := s.engine.StateHash()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"sequence":   s.engine.Sequence(),
		"state_hash": hex.EncodeToString(hash[:]),
	})
}

// ============================================================================
// Read views (Postgres projections)
// ============================================================================

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.queries.GetEvents(r.Context(), from, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) listAccountEvents(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountParam(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.queries.GetAccountEvents(r.Context(), account, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyChain(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(accountHeader)
	if raw == "" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "missing " + accountHeader + " header",
		})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "invalid " + accountHeader + " header",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) accountParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid account id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, requestBodyLimit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("write response failed")
	}
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, engine.ErrInsufficientPremium),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, admin.ErrInvalidAddress):
		status = http.StatusBadRequest

	case errors.Is(err, admin.ErrNotOwner),
		errors.Is(err, admin.ErrUnauthorizedOwnershipClaim):
		status = http.StatusForbidden

	case errors.Is(err, engine.ErrPolicyNotFound),
		errors.Is(err, query.ErrNotFound):
		status = http.StatusNotFound

	case errors.Is(err, engine.ErrPolicyAlreadyExists),
		errors.Is(err, engine.ErrClaimAlreadyFiled),
		errors.Is(err, engine.ErrExcessiveClaimAmount),
		errors.Is(err, engine.ErrPolicyNotMatured),
		errors.Is(err, treasury.ErrInsufficientBalance),
		errors.Is(err, treasury.ErrBelowMinimumBalance):
		status = http.StatusConflict

	case errors.Is(err, admin.ErrSystemPaused),
		errors.Is(err, guard.ErrReentrantCall):
		status = http.StatusServiceUnavailable

	case errors.Is(err, engine.ErrPaymentFailed):
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/otel"
	"github.com/yourorg/stable-yield-rebalancer/internal/rebalance"
	"github.com/yourorg/stable-yield-rebalancer/internal/transfer"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// pegFeed is the oracle feed guarding the trigger path against depegs.
const pegFeed = "usdc/usd"

// maxPegDeviationBps is the tolerated distance from 1.0000.
const maxPegDeviationBps int64 = 100

// apiResponse is the JSON envelope every endpoint answers with.
type apiResponse struct {
	StatusCode int         `json:"statusCode"`
	Status     string      `json:"status"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrIdempotency), errors.Is(err, model.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, model.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrPaused), errors.Is(err, model.ErrStaleData):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrExecution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respond(w http.ResponseWriter, endpoint string, data interface{}) {
	s.metrics.requestCounter.WithLabelValues(endpoint, "success").Inc()
	writeJSON(w, http.StatusOK, apiResponse{
		StatusCode: http.StatusOK,
		Status:     "success",
		Data:       data,
	})
}

func (s *Server) failWith(w http.ResponseWriter, endpoint string, err error) {
	status := statusFor(err)
	logrus.WithError(err).Warnf("Request to %s failed", endpoint)
	s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	writeJSON(w, status, apiResponse{
		StatusCode: status,
		Status:     "error",
		Error:      err.Error(),
	})
}

func (s *Server) observe(endpoint string, start time.Time) {
	s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// handleRebalanceTrigger evaluates an account's venues and rebalances
// when the best candidate clears the account's improvement bar.
func (s *Server) handleRebalanceTrigger(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rebalance"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rateLimit.Allow() {
		s.failWith(w, endpoint, fmt.Errorf("%w: trigger rate limit", model.ErrLimitExceeded))
		return
	}

	var req struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "rebalance.trigger")
	defer span.End()

	if err := s.checkPeg(ctx); err != nil {
		otel.RecordError(ctx, err)
		s.failWith(w, endpoint, err)
		return
	}

	outcome, eval, err := s.orchestrator.EvaluateAndRebalance(ctx, account)
	s.metrics.circuitState.Set(float64(s.breaker.GetState()))
	if err != nil {
		otel.RecordError(ctx, err)
		if outcome != nil && !outcome.Success {
			s.metrics.rebalancesTotal.WithLabelValues("failed").Inc()
		}
		s.failWith(w, endpoint, err)
		return
	}

	if eval.Acted {
		s.metrics.rebalancesTotal.WithLabelValues("success").Inc()
	} else {
		s.metrics.rebalancesTotal.WithLabelValues("skipped").Inc()
	}
	s.respond(w, endpoint, map[string]interface{}{
		"evaluation": eval,
		"outcome":    outcome,
	})
}

// checkPeg refuses to act while the stablecoin trades away from its peg
// or the oracle is stale. Skipped when no oracle is configured.
func (s *Server) checkPeg(ctx context.Context) error {
	if s.oracle == nil {
		return nil
	}
	reading, err := s.oracle.Latest(ctx, pegFeed)
	if err != nil {
		return err
	}
	deviation := reading.ValueBps - model.BpsScale
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > maxPegDeviationBps {
		return fmt.Errorf("%w: peg deviation %d bps on %s", model.ErrExecution, deviation, pegFeed)
	}
	return nil
}

type rebalanceParams struct {
	Account        string `json:"account"`
	FromVenue      string `json:"from_venue"`
	ToVenue        string `json:"to_venue"`
	Amount         string `json:"amount"`
	MaxSlippageBps int64  `json:"max_slippage_bps"`
	Deadline       int64  `json:"deadline,omitempty"`
}

func (p rebalanceParams) toParams() (rebalance.Params, error) {
	account, err := parseAddress(p.Account)
	if err != nil {
		return rebalance.Params{}, err
	}
	amount, err := parseBig(p.Amount)
	if err != nil {
		return rebalance.Params{}, err
	}
	return rebalance.Params{
		Account:        account,
		FromVenue:      p.FromVenue,
		ToVenue:        p.ToVenue,
		Amount:         amount,
		MaxSlippageBps: p.MaxSlippageBps,
		Deadline:       p.Deadline,
	}, nil
}

// handleRebalanceSubmit validates a rebalance instruction without
// executing it.
func (s *Server) handleRebalanceSubmit(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rebalance_submit"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire rebalanceParams
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}
	params, err := wire.toParams()
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}

	req, err := s.orchestrator.Submit(r.Context(), params)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}
	s.respond(w, endpoint, req)
}

// handleRebalanceExecute runs a previously validated request, or submits
// and runs one in a single call when full parameters are supplied.
func (s *Server) handleRebalanceExecute(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rebalance_execute"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire struct {
		RequestID string `json:"request_id"`
		rebalanceParams
	}
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "rebalance.execute")
	defer span.End()

	requestID := wire.RequestID
	if requestID == "" {
		params, err := wire.toParams()
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		req, err := s.orchestrator.Submit(ctx, params)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		requestID = req.ID
	}

	outcome, err := s.orchestrator.Execute(ctx, requestID)
	if err != nil {
		otel.RecordError(ctx, err)
		s.metrics.rebalancesTotal.WithLabelValues("failed").Inc()
		s.failWith(w, endpoint, err)
		return
	}
	s.metrics.rebalancesTotal.WithLabelValues("success").Inc()
	s.respond(w, endpoint, outcome)
}

// handleRebalanceBatch executes requests sequentially and aborts at the
// first failure.
func (s *Server) handleRebalanceBatch(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rebalance_batch"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RequestIDs []string `json:"request_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.RequestIDs) == 0 {
		s.failWith(w, endpoint, fmt.Errorf("%w: request_ids required", model.ErrValidation))
		return
	}

	outcomes, err := s.orchestrator.ExecuteBatch(r.Context(), req.RequestIDs)
	if err != nil {
		status := statusFor(err)
		s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
		writeJSON(w, status, apiResponse{
			StatusCode: status,
			Status:     "error",
			Error:      err.Error(),
			Data:       map[string]interface{}{"outcomes": outcomes},
		})
		return
	}
	s.respond(w, endpoint, map[string]interface{}{"outcomes": outcomes})
}

// handleRebalanceCancel withdraws a validated request before execution.
func (s *Server) handleRebalanceCancel(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rebalance_cancel"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		s.failWith(w, endpoint, fmt.Errorf("%w: request_id required", model.ErrValidation))
		return
	}

	outcome, err := s.orchestrator.Cancel(r.Context(), req.RequestID)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}
	s.respond(w, endpoint, outcome)
}

type strategyRequest struct {
	Account             string   `json:"account"`
	TargetAllocationBps int64    `json:"target_allocation_bps"`
	RiskToleranceBps    int64    `json:"risk_tolerance_bps"`
	MinImprovementBps   int64    `json:"min_improvement_bps"`
	AutoRebalance       bool     `json:"auto_rebalance"`
	CrossDomainEnabled  bool     `json:"cross_domain_enabled"`
	ApprovedVenues      []string `json:"approved_venues"`
	ApprovedDomains     []uint32 `json:"approved_domains"`
	MaxSlippageBps      int64    `json:"max_slippage_bps"`
}

// handleStrategy sets (PUT) or reads (GET) an account's policy.
func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	const endpoint = "strategy"
	defer s.observe(endpoint, time.Now())

	switch r.Method {
	case http.MethodGet:
		account, err := parseAddress(r.URL.Query().Get("account"))
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		strategy, err := s.strategies.Get(account)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		s.respond(w, endpoint, strategy)

	case http.MethodPut:
		var wire strategyRequest
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
			return
		}
		account, err := parseAddress(wire.Account)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}

		strategy := model.AccountStrategy{
			Account:             account,
			TargetAllocationBps: wire.TargetAllocationBps,
			RiskToleranceBps:    wire.RiskToleranceBps,
			MinImprovementBps:   wire.MinImprovementBps,
			AutoRebalance:       wire.AutoRebalance,
			CrossDomainEnabled:  wire.CrossDomainEnabled,
			MaxSlippageBps:      wire.MaxSlippageBps,
		}
		if len(wire.ApprovedVenues) > 0 {
			strategy.ApprovedVenues = make(map[string]bool, len(wire.ApprovedVenues))
			for _, name := range wire.ApprovedVenues {
				strategy.ApprovedVenues[name] = true
			}
		}
		if len(wire.ApprovedDomains) > 0 {
			strategy.ApprovedDomains = make(map[types.Domain]bool, len(wire.ApprovedDomains))
			for _, d := range wire.ApprovedDomains {
				strategy.ApprovedDomains[types.Domain(d)] = true
			}
		}

		if err := s.strategies.Set(strategy); err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		stored, err := s.strategies.Get(account)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		s.respond(w, endpoint, stored)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePosition seeds (POST) or reads (GET) an account's venue holdings.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	const endpoint = "position"
	defer s.observe(endpoint, time.Now())

	switch r.Method {
	case http.MethodGet:
		account, err := parseAddress(r.URL.Query().Get("account"))
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		holdings := s.orchestrator.Positions(account)
		out := make(map[string]string, len(holdings))
		for name, held := range holdings {
			out[name] = held.String()
		}
		s.respond(w, endpoint, out)

	case http.MethodPost:
		var req struct {
			Account string `json:"account"`
			Venue   string `json:"venue"`
			Amount  string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
			return
		}
		account, err := parseAddress(req.Account)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		amount, err := parseBig(req.Amount)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		if _, err := s.venues.Get(req.Venue); err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		s.orchestrator.SetPosition(account, req.Venue, amount)
		s.respond(w, endpoint, map[string]string{"venue": req.Venue, "amount": amount.String()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBalance credits (POST) or reads (GET) the transferable balance.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	const endpoint = "balance"
	defer s.observe(endpoint, time.Now())

	switch r.Method {
	case http.MethodGet:
		account, err := parseAddress(r.URL.Query().Get("account"))
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		s.respond(w, endpoint, map[string]string{"balance": s.balances.Balance(account).String()})

	case http.MethodPost:
		var req struct {
			Account string `json:"account"`
			Amount  string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
			return
		}
		account, err := parseAddress(req.Account)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		amount, err := parseBig(req.Amount)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
		s.balances.Credit(account, amount)
		s.respond(w, endpoint, map[string]string{"balance": s.balances.Balance(account).String()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type transferRequest struct {
	SourceDomain uint32 `json:"source_domain"`
	DestDomain   uint32 `json:"dest_domain"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount       string `json:"amount"`
}

func (t transferRequest) toParams() (transfer.Params, error) {
	sender, err := parseAddress(t.Sender)
	if err != nil {
		return transfer.Params{}, err
	}
	recipient, err := parseAddress(t.Recipient)
	if err != nil {
		return transfer.Params{}, err
	}
	amount, err := parseBig(t.Amount)
	if err != nil {
		return transfer.Params{}, err
	}
	return transfer.Params{
		SourceDomain: types.Domain(t.SourceDomain),
		DestDomain:   types.Domain(t.DestDomain),
		Sender:       sender,
		Recipient:    recipient,
		Amount:       amount,
	}, nil
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	s.initiateTransfer(w, r, false)
}

func (s *Server) handleTransferFast(w http.ResponseWriter, r *http.Request) {
	s.initiateTransfer(w, r, true)
}

func (s *Server) initiateTransfer(w http.ResponseWriter, r *http.Request, fast bool) {
	endpoint := "transfer"
	kind := "standard"
	if fast {
		endpoint = "transfer_fast"
		kind = "fast"
	}
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire transferRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}
	params, err := wire.toParams()
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}

	var record *model.TransferRecord
	if fast {
		record, err = s.transfers.InitiateFast(r.Context(), params)
	} else {
		record, err = s.transfers.Initiate(r.Context(), params)
	}
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}

	s.metrics.transfersTotal.WithLabelValues(kind).Inc()
	s.metrics.pendingTransfers.Set(float64(s.transfers.PendingCount()))
	s.respond(w, endpoint, record)
}

type completeRequest struct {
	Nonce        uint64 `json:"nonce"`
	CreatedAt    int64  `json:"created_at"`
	SourceDomain uint32 `json:"source_domain"`
	DestDomain   uint32 `json:"dest_domain"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount       string `json:"amount"`
	Attestation  string `json:"attestation"`
}

// handleTransferComplete finishes a transfer on its destination side.
func (s *Server) handleTransferComplete(w http.ResponseWriter, r *http.Request) {
	const endpoint = "transfer_complete"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire completeRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}
	sender, err := parseAddress(wire.Sender)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}
	recipient, err := parseAddress(wire.Recipient)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}
	amount, err := parseBig(wire.Amount)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}
	attestation, err := hexutil.Decode(wire.Attestation)
	if err != nil {
		s.failWith(w, endpoint, fmt.Errorf("%w: attestation must be hex", model.ErrValidation))
		return
	}

	msg := transfer.Message{
		Nonce:        wire.Nonce,
		CreatedAt:    wire.CreatedAt,
		SourceDomain: types.Domain(wire.SourceDomain),
		DestDomain:   types.Domain(wire.DestDomain),
		Sender:       sender,
		Recipient:    recipient,
		Amount:       amount,
	}

	record, err := s.transfers.Complete(r.Context(), msg, attestation)
	if err != nil {
		s.failWith(w, endpoint, err)
		return
	}

	s.publisher.PublishTransfer(*record)
	s.metrics.pendingTransfers.Set(float64(s.transfers.PendingCount()))
	s.respond(w, endpoint, record)
}

// handleAttestation returns the attestation for a transfer, optionally
// waiting for it to appear.
func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	const endpoint = "attestation"
	defer s.observe(endpoint, time.Now())

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.failWith(w, endpoint, fmt.Errorf("%w: id required", model.ErrValidation))
		return
	}

	var attestation []byte
	var ready bool
	if waitMs := parseIntDefault(r.URL.Query().Get("wait_ms"), 0); waitMs > 0 {
		var err error
		attestation, ready, err = s.transfers.WaitForAttestation(
			r.Context(), id, time.Duration(waitMs)*time.Millisecond)
		if err != nil {
			s.failWith(w, endpoint, err)
			return
		}
	} else {
		attestation, ready = s.transfers.Attestation(id)
	}

	data := map[string]interface{}{"transfer_id": id, "ready": ready}
	if ready {
		data["attestation"] = hexutil.Encode(attestation)
	}
	s.respond(w, endpoint, data)
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.metrics.circuitState.Set(float64(s.breaker.GetState()))
	s.metrics.pendingTransfers.Set(float64(s.transfers.PendingCount()))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "operational",
		"uptime":            time.Since(startTime).String(),
		"version":           "1.0.0",
		"paused":            s.pause.Paused(),
		"venues":            s.venues.Names(),
		"circuit_state":     s.breaker.GetState().String(),
		"pending_transfers": s.transfers.PendingCount(),
		"collected_fees":    s.transfers.CollectedFees().String(),
		"configuration": map[string]interface{}{
			"cooldown":         s.cfg.Cooldown.String(),
			"daily_cap":        s.cfg.DailyCap.String(),
			"max_slippage_bps": s.cfg.MaxSlippageBps,
			"fast_fee_bps":     s.cfg.DefaultFastFeeBps,
		},
	})
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// handleCircuit allows viewing and controlling the circuit breaker
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": s.breaker.GetState().String(),
	}

	if r.Method == http.MethodPost && r.URL.Query().Get("action") == "reset" {
		s.breaker.Reset()
		response["state"] = s.breaker.GetState().String()
		response["message"] = "Circuit breaker reset"
	}

	if lastGood := s.breaker.LastGood(); len(lastGood) > 0 {
		response["last_good_venue_count"] = len(lastGood)
		response["last_good_timestamp"] = time.Unix(lastGood[0].CollectedAt, 0).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

// handlePause flips the admin pause switch.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Query().Get("action") {
	case "pause":
		s.pause.Set(true)
		logrus.Warn("Service paused by operator")
	case "resume":
		s.pause.Set(false)
		logrus.Info("Service resumed by operator")
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be pause or resume"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": s.pause.Paused()})
}

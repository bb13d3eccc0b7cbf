// Package rebalance implements the rebalance request state machine and
// the evaluate-and-rebalance trigger that ties risk scoring, yield
// projection, and venue execution together.
package rebalance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/circuit"
	"github.com/yourorg/stable-yield-rebalancer/internal/events"
	"github.com/yourorg/stable-yield-rebalancer/internal/ledger"
	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/risk"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
	"github.com/yourorg/stable-yield-rebalancer/internal/venue"
	"github.com/yourorg/stable-yield-rebalancer/internal/yield"
)

// Status is the lifecycle state of a rebalance request.
type Status string

// Request lifecycle states. Validated requests move to Executing and end
// Completed or Failed; Cancelled is reachable only from Validated.
const (
	StatusValidated Status = "validated"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Request is one validated rebalance instruction.
type Request struct {
	ID             string         `json:"id"`
	Account        common.Address `json:"account"`
	FromVenue      string         `json:"from_venue"`
	ToVenue        string         `json:"to_venue"`
	Amount         *big.Int       `json:"amount"`
	MaxSlippageBps int64          `json:"max_slippage_bps"`
	Deadline       int64          `json:"deadline,omitempty"`
	Status         Status         `json:"status"`
	CreatedAt      int64          `json:"created_at"`
}

// Params are the caller-supplied inputs to a rebalance submission.
type Params struct {
	Account        common.Address
	FromVenue      string
	ToVenue        string
	Amount         *big.Int
	MaxSlippageBps int64
	Deadline       int64
}

// Limits is the operator-owned rebalance policy.
type Limits struct {
	Cooldown          time.Duration
	DailyCap          *big.Int
	MinAmount         *big.Int
	MaxAmount         *big.Int
	MaxSlippageBps    int64
	ResourceCost      *big.Int
	EvaluationHorizon time.Duration
}

// Pauser is the admin pause capability the orchestrator honors. A nil
// Pauser means never paused.
type Pauser interface {
	Paused() bool
}

// Options configures an Orchestrator.
type Options struct {
	Strategies *StrategyStore
	Venues     *venue.Registry
	Breaker    *circuit.Breaker
	Limits     Limits
	Clock      types.Clock
	Pauser     Pauser
	Publisher  events.Publisher
}

// Orchestrator owns rebalance requests end to end: validation, the
// cooldown and daily-cap ledgers, execution against venue adapters, and
// outcome bookkeeping.
type Orchestrator struct {
	strategies *StrategyStore
	venues     *venue.Registry
	breaker    *circuit.Breaker
	limits     Limits
	clock      types.Clock
	pauser     Pauser
	publisher  events.Publisher
	daily      *ledger.DailyCounter
	inflight   *ledger.InFlight

	mu        sync.Mutex
	requests  map[string]*Request
	outcomes  map[string]*model.RebalanceOutcome
	positions map[common.Address]map[string]*big.Int
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		strategies: opts.Strategies,
		venues:     opts.Venues,
		breaker:    opts.Breaker,
		limits:     opts.Limits,
		clock:      clock,
		pauser:     opts.Pauser,
		publisher:  publisher,
		daily:      ledger.NewDailyCounter(clock),
		inflight:   ledger.NewInFlight(),
		requests:   make(map[string]*Request),
		outcomes:   make(map[string]*model.RebalanceOutcome),
		positions:  make(map[common.Address]map[string]*big.Int),
	}
}

// SetPosition records an account's holding at a venue. Composition-time
// seeding and settlement both go through here.
func (o *Orchestrator) SetPosition(account common.Address, venueName string, amount *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.positions[account] == nil {
		o.positions[account] = make(map[string]*big.Int)
	}
	o.positions[account][venueName] = new(big.Int).Set(amount)
}

// Position returns an account's holding at one venue; zero if none.
func (o *Orchestrator) Position(account common.Address, venueName string) *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if held, ok := o.positions[account][venueName]; ok {
		return new(big.Int).Set(held)
	}
	return new(big.Int)
}

// Positions returns a copy of every holding an account has.
func (o *Orchestrator) Positions(account common.Address) map[string]*big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*big.Int, len(o.positions[account]))
	for name, held := range o.positions[account] {
		out[name] = new(big.Int).Set(held)
	}
	return out
}

// Submit validates a rebalance instruction and records it as a request.
// Validation rejects before any state is consumed; cooldown and the daily
// cap are only consumed at execution.
func (o *Orchestrator) Submit(ctx context.Context, p Params) (*Request, error) {
	if o.pauser != nil && o.pauser.Paused() {
		return nil, model.ErrPaused
	}

	strategy, err := o.strategies.Get(p.Account)
	if err != nil {
		return nil, err
	}

	from, to, err := o.resolveVenues(strategy, p.FromVenue, p.ToVenue)
	if err != nil {
		return nil, err
	}

	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", model.ErrValidation)
	}
	if o.limits.MinAmount != nil && p.Amount.Cmp(o.limits.MinAmount) < 0 {
		return nil, fmt.Errorf("%w: amount below minimum %s", model.ErrValidation, o.limits.MinAmount)
	}
	if o.limits.MaxAmount != nil && p.Amount.Cmp(o.limits.MaxAmount) > 0 {
		return nil, fmt.Errorf("%w: amount above maximum %s", model.ErrLimitExceeded, o.limits.MaxAmount)
	}
	if held := o.Position(p.Account, p.FromVenue); p.Amount.Cmp(held) > 0 {
		return nil, fmt.Errorf("%w: amount exceeds position %s at %s", model.ErrValidation, held, p.FromVenue)
	}

	slippage, err := o.effectiveSlippage(strategy, p.MaxSlippageBps)
	if err != nil {
		return nil, err
	}

	now := o.clock()
	if p.Deadline != 0 && p.Deadline <= now.Unix() {
		return nil, fmt.Errorf("%w: deadline already passed", model.ErrValidation)
	}
	if err := o.checkCooldown(strategy, now); err != nil {
		return nil, err
	}
	if o.limits.DailyCap != nil {
		used := o.daily.Total(p.Account, "rebalance")
		if new(big.Int).Add(used, p.Amount).Cmp(o.limits.DailyCap) > 0 {
			return nil, fmt.Errorf("%w: daily rebalance cap %s", model.ErrLimitExceeded, o.limits.DailyCap)
		}
	}

	req := &Request{
		ID:             uuid.NewString(),
		Account:        p.Account,
		FromVenue:      from.Name(),
		ToVenue:        to.Name(),
		Amount:         new(big.Int).Set(p.Amount),
		MaxSlippageBps: slippage,
		Deadline:       p.Deadline,
		Status:         StatusValidated,
		CreatedAt:      now.Unix(),
	}

	o.mu.Lock()
	o.requests[req.ID] = req
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"account":    req.Account.Hex(),
		"from":       req.FromVenue,
		"to":         req.ToVenue,
		"amount":     req.Amount.String(),
	}).Info("Rebalance request validated")

	return copyRequest(req), nil
}

func (o *Orchestrator) resolveVenues(strategy model.AccountStrategy, fromName, toName string) (venue.Adapter, venue.Adapter, error) {
	if fromName == toName {
		return nil, nil, fmt.Errorf("%w: source and destination venue are the same", model.ErrValidation)
	}
	from, err := o.venues.Get(fromName)
	if err != nil {
		return nil, nil, err
	}
	to, err := o.venues.Get(toName)
	if err != nil {
		return nil, nil, err
	}
	if len(strategy.ApprovedVenues) > 0 {
		if !strategy.VenueApproved(fromName) {
			return nil, nil, fmt.Errorf("%w: venue %s not approved", model.ErrValidation, fromName)
		}
		if !strategy.VenueApproved(toName) {
			return nil, nil, fmt.Errorf("%w: venue %s not approved", model.ErrValidation, toName)
		}
	}
	if from.Domain() != to.Domain() && !strategy.CrossDomainEnabled {
		return nil, nil, fmt.Errorf("%w: cross-domain rebalancing disabled for account", model.ErrValidation)
	}
	// Domain approval binds both legs of the move, same-domain included.
	if len(strategy.ApprovedDomains) > 0 {
		if !strategy.DomainApproved(from.Domain()) {
			return nil, nil, fmt.Errorf("%w: domain %d not approved", model.ErrValidation, from.Domain())
		}
		if !strategy.DomainApproved(to.Domain()) {
			return nil, nil, fmt.Errorf("%w: domain %d not approved", model.ErrValidation, to.Domain())
		}
	}
	return from, to, nil
}

func (o *Orchestrator) effectiveSlippage(strategy model.AccountStrategy, requested int64) (int64, error) {
	limit := o.limits.MaxSlippageBps
	if strategy.MaxSlippageBps > 0 && strategy.MaxSlippageBps < limit {
		limit = strategy.MaxSlippageBps
	}
	if requested == 0 {
		return limit, nil
	}
	if requested < 0 || requested > limit {
		return 0, fmt.Errorf("%w: slippage %d bps above limit %d bps", model.ErrValidation, requested, limit)
	}
	return requested, nil
}

func (o *Orchestrator) checkCooldown(strategy model.AccountStrategy, now time.Time) error {
	if strategy.LastRebalanceAt == 0 || o.limits.Cooldown <= 0 {
		return nil
	}
	elapsed := now.Unix() - strategy.LastRebalanceAt
	if elapsed < int64(o.limits.Cooldown.Seconds()) {
		return fmt.Errorf("%w: cooldown active for another %ds",
			model.ErrLimitExceeded, int64(o.limits.Cooldown.Seconds())-elapsed)
	}
	return nil
}

// Execute runs a validated request against the venue adapters. The
// cooldown stamp and daily cap are consumed at the attempt, before the
// venue legs run, so a failed execution still counts against both.
func (o *Orchestrator) Execute(ctx context.Context, requestID string) (*model.RebalanceOutcome, error) {
	if o.pauser != nil && o.pauser.Paused() {
		return nil, model.ErrPaused
	}
	if err := o.inflight.Enter(requestID); err != nil {
		return nil, err
	}
	defer o.inflight.Exit(requestID)

	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s", model.ErrNotFound, requestID)
	}
	switch req.Status {
	case StatusCancelled:
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s is cancelled", model.ErrValidation, requestID)
	case StatusCompleted, StatusFailed:
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s already executed", model.ErrIdempotency, requestID)
	}
	o.mu.Unlock()

	now := o.clock()
	if req.Deadline != 0 && now.Unix() > req.Deadline {
		return nil, fmt.Errorf("%w: deadline passed", model.ErrValidation)
	}

	strategy, err := o.strategies.Get(req.Account)
	if err != nil {
		return nil, err
	}
	if err := o.checkCooldown(strategy, now); err != nil {
		return nil, err
	}
	if err := o.daily.Add(req.Account, "rebalance", req.Amount, o.limits.DailyCap); err != nil {
		return nil, err
	}

	// The attempt consumes the cooldown whatever happens next.
	o.strategies.StampRebalance(req.Account, now.Unix())

	o.mu.Lock()
	req.Status = StatusExecuting
	o.mu.Unlock()

	from, err := o.venues.Get(req.FromVenue)
	if err != nil {
		return o.fail(req, now, err)
	}
	to, err := o.venues.Get(req.ToVenue)
	if err != nil {
		return o.fail(req, now, err)
	}

	if _, err := from.Withdraw(ctx, req.Account, req.Amount); err != nil {
		return o.fail(req, now, err)
	}
	txRef, err := to.Deposit(ctx, req.Account, req.Amount)
	if err != nil {
		// Best effort to put the withdrawn funds back.
		if _, redepositErr := from.Deposit(ctx, req.Account, req.Amount); redepositErr != nil {
			logrus.WithError(redepositErr).WithField("request_id", req.ID).
				Error("Redeposit after failed leg also failed; position needs manual review")
		}
		return o.fail(req, now, err)
	}

	o.mu.Lock()
	req.Status = StatusCompleted
	o.movePosition(req.Account, req.FromVenue, req.ToVenue, req.Amount)
	outcome := &model.RebalanceOutcome{
		RequestID:      req.ID,
		Account:        req.Account,
		Success:        true,
		AmountExecuted: new(big.Int).Set(req.Amount),
		ResourceCost:   copyOrZero(o.limits.ResourceCost),
		FeesPaid:       new(big.Int),
		TxRef:          txRef,
		CreatedAt:      now.Unix(),
	}
	o.outcomes[req.ID] = outcome
	o.mu.Unlock()

	o.publisher.PublishOutcome(*outcome)
	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"account":    req.Account.Hex(),
		"amount":     req.Amount.String(),
		"tx_ref":     txRef,
	}).Info("Rebalance executed")

	return copyOutcome(outcome), nil
}

func (o *Orchestrator) fail(req *Request, now time.Time, cause error) (*model.RebalanceOutcome, error) {
	o.mu.Lock()
	req.Status = StatusFailed
	outcome := &model.RebalanceOutcome{
		RequestID:      req.ID,
		Account:        req.Account,
		Success:        false,
		AmountExecuted: new(big.Int),
		ResourceCost:   copyOrZero(o.limits.ResourceCost),
		FeesPaid:       new(big.Int),
		Error:          cause.Error(),
		CreatedAt:      now.Unix(),
	}
	o.outcomes[req.ID] = outcome
	o.mu.Unlock()

	o.publisher.PublishOutcome(*outcome)
	logrus.WithError(cause).WithField("request_id", req.ID).Warn("Rebalance failed")

	return copyOutcome(outcome), fmt.Errorf("%w: %v", model.ErrExecution, cause)
}

// movePosition shifts an account holding between venues. Caller holds mu.
func (o *Orchestrator) movePosition(account common.Address, fromName, toName string, amount *big.Int) {
	holdings := o.positions[account]
	if holdings == nil {
		holdings = make(map[string]*big.Int)
		o.positions[account] = holdings
	}
	if held, ok := holdings[fromName]; ok {
		held.Sub(held, amount)
	}
	if held, ok := holdings[toName]; ok {
		held.Add(held, amount)
	} else {
		holdings[toName] = new(big.Int).Set(amount)
	}
}

// ExecuteBatch runs requests sequentially and aborts at the first error;
// requests after the failing one stay untouched. Outcomes for the
// processed prefix are returned either way.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, requestIDs []string) ([]*model.RebalanceOutcome, error) {
	outcomes := make([]*model.RebalanceOutcome, 0, len(requestIDs))
	for _, id := range requestIDs {
		outcome, err := o.Execute(ctx, id)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			return outcomes, fmt.Errorf("batch aborted at request %s: %w", id, err)
		}
	}
	return outcomes, nil
}

// Cancel withdraws a validated request before execution. Pure
// bookkeeping: no venue interaction, no cooldown or cap consumption.
func (o *Orchestrator) Cancel(ctx context.Context, requestID string) (*model.RebalanceOutcome, error) {
	if o.pauser != nil && o.pauser.Paused() {
		return nil, model.ErrPaused
	}
	if err := o.inflight.Enter(requestID); err != nil {
		return nil, err
	}
	defer o.inflight.Exit(requestID)

	o.mu.Lock()
	defer o.mu.Unlock()

	req, ok := o.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", model.ErrNotFound, requestID)
	}
	switch req.Status {
	case StatusCancelled:
		return nil, fmt.Errorf("%w: request %s already cancelled", model.ErrIdempotency, requestID)
	case StatusValidated:
	default:
		return nil, fmt.Errorf("%w: request %s is %s, not cancellable", model.ErrValidation, requestID, req.Status)
	}

	req.Status = StatusCancelled
	outcome := &model.RebalanceOutcome{
		RequestID:      req.ID,
		Account:        req.Account,
		AmountExecuted: new(big.Int),
		ResourceCost:   new(big.Int),
		FeesPaid:       new(big.Int),
		Cancelled:      true,
		CreatedAt:      o.clock().Unix(),
	}
	o.outcomes[req.ID] = outcome

	logrus.WithField("request_id", requestID).Info("Rebalance request cancelled")
	return copyOutcome(outcome), nil
}

// Request returns a copy of a recorded request.
func (o *Orchestrator) Request(requestID string) (*Request, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", model.ErrNotFound, requestID)
	}
	return copyRequest(req), nil
}

// Outcome returns a copy of a recorded outcome.
func (o *Orchestrator) Outcome(requestID string) (*model.RebalanceOutcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	outcome, ok := o.outcomes[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: outcome for request %s", model.ErrNotFound, requestID)
	}
	return copyOutcome(outcome), nil
}

// Evaluation reports what the trigger decided for one account.
type Evaluation struct {
	CurrentVenue    string                      `json:"current_venue"`
	CandidateVenue  string                      `json:"candidate_venue,omitempty"`
	CurrentAPYBps   int64                       `json:"current_apy_bps"`
	CandidateAPYBps int64                       `json:"candidate_apy_bps"`
	Comparison      model.OpportunityComparison `json:"comparison"`
	Acted           bool                        `json:"acted"`
	Reason          string                      `json:"reason,omitempty"`
}

// EvaluateAndRebalance is the trigger path: snapshot the approved venues,
// run them through the circuit breaker and risk filter, project yields
// over the evaluation horizon, and execute a rebalance when the best
// candidate clears the account's improvement bar. A non-nil Evaluation
// with Acted=false is the normal "nothing worth doing" answer.
func (o *Orchestrator) EvaluateAndRebalance(ctx context.Context, account common.Address) (*model.RebalanceOutcome, *Evaluation, error) {
	if o.pauser != nil && o.pauser.Paused() {
		return nil, nil, model.ErrPaused
	}

	strategy, err := o.strategies.Get(account)
	if err != nil {
		return nil, nil, err
	}

	currentVenue, holding, err := o.largestPosition(account)
	if err != nil {
		return nil, nil, err
	}
	currentAdapter, err := o.venues.Get(currentVenue)
	if err != nil {
		return nil, nil, err
	}

	candidates, snapshots, err := o.eligibleVenues(ctx, strategy, currentAdapter)
	if err != nil {
		return nil, nil, err
	}
	if err := o.breaker.Check(snapshots); err != nil {
		return nil, nil, err
	}

	currentAPY, err := currentAdapter.CurrentYieldBps(ctx)
	if err != nil {
		return nil, nil, err
	}

	eval := &Evaluation{
		CurrentVenue:  currentVenue,
		CurrentAPYBps: currentAPY,
		Comparison:    zeroComparison(),
	}

	best, bestAPY, bestRisk, err := o.bestCandidate(ctx, candidates, strategy, currentVenue)
	if err != nil {
		return nil, nil, err
	}
	if best == nil {
		eval.Reason = "no eligible candidate venue"
		return nil, eval, nil
	}
	eval.CandidateVenue = best.Name()
	eval.CandidateAPYBps = bestAPY

	horizon := int64(o.limits.EvaluationHorizon.Seconds())
	current := model.YieldProjection{Principal: holding, APYBps: currentAPY, DurationSec: horizon}
	candidate := model.YieldProjection{Principal: holding, APYBps: bestAPY, DurationSec: horizon}
	eval.Comparison = yield.CompareOpportunities(current, candidate, o.limits.ResourceCost)

	if !eval.Comparison.Worthwhile {
		eval.Reason = "candidate yield does not recoup rebalance cost"
		return nil, eval, nil
	}
	if bestAPY-currentAPY < strategy.MinImprovementBps {
		eval.Reason = fmt.Sprintf("improvement %d bps below account minimum %d bps",
			bestAPY-currentAPY, strategy.MinImprovementBps)
		return nil, eval, nil
	}

	amount := o.sizeAllocation(holding, bestRisk, strategy)
	if amount.Sign() == 0 || (o.limits.MinAmount != nil && amount.Cmp(o.limits.MinAmount) < 0) {
		eval.Reason = "risk-capped allocation below minimum rebalance size"
		return nil, eval, nil
	}

	req, err := o.Submit(ctx, Params{
		Account:        account,
		FromVenue:      currentVenue,
		ToVenue:        best.Name(),
		Amount:         amount,
		MaxSlippageBps: strategy.MaxSlippageBps,
	})
	if err != nil {
		return nil, eval, err
	}
	outcome, err := o.Execute(ctx, req.ID)
	if err != nil {
		return outcome, eval, err
	}
	eval.Acted = true
	return outcome, eval, nil
}

func (o *Orchestrator) largestPosition(account common.Address) (string, *big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var bestName string
	var bestHeld *big.Int
	for name, held := range o.positions[account] {
		if held.Sign() <= 0 {
			continue
		}
		if bestHeld == nil || held.Cmp(bestHeld) > 0 || (held.Cmp(bestHeld) == 0 && name < bestName) {
			bestName = name
			bestHeld = held
		}
	}
	if bestHeld == nil {
		return "", nil, fmt.Errorf("%w: account %s has no position", model.ErrNotFound, account.Hex())
	}
	return bestName, new(big.Int).Set(bestHeld), nil
}

// eligibleVenues snapshots every venue the strategy admits, current venue
// included so the breaker sees the whole picture.
func (o *Orchestrator) eligibleVenues(ctx context.Context, strategy model.AccountStrategy, current venue.Adapter) ([]venue.Adapter, []model.VenueMetrics, error) {
	var eligible []venue.Adapter
	var snapshots []model.VenueMetrics
	for _, adapter := range o.venues.All() {
		if len(strategy.ApprovedVenues) > 0 && !strategy.VenueApproved(adapter.Name()) {
			continue
		}
		if adapter.Domain() != current.Domain() && !strategy.CrossDomainEnabled {
			continue
		}
		if len(strategy.ApprovedDomains) > 0 && !strategy.DomainApproved(adapter.Domain()) {
			continue
		}
		m, err := adapter.Metrics(ctx)
		if err != nil {
			logrus.WithError(err).Warnf("Skipping venue %s: metrics unavailable", adapter.Name())
			continue
		}
		eligible = append(eligible, adapter)
		snapshots = append(snapshots, m)
	}
	if len(eligible) == 0 {
		return nil, nil, fmt.Errorf("%w: no eligible venues", model.ErrValidation)
	}
	return eligible, snapshots, nil
}

// bestCandidate picks the highest-APY venue that clears the account's
// risk tolerance, excluding the current venue.
func (o *Orchestrator) bestCandidate(ctx context.Context, candidates []venue.Adapter, strategy model.AccountStrategy, currentVenue string) (venue.Adapter, int64, model.VenueRisk, error) {
	var best venue.Adapter
	var bestAPY int64
	var bestRisk model.VenueRisk
	for _, adapter := range candidates {
		if adapter.Name() == currentVenue {
			continue
		}
		m, err := adapter.Metrics(ctx)
		if err != nil {
			continue
		}
		assessment := risk.Assess(m)
		if !risk.MeetsTolerance(assessment, strategy.RiskToleranceBps) {
			continue
		}
		apy, err := adapter.CurrentYieldBps(ctx)
		if err != nil {
			continue
		}
		if best == nil || apy > bestAPY {
			best = adapter
			bestAPY = apy
			bestRisk = assessment
		}
	}
	return best, bestAPY, bestRisk, nil
}

func (o *Orchestrator) sizeAllocation(holding *big.Int, assessment model.VenueRisk, strategy model.AccountStrategy) *big.Int {
	limitPct := risk.AllocationLimit(assessment.Composite, strategy.RiskToleranceBps, strategy.TargetAllocationBps)
	amount := new(big.Int).Mul(holding, big.NewInt(limitPct))
	amount.Div(amount, big.NewInt(model.BpsScale))
	if o.limits.MaxAmount != nil && amount.Cmp(o.limits.MaxAmount) > 0 {
		amount.Set(o.limits.MaxAmount)
	}
	return amount
}

func zeroComparison() model.OpportunityComparison {
	return model.OpportunityComparison{
		YieldDelta:    new(big.Int),
		AnnualBenefit: new(big.Int),
	}
}

func copyRequest(req *Request) *Request {
	out := *req
	out.Amount = new(big.Int).Set(req.Amount)
	return &out
}

func copyOutcome(outcome *model.RebalanceOutcome) *model.RebalanceOutcome {
	out := *outcome
	out.AmountExecuted = new(big.Int).Set(outcome.AmountExecuted)
	out.ResourceCost = new(big.Int).Set(outcome.ResourceCost)
	out.FeesPaid = new(big.Int).Set(outcome.FeesPaid)
	return &out
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

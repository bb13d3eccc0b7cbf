package venue

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// SimAdapter is an in-memory venue used for local runs and tests. All
// state is mutable through setters; deposits and withdrawals move TVL.
type SimAdapter struct {
	name   string
	domain types.Domain

	mu           sync.Mutex
	metrics      model.VenueMetrics
	yieldBps     int64
	maxDeposit   *big.Int
	failDeposit  bool
	failWithdraw bool
	txCounter    int
}

// NewSimAdapter creates a simulated venue with the given snapshot. The
// snapshot's venue name is overwritten with the adapter name.
func NewSimAdapter(name string, domain types.Domain, m model.VenueMetrics) *SimAdapter {
	m.Venue = name
	if m.TotalValueLocked == nil {
		m.TotalValueLocked = new(big.Int)
	}
	if m.MaxWithdrawable == nil {
		m.MaxWithdrawable = new(big.Int)
	}
	return &SimAdapter{
		name:       name,
		domain:     domain,
		metrics:    m,
		yieldBps:   m.HistoricalYieldBps,
		maxDeposit: new(big.Int).Lsh(big.NewInt(1), 62),
	}
}

// Name returns the registry identifier of the venue.
func (a *SimAdapter) Name() string { return a.name }

// Domain returns the transfer domain the venue settles on.
func (a *SimAdapter) Domain() types.Domain { return a.domain }

// Metrics returns a copy of the current snapshot.
func (a *SimAdapter) Metrics(ctx context.Context) (model.VenueMetrics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.metrics
	m.TotalValueLocked = new(big.Int).Set(a.metrics.TotalValueLocked)
	m.MaxWithdrawable = new(big.Int).Set(a.metrics.MaxWithdrawable)
	return m, nil
}

// CurrentYieldBps returns the configured supply APY.
func (a *SimAdapter) CurrentYieldBps(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.yieldBps, nil
}

// SetYieldBps updates the simulated supply APY.
func (a *SimAdapter) SetYieldBps(bps int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.yieldBps = bps
}

// SetMetrics replaces the simulated snapshot.
func (a *SimAdapter) SetMetrics(m model.VenueMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m.Venue = a.name
	a.metrics = m
}

// FailNextDeposit makes every subsequent deposit fail until cleared.
func (a *SimAdapter) FailNextDeposit(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failDeposit = fail
}

// FailNextWithdraw makes every subsequent withdrawal fail until cleared.
func (a *SimAdapter) FailNextWithdraw(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failWithdraw = fail
}

// Deposit adds the amount to the venue's TVL.
func (a *SimAdapter) Deposit(ctx context.Context, account common.Address, amount *big.Int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failDeposit {
		return "", fmt.Errorf("%w: venue %s rejected deposit", model.ErrExecution, a.name)
	}
	a.metrics.TotalValueLocked.Add(a.metrics.TotalValueLocked, amount)
	a.txCounter++
	return fmt.Sprintf("sim-%s-%d", a.name, a.txCounter), nil
}

// Withdraw removes the amount from the venue's TVL and withdrawable pool.
func (a *SimAdapter) Withdraw(ctx context.Context, account common.Address, amount *big.Int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWithdraw {
		return "", fmt.Errorf("%w: venue %s rejected withdrawal", model.ErrExecution, a.name)
	}
	if amount.Cmp(a.metrics.MaxWithdrawable) > 0 {
		return "", fmt.Errorf("%w: venue %s has insufficient liquidity", model.ErrExecution, a.name)
	}
	a.metrics.TotalValueLocked.Sub(a.metrics.TotalValueLocked, amount)
	a.metrics.MaxWithdrawable.Sub(a.metrics.MaxWithdrawable, amount)
	a.txCounter++
	return fmt.Sprintf("sim-%s-%d", a.name, a.txCounter), nil
}

// CanDeposit reports whether the simulated deposit cap admits the amount.
func (a *SimAdapter) CanDeposit(ctx context.Context, amount *big.Int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.failDeposit && amount.Cmp(a.maxDeposit) <= 0, nil
}

// CanWithdraw reports whether the withdrawable pool covers the amount.
func (a *SimAdapter) CanWithdraw(ctx context.Context, amount *big.Int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.failWithdraw && amount.Cmp(a.metrics.MaxWithdrawable) <= 0, nil
}

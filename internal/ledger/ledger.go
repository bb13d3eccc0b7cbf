// Package ledger holds the shared mutable state every operation races on:
// account balances and per-(account, scope, day) aggregate counters. All
// updates are atomic read-modify-write under the ledger's lock.
package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// Balances tracks stable-token balances per account.
type Balances struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

// NewBalances creates an empty balance ledger.
func NewBalances() *Balances {
	return &Balances{balances: make(map[common.Address]*big.Int)}
}

// Credit adds amount to an account.
func (b *Balances) Credit(account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.balances[account]
	if !ok {
		cur = new(big.Int)
		b.balances[account] = cur
	}
	cur.Add(cur, amount)
}

// Debit removes amount from an account, failing atomically when the
// balance cannot cover it.
func (b *Balances) Debit(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive debit amount", model.ErrValidation)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.balances[account]
	if !ok || cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient balance for %s", model.ErrValidation, account.Hex())
	}
	cur.Sub(cur, amount)
	return nil
}

// Balance returns a copy of an account's balance.
func (b *Balances) Balance(account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.balances[account]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

type dailyKey struct {
	account common.Address
	scope   string
	day     int64
}

// DailyCounter enforces per-(account, scope, calendar-day) aggregate caps.
// Scope is the venue or domain the aggregate is tracked against.
type DailyCounter struct {
	mu     sync.Mutex
	clock  types.Clock
	totals map[dailyKey]*big.Int
}

// NewDailyCounter creates a counter driven by the supplied clock.
func NewDailyCounter(clock types.Clock) *DailyCounter {
	if clock == nil {
		clock = time.Now
	}
	return &DailyCounter{clock: clock, totals: make(map[dailyKey]*big.Int)}
}

// Add atomically checks today's running total plus amount against limit and
// commits the addition only when it fits. Amounts are never truncated to
// fit a cap; the caller gets a limit error instead.
func (c *DailyCounter) Add(account common.Address, scope string, amount, limit *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: invalid aggregate amount", model.ErrValidation)
	}
	key := dailyKey{account: account, scope: scope, day: types.DayBucket(c.clock())}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.totals[key]
	if !ok {
		cur = new(big.Int)
		c.totals[key] = cur
	}
	next := new(big.Int).Add(cur, amount)
	if limit != nil && next.Cmp(limit) > 0 {
		return fmt.Errorf("%w: daily aggregate %s + %s exceeds cap %s",
			model.ErrLimitExceeded, cur.String(), amount.String(), limit.String())
	}
	cur.Set(next)
	return nil
}

// Total returns a copy of today's running total for (account, scope).
func (c *DailyCounter) Total(account common.Address, scope string) *big.Int {
	key := dailyKey{account: account, scope: scope, day: types.DayBucket(c.clock())}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.totals[key]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// InFlight is a single-flight guard keyed by state-machine instance id.
// Entering an id already in flight fails; the caller must not retry until
// the holder exits.
type InFlight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewInFlight creates an empty guard set.
func NewInFlight() *InFlight {
	return &InFlight{active: make(map[string]struct{})}
}

// Enter claims the id, failing if a transition on it is already running.
func (f *InFlight) Enter(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.active[id]; busy {
		return fmt.Errorf("%w: %s", model.ErrInFlight, id)
	}
	f.active[id] = struct{}{}
	return nil
}

// Exit releases the id.
func (f *InFlight) Exit(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, id)
}

// Package venue provides adapters for stablecoin lending venues and the
// registry the rebalance orchestrator selects them from.
package venue

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// Adapter is the interface every lending venue integration must implement.
// Amounts are native 6-decimal stable units; rates are basis points.
type Adapter interface {
	// Name returns the registry identifier of the venue.
	Name() string

	// Domain returns the transfer domain the venue settles on.
	Domain() types.Domain

	// Metrics retrieves a fresh point-in-time snapshot of the venue.
	Metrics(ctx context.Context) (model.VenueMetrics, error)

	// CurrentYieldBps retrieves the current supply APY.
	CurrentYieldBps(ctx context.Context) (int64, error)

	// Deposit places principal with the venue and returns a transaction
	// reference.
	Deposit(ctx context.Context, account common.Address, amount *big.Int) (string, error)

	// Withdraw pulls principal from the venue and returns a transaction
	// reference.
	Withdraw(ctx context.Context, account common.Address, amount *big.Int) (string, error)

	// CanDeposit reports whether the venue accepts a deposit of this size.
	CanDeposit(ctx context.Context, amount *big.Int) (bool, error)

	// CanWithdraw reports whether the venue can service a withdrawal of
	// this size right now.
	CanWithdraw(ctx context.Context, amount *big.Int) (bool, error)
}

// Registry is the identifier → adapter table. Registration happens at
// composition time; the core only reads.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get looks up an adapter, failing explicitly for unknown venues.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: venue %s", model.ErrNotFound, name)
	}
	return a, nil
}

// Names returns the registered venue identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns every registered adapter in name order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		out = append(out, r.adapters[name])
	}
	return out
}

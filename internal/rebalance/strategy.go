package rebalance

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// StrategyStore holds per-account rebalancing policies. Entries are
// created on first set, overwritten in place, never deleted. The cooldown
// stamp survives strategy updates.
type StrategyStore struct {
	mu         sync.RWMutex
	strategies map[common.Address]model.AccountStrategy
}

// NewStrategyStore creates an empty strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{strategies: make(map[common.Address]model.AccountStrategy)}
}

// Set validates and stores an account's strategy. Basis-point fields are
// clamped on the way in; the last-rebalance stamp of an existing entry is
// preserved.
func (s *StrategyStore) Set(strategy model.AccountStrategy) error {
	var zero common.Address
	if strategy.Account == zero {
		return fmt.Errorf("%w: zero account", model.ErrValidation)
	}

	strategy.TargetAllocationBps = model.ClampBps(strategy.TargetAllocationBps)
	strategy.RiskToleranceBps = model.ClampBps(strategy.RiskToleranceBps)
	strategy.MinImprovementBps = model.ClampBps(strategy.MinImprovementBps)
	strategy.MaxSlippageBps = model.ClampBps(strategy.MaxSlippageBps)
	strategy.ApprovedVenues = copyVenueSet(strategy.ApprovedVenues)
	strategy.ApprovedDomains = copyDomainSet(strategy.ApprovedDomains)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.strategies[strategy.Account]; ok {
		strategy.LastRebalanceAt = existing.LastRebalanceAt
	}
	s.strategies[strategy.Account] = strategy
	return nil
}

// Get returns the strategy for an account.
func (s *StrategyStore) Get(account common.Address) (model.AccountStrategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[account]
	if !ok {
		return model.AccountStrategy{}, fmt.Errorf("%w: no strategy for %s", model.ErrNotFound, account.Hex())
	}
	return strategy, nil
}

// StampRebalance records the time of the latest execution attempt. The
// stamp moves on every attempt, successful or not.
func (s *StrategyStore) StampRebalance(account common.Address, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	strategy, ok := s.strategies[account]
	if !ok {
		return
	}
	strategy.LastRebalanceAt = ts
	s.strategies[account] = strategy
}

func copyVenueSet(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyDomainSet(in map[types.Domain]bool) map[types.Domain]bool {
	if in == nil {
		return nil
	}
	out := make(map[types.Domain]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

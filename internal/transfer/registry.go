package transfer

import (
	"fmt"
	"sync"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// Registry holds the admin-owned domain table. The core only reads it;
// Register is the admin capability consumed at composition time.
type Registry struct {
	mu      sync.RWMutex
	domains map[types.Domain]model.DomainInfo
	byChain map[types.ChainID]types.Domain
}

// NewRegistry creates an empty domain registry.
func NewRegistry() *Registry {
	return &Registry{
		domains: make(map[types.Domain]model.DomainInfo),
		byChain: make(map[types.ChainID]types.Domain),
	}
}

// Register adds or replaces a domain entry and its chain binding.
func (r *Registry) Register(info model.DomainInfo) error {
	if info.MinTransfer == nil || info.MaxTransfer == nil {
		return fmt.Errorf("%w: domain %d missing transfer bounds", model.ErrValidation, info.Domain)
	}
	if info.MinTransfer.Cmp(info.MaxTransfer) > 0 {
		return fmt.Errorf("%w: domain %d min above max", model.ErrValidation, info.Domain)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.domains[info.Domain]; ok {
		delete(r.byChain, old.ChainID)
	}
	r.domains[info.Domain] = info
	r.byChain[info.ChainID] = info.Domain
	return nil
}

// Domain looks up a domain entry, failing explicitly for unregistered
// values.
func (r *Registry) Domain(d types.Domain) (model.DomainInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.domains[d]
	if !ok {
		return model.DomainInfo{}, fmt.Errorf("%w: domain %d", model.ErrNotFound, d)
	}
	return info, nil
}

// DomainByChain resolves the domain bound to a chain identifier.
func (r *Registry) DomainByChain(chain types.ChainID) (model.DomainInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byChain[chain]
	if !ok {
		return model.DomainInfo{}, fmt.Errorf("%w: chain %d", model.ErrNotFound, chain)
	}
	return r.domains[d], nil
}

// ChainOf resolves the chain a domain settles on.
func (r *Registry) ChainOf(d types.Domain) (types.ChainID, error) {
	info, err := r.Domain(d)
	if err != nil {
		return 0, err
	}
	return info.ChainID, nil
}

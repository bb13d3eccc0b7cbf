package transfer

import (
	"sync"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

type pairKey struct {
	src, dst types.Domain
}

// FeeSchedule maps ordered domain pairs to fast-transfer fee rates.
// Unset pairs fall back to the default rate; every rate is capped at the
// global maximum regardless of what was configured.
type FeeSchedule struct {
	mu         sync.RWMutex
	defaultBps int64
	maxBps     int64
	pairs      map[pairKey]int64
}

// NewFeeSchedule creates a schedule with the given default and cap.
func NewFeeSchedule(defaultBps, maxBps int64) *FeeSchedule {
	return &FeeSchedule{
		defaultBps: defaultBps,
		maxBps:     maxBps,
		pairs:      make(map[pairKey]int64),
	}
}

// Set configures the rate for one ordered domain pair.
func (f *FeeSchedule) Set(src, dst types.Domain, bps int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[pairKey{src: src, dst: dst}] = model.ClampBps(bps)
}

// FeeBps returns the effective rate for an ordered pair, always capped.
func (f *FeeSchedule) FeeBps(src, dst types.Domain) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bps, ok := f.pairs[pairKey{src: src, dst: dst}]
	if !ok {
		bps = f.defaultBps
	}
	if bps > f.maxBps {
		bps = f.maxBps
	}
	if bps < 0 {
		bps = 0
	}
	return bps
}

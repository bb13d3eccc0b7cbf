// Package circuit guards the rebalance evaluation path against abnormal
// venue data: implausible yields, drastic TVL swings, or too few venues
// reporting. An open breaker makes opportunities unavailable rather than
// acting on bad data.
package circuit

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, evaluation blocked
	StateHalfOpen              // Testing if venue data has recovered
)

// String returns the lowercase state name for logs and status payloads.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Thresholds defines the limits that will trip the breaker.
type Thresholds struct {
	// MaxAPYBps is the highest supply APY considered plausible.
	MaxAPYBps int64 `json:"max_apy_bps"`

	// MaxTVLChangeBps is the largest tolerated swing in aggregate TVL
	// between consecutive checks, in basis points of the previous value.
	MaxTVLChangeBps int64 `json:"max_tvl_change_bps"`

	// MinVenueCount is the minimum number of venues that must report.
	MinVenueCount int `json:"min_venue_count"`
}

// Breaker implements the circuit breaker pattern over venue snapshots.
type Breaker struct {
	thresholds Thresholds
	resetDelay time.Duration
	clock      types.Clock

	mu sync.RWMutex

	state        State
	lastTrip     time.Time
	successCount int

	// Number of clean checks required to close from half-open.
	successThreshold int

	// Last snapshot batch that passed all checks.
	lastGood    []model.VenueMetrics
	lastGoodTVL *big.Int
}

// New creates a Breaker with the provided thresholds.
func New(t Thresholds, clock types.Clock) *Breaker {
	if clock == nil {
		clock = time.Now
	}
	return &Breaker{
		thresholds:       t,
		resetDelay:       5 * time.Minute,
		clock:            clock,
		state:            StateClosed,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the breaker.
func (b *Breaker) WithResetDelay(delay time.Duration) *Breaker {
	b.resetDelay = delay
	return b
}

// WithSuccessThreshold sets the number of clean checks needed to close
// the circuit from half-open.
func (b *Breaker) WithSuccessThreshold(threshold int) *Breaker {
	b.successThreshold = threshold
	return b
}

// Check evaluates a batch of venue snapshots against the thresholds. If
// the circuit is open it blocks; if the batch violates a threshold it
// trips the circuit. A nil error means evaluation may proceed.
func (b *Breaker) Check(snapshots []model.VenueMetrics) error {
	b.mu.RLock()
	state := b.state
	lastTrip := b.lastTrip
	b.mu.RUnlock()

	if state == StateOpen {
		if b.clock().Sub(lastTrip) > b.resetDelay {
			b.transitionToHalfOpen()
		} else {
			return fmt.Errorf("%w: circuit open, venue data protection engaged", model.ErrExecution)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(snapshots) == 0 {
		return fmt.Errorf("%w: no venue snapshots provided", model.ErrValidation)
	}

	if len(snapshots) < b.thresholds.MinVenueCount {
		reason := fmt.Sprintf("insufficient venue count: got %d, need %d",
			len(snapshots), b.thresholds.MinVenueCount)
		b.trip(reason)
		return fmt.Errorf("%w: %s", model.ErrExecution, reason)
	}

	for _, m := range snapshots {
		if m.HistoricalYieldBps > b.thresholds.MaxAPYBps {
			reason := fmt.Sprintf("venue %s APY %d bps exceeds maximum %d bps",
				m.Venue, m.HistoricalYieldBps, b.thresholds.MaxAPYBps)
			b.trip(reason)
			return fmt.Errorf("%w: %s", model.ErrExecution, reason)
		}
	}

	currentTVL := totalTVL(snapshots)
	if b.lastGoodTVL != nil && b.lastGoodTVL.Sign() > 0 {
		change := tvlChangeBps(b.lastGoodTVL, currentTVL)
		if change > b.thresholds.MaxTVLChangeBps {
			reason := fmt.Sprintf("aggregate TVL swung %d bps (threshold %d bps)",
				change, b.thresholds.MaxTVLChangeBps)
			b.trip(reason)
			return fmt.Errorf("%w: %s", model.ErrExecution, reason)
		}
	}

	logrus.Debug("Circuit breaker checks passed")

	b.lastGood = copySnapshots(snapshots)
	b.lastGoodTVL = currentTVL

	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.successCount = 0
			logrus.Info("Circuit breaker closed: venue data has recovered")
		}
	}
	return nil
}

// GetState returns the current state of the circuit breaker.
func (b *Breaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forcibly resets the circuit breaker to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGood returns the most recent snapshot batch that passed every
// check, for read-only fallback while the circuit is open.
func (b *Breaker) LastGood() []model.VenueMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.lastGood) == 0 {
		return nil
	}
	return copySnapshots(b.lastGood)
}

func (b *Breaker) transitionToHalfOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		b.state = StateHalfOpen
		b.successCount = 0
		logrus.Info("Circuit breaker half-open: testing venue data recovery")
	}
}

func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.lastTrip = b.clock()
	logrus.Warnf("Circuit breaker tripped: %s", reason)
}

func totalTVL(snapshots []model.VenueMetrics) *big.Int {
	total := new(big.Int)
	for _, m := range snapshots {
		if m.TotalValueLocked != nil {
			total.Add(total, m.TotalValueLocked)
		}
	}
	return total
}

// tvlChangeBps returns |current-last| relative to last, in basis points.
func tvlChangeBps(last, current *big.Int) int64 {
	diff := new(big.Int).Sub(current, last)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(model.BpsScale))
	diff.Div(diff, last)
	if !diff.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return diff.Int64()
}

func copySnapshots(in []model.VenueMetrics) []model.VenueMetrics {
	out := make([]model.VenueMetrics, len(in))
	copy(out, in)
	for i := range out {
		if in[i].TotalValueLocked != nil {
			out[i].TotalValueLocked = new(big.Int).Set(in[i].TotalValueLocked)
		}
		if in[i].MaxWithdrawable != nil {
			out[i].MaxWithdrawable = new(big.Int).Set(in[i].MaxWithdrawable)
		}
	}
	return out
}

package circuit

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

func testThresholds() Thresholds {
	return Thresholds{
		MaxAPYBps:       10000, // 100% max APY
		MaxTVLChangeBps: 3000,  // 30% max TVL swing
		MinVenueCount:   2,
	}
}

func snapshot(venue string, apyBps, tvl int64) model.VenueMetrics {
	return model.VenueMetrics{
		Venue:              venue,
		HistoricalYieldBps: apyBps,
		TotalValueLocked:   big.NewInt(tvl),
		MaxWithdrawable:    big.NewInt(tvl / 5),
		CollectedAt:        1_700_000_000,
	}
}

func TestBreaker_ValidSnapshotsPass(t *testing.T) {
	cb := New(testThresholds(), nil)
	assert.Equal(t, StateClosed, cb.GetState())

	err := cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreaker_APYThreshold(t *testing.T) {
	cb := New(testThresholds(), nil)

	err := cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("degen-farm", 25000, 2_000_000_000),
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestBreaker_TVLSwing(t *testing.T) {
	cb := New(testThresholds(), nil)

	err := cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	require.NoError(t, err)

	// Aggregate drops 60%, well past the 30% threshold.
	err = cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 400_000_000),
		snapshot("compound-v3", 450, 800_000_000),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TVL swung")
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreaker_InsufficientVenues(t *testing.T) {
	cb := New(testThresholds(), nil)

	err := cb.Check([]model.VenueMetrics{snapshot("aave-v3", 400, 1_000_000_000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient venue count")
}

func TestBreaker_EmptySnapshots(t *testing.T) {
	cb := New(testThresholds(), nil)
	err := cb.Check(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no venue snapshots")
}

func TestBreaker_RecoveryThroughHalfOpen(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	cb := New(testThresholds(), clock).
		WithResetDelay(time.Minute).
		WithSuccessThreshold(1)

	err := cb.Check([]model.VenueMetrics{
		snapshot("degen-farm", 25000, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())

	// Still inside the reset delay: blocked.
	err = cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")

	// Past the reset delay: half-open, then closed on a clean check.
	now = now.Add(2 * time.Minute)
	err = cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreaker_ManualReset(t *testing.T) {
	cb := New(testThresholds(), nil)

	err := cb.Check([]model.VenueMetrics{
		snapshot("degen-farm", 25000, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())

	err = cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	assert.NoError(t, err)
}

func TestBreaker_LastGood(t *testing.T) {
	cb := New(testThresholds(), nil)
	assert.Nil(t, cb.LastGood())

	err := cb.Check([]model.VenueMetrics{
		snapshot("aave-v3", 400, 1_000_000_000),
		snapshot("compound-v3", 450, 2_000_000_000),
	})
	require.NoError(t, err)

	lastGood := cb.LastGood()
	require.Len(t, lastGood, 2)

	// The returned copy must not alias internal state.
	lastGood[0].TotalValueLocked.SetInt64(0)
	assert.Equal(t, int64(1_000_000_000), cb.LastGood()[0].TotalValueLocked.Int64())
}

package ledger

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

var acct = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestBalances_CreditDebit(t *testing.T) {
	b := NewBalances()
	b.Credit(acct, big.NewInt(1000))
	require.NoError(t, b.Debit(acct, big.NewInt(400)))
	assert.Equal(t, int64(600), b.Balance(acct).Int64())
}

func TestBalances_InsufficientDebitLeavesStateUntouched(t *testing.T) {
	b := NewBalances()
	b.Credit(acct, big.NewInt(100))
	err := b.Debit(acct, big.NewInt(101))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Equal(t, int64(100), b.Balance(acct).Int64())
}

func TestDailyCounter_CapEnforced(t *testing.T) {
	c := NewDailyCounter(func() time.Time { return time.Unix(1_700_000_000, 0) })
	limit := big.NewInt(1000)

	require.NoError(t, c.Add(acct, "domain-1", big.NewInt(600), limit))
	require.NoError(t, c.Add(acct, "domain-1", big.NewInt(400), limit))

	err := c.Add(acct, "domain-1", big.NewInt(1), limit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLimitExceeded))
	// Rejected additions must not count.
	assert.Equal(t, int64(1000), c.Total(acct, "domain-1").Int64())
}

func TestDailyCounter_BucketRollsOverAtMidnight(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewDailyCounter(func() time.Time { return now })
	limit := big.NewInt(1000)

	require.NoError(t, c.Add(acct, "domain-1", big.NewInt(1000), limit))
	require.Error(t, c.Add(acct, "domain-1", big.NewInt(1), limit))

	now = now.Add(24 * time.Hour)
	require.NoError(t, c.Add(acct, "domain-1", big.NewInt(1000), limit))
}

func TestDailyCounter_ScopesIndependent(t *testing.T) {
	c := NewDailyCounter(func() time.Time { return time.Unix(1_700_000_000, 0) })
	limit := big.NewInt(500)
	require.NoError(t, c.Add(acct, "domain-1", big.NewInt(500), limit))
	require.NoError(t, c.Add(acct, "domain-2", big.NewInt(500), limit))
}

func TestDailyCounter_ConcurrentAddsNeverLoseUpdates(t *testing.T) {
	c := NewDailyCounter(func() time.Time { return time.Unix(1_700_000_000, 0) })
	limit := big.NewInt(10_000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Add(acct, "venue", big.NewInt(100), limit)
		}()
	}
	wg.Wait()

	// Exactly the cap: 100 attempts of 100 against a 10k cap all fit.
	assert.Equal(t, int64(10_000), c.Total(acct, "venue").Int64())
}

func TestInFlight_RejectsReentry(t *testing.T) {
	f := NewInFlight()
	require.NoError(t, f.Enter("transfer-1"))

	err := f.Enter("transfer-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInFlight))

	f.Exit("transfer-1")
	require.NoError(t, f.Enter("transfer-1"))
}

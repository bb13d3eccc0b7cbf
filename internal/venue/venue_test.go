package venue

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

func simMetrics() model.VenueMetrics {
	return model.VenueMetrics{
		TotalValueLocked:   big.NewInt(500_000_000_000),
		UtilizationBps:     7500,
		AgeDays:            400,
		MaxWithdrawable:    big.NewInt(100_000_000_000),
		HistoricalYieldBps: 450,
		Audited:            true,
		AuditQualityBps:    1000,
	}
}

func TestRegistry_GetAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(NewSimAdapter("aave-v3", types.DomainEthereum, simMetrics()))
	r.Register(NewSimAdapter("compound-v3", types.DomainBase, simMetrics()))

	a, err := r.Get("aave-v3")
	require.NoError(t, err)
	assert.Equal(t, "aave-v3", a.Name())
	assert.Equal(t, types.DomainEthereum, a.Domain())

	_, err = r.Get("unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	assert.Equal(t, []string{"aave-v3", "compound-v3"}, r.Names())
	assert.Len(t, r.All(), 2)
}

func TestSimAdapter_DepositAndWithdrawMoveTVL(t *testing.T) {
	a := NewSimAdapter("aave-v3", types.DomainEthereum, simMetrics())
	account := common.HexToAddress("0xa1")

	ref, err := a.Deposit(context.Background(), account, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	m, err := a.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500_001_000_000), m.TotalValueLocked.Int64())

	_, err = a.Withdraw(context.Background(), account, big.NewInt(2_000_000))
	require.NoError(t, err)

	m, err = a.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(499_999_000_000), m.TotalValueLocked.Int64())
	assert.Equal(t, int64(99_998_000_000), m.MaxWithdrawable.Int64())
}

func TestSimAdapter_WithdrawBeyondLiquidityFails(t *testing.T) {
	a := NewSimAdapter("aave-v3", types.DomainEthereum, simMetrics())

	ok, err := a.CanWithdraw(context.Background(), big.NewInt(100_000_000_001))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Withdraw(context.Background(), common.HexToAddress("0xa1"), big.NewInt(100_000_000_001))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExecution))
}

func TestSimAdapter_FailureInjection(t *testing.T) {
	a := NewSimAdapter("aave-v3", types.DomainEthereum, simMetrics())
	a.FailNextDeposit(true)

	_, err := a.Deposit(context.Background(), common.HexToAddress("0xa1"), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExecution))

	a.FailNextDeposit(false)
	_, err = a.Deposit(context.Background(), common.HexToAddress("0xa1"), big.NewInt(1))
	require.NoError(t, err)
}

func TestHTTPAdapter_MetricsAndYield(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/metrics":
			w.Write([]byte(`{
				"tvl": "500000000000",
				"utilization_bps": 7500,
				"age_days": 400,
				"max_withdrawable": "100000000000",
				"historical_yield_bps": 450,
				"audited": true,
				"audit_quality_bps": 12000,
				"collected_at": 1700000000
			}`))
		case "/v1/yield":
			w.Write([]byte(`{"apy_bps": 425}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewHTTPAdapter("aave-v3", types.DomainEthereum, srv.URL, "test-key", time.Second)

	m, err := a.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aave-v3", m.Venue)
	assert.Equal(t, "500000000000", m.TotalValueLocked.String())
	assert.Equal(t, int64(7500), m.UtilizationBps)
	// Out-of-range bps fields are clamped on ingest.
	assert.Equal(t, int64(10000), m.AuditQualityBps)

	apy, err := a.CurrentYieldBps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(425), apy)
}

func TestHTTPAdapter_DepositReturnsTxRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/deposit", r.URL.Path)
		require.Equal(t, "POST", r.Method)
		w.Write([]byte(`{"tx_ref": "0xabc123"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("aave-v3", types.DomainEthereum, srv.URL, "", time.Second)
	ref, err := a.Deposit(context.Background(), common.HexToAddress("0xa1"), big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", ref)
}

func TestHTTPAdapter_ExecuteErrorIsExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("aave-v3", types.DomainEthereum, srv.URL, "", time.Second)
	_, err := a.Withdraw(context.Background(), common.HexToAddress("0xa1"), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExecution))
}

func TestHTTPAdapter_Limits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/limits", r.URL.Path)
		w.Write([]byte(`{"max_deposit": "1000000000", "max_withdraw": "500000000"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("aave-v3", types.DomainEthereum, srv.URL, "", time.Second)

	ok, err := a.CanDeposit(context.Background(), big.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanDeposit(context.Background(), big.NewInt(1_000_000_001))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanWithdraw(context.Background(), big.NewInt(500_000_001))
	require.NoError(t, err)
	assert.False(t, ok)
}

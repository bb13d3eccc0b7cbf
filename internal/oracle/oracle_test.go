package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

func TestLatest_FreshReading(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/feeds/usdc/usd/latest", r.URL.Path)
		w.Write([]byte(`{"feed_id": "usdc/usd", "value_bps": 10001, "updated_at": 1699999900}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 15*time.Minute, func() time.Time { return now })
	reading, err := c.Latest(context.Background(), "usdc/usd")
	require.NoError(t, err)
	assert.Equal(t, int64(10001), reading.ValueBps)
}

func TestLatest_StaleReadingRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One hour old.
		w.Write([]byte(`{"value_bps": 10001, "updated_at": 1699996400}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 15*time.Minute, func() time.Time { return now })
	_, err := c.Latest(context.Background(), "usdc/usd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStaleData))
}

func TestLatest_UnknownFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 15*time.Minute, nil)
	_, err := c.Latest(context.Background(), "nope/usd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

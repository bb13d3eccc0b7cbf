package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/config"
	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

const (
	testAccount   = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
)

// doJSON drives a handler directly and decodes the response envelope.
func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)

	var resp apiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func decodeData(t *testing.T, resp apiResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// TestServerEndpoints exercises the HTTP surface end to end against the
// simulated development venues. Metrics registration is global, so the
// server is built once and the subtests run against it in order.
func TestServerEndpoints(t *testing.T) {
	t.Setenv("ATTESTATION_DELAY", "1ms")
	t.Setenv("FAST_SETTLE_DELAY", "1ms")
	s := NewServer(config.Load())

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("balance credit and read", func(t *testing.T) {
		code, resp := doJSON(t, s.handleBalance, http.MethodPost, "/balance", map[string]string{
			"account": testAccount,
			"amount":  "5000000000",
		})
		require.Equal(t, http.StatusOK, code)

		var data map[string]string
		decodeData(t, resp, &data)
		assert.Equal(t, "5000000000", data["balance"])
	})

	t.Run("invalid address rejected", func(t *testing.T) {
		code, resp := doJSON(t, s.handleBalance, http.MethodPost, "/balance", map[string]string{
			"account": "not-an-address",
			"amount":  "1",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "error", resp.Status)
	})

	t.Run("strategy set and read back", func(t *testing.T) {
		code, resp := doJSON(t, s.handleStrategy, http.MethodPut, "/strategy", strategyRequest{
			Account:             testAccount,
			TargetAllocationBps: 10000,
			RiskToleranceBps:    5000,
			MinImprovementBps:   40,
			AutoRebalance:       true,
			MaxSlippageBps:      100,
		})
		require.Equal(t, http.StatusOK, code)

		var stored model.AccountStrategy
		decodeData(t, resp, &stored)
		assert.Equal(t, int64(40), stored.MinImprovementBps)

		code, resp = doJSON(t, s.handleStrategy, http.MethodGet,
			"/strategy?account="+testAccount, nil)
		require.Equal(t, http.StatusOK, code)
		decodeData(t, resp, &stored)
		assert.Equal(t, int64(5000), stored.RiskToleranceBps)
	})

	t.Run("position seed and read", func(t *testing.T) {
		code, _ := doJSON(t, s.handlePosition, http.MethodPost, "/position", map[string]string{
			"account": testAccount,
			"venue":   "aave-v3",
			"amount":  "1000000000000",
		})
		require.Equal(t, http.StatusOK, code)

		code, resp := doJSON(t, s.handlePosition, http.MethodGet,
			"/position?account="+testAccount, nil)
		require.Equal(t, http.StatusOK, code)

		var holdings map[string]string
		decodeData(t, resp, &holdings)
		assert.Equal(t, "1000000000000", holdings["aave-v3"])
	})

	t.Run("position rejects unknown venue", func(t *testing.T) {
		code, _ := doJSON(t, s.handlePosition, http.MethodPost, "/position", map[string]string{
			"account": testAccount,
			"venue":   "yield-farm-9000",
			"amount":  "1",
		})
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("trigger moves principal to better venue", func(t *testing.T) {
		code, resp := doJSON(t, s.handleRebalanceTrigger, http.MethodPost, "/rebalance", map[string]string{
			"account": testAccount,
		})
		require.Equal(t, http.StatusOK, code)

		var data struct {
			Evaluation struct {
				CurrentVenue   string `json:"current_venue"`
				CandidateVenue string `json:"candidate_venue"`
				Acted          bool   `json:"acted"`
			} `json:"evaluation"`
			Outcome *model.RebalanceOutcome `json:"outcome"`
		}
		decodeData(t, resp, &data)
		assert.Equal(t, "aave-v3", data.Evaluation.CurrentVenue)
		assert.Equal(t, "compound-v3", data.Evaluation.CandidateVenue)
		assert.True(t, data.Evaluation.Acted)
		require.NotNil(t, data.Outcome)
		assert.True(t, data.Outcome.Success)
		assert.Equal(t, big.NewInt(989_000_000_000), data.Outcome.AmountExecuted)
	})

	t.Run("standard transfer lifecycle", func(t *testing.T) {
		code, resp := doJSON(t, s.handleTransfer, http.MethodPost, "/transfer", transferRequest{
			SourceDomain: 0,
			DestDomain:   6,
			Sender:       testAccount,
			Recipient:    testRecipient,
			Amount:       "2000000000",
		})
		require.Equal(t, http.StatusOK, code)

		var record model.TransferRecord
		decodeData(t, resp, &record)
		require.NotEmpty(t, record.ID)

		code, resp = doJSON(t, s.handleAttestation, http.MethodGet,
			fmt.Sprintf("/attestation?id=%s&wait_ms=500", record.ID), nil)
		require.Equal(t, http.StatusOK, code)

		var att struct {
			Ready       bool   `json:"ready"`
			Attestation string `json:"attestation"`
		}
		decodeData(t, resp, &att)
		require.True(t, att.Ready)
		require.NotEmpty(t, att.Attestation)

		code, resp = doJSON(t, s.handleTransferComplete, http.MethodPost, "/transfer/complete", completeRequest{
			Nonce:        record.Nonce,
			CreatedAt:    record.CreatedAt,
			SourceDomain: uint32(record.SourceDomain),
			DestDomain:   uint32(record.DestDomain),
			Sender:       testAccount,
			Recipient:    testRecipient,
			Amount:       "2000000000",
			Attestation:  att.Attestation,
		})
		require.Equal(t, http.StatusOK, code)

		var completed model.TransferRecord
		decodeData(t, resp, &completed)
		assert.True(t, completed.Completed)

		code, resp = doJSON(t, s.handleBalance, http.MethodGet,
			"/balance?account="+testRecipient, nil)
		require.Equal(t, http.StatusOK, code)
		var data map[string]string
		decodeData(t, resp, &data)
		assert.Equal(t, "2000000000", data["balance"])
	})

	t.Run("fast transfer to slow domain rejected", func(t *testing.T) {
		code, _ := doJSON(t, s.handleTransferFast, http.MethodPost, "/transfer/fast", transferRequest{
			SourceDomain: 0,
			DestDomain:   7,
			Sender:       testAccount,
			Recipient:    testRecipient,
			Amount:       "1000000",
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("pause blocks mutating operations", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.handlePause(rec, httptest.NewRequest(http.MethodPost, "/pause?action=pause", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		code, _ := doJSON(t, s.handleTransfer, http.MethodPost, "/transfer", transferRequest{
			SourceDomain: 0,
			DestDomain:   6,
			Sender:       testAccount,
			Recipient:    testRecipient,
			Amount:       "1000000",
		})
		assert.Equal(t, http.StatusServiceUnavailable, code)

		rec = httptest.NewRecorder()
		s.handlePause(rec, httptest.NewRequest(http.MethodPost, "/pause?action=resume", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("status and circuit report state", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
		assert.Equal(t, "operational", status["status"])
		assert.Equal(t, "closed", status["circuit_state"])

		rec = httptest.NewRecorder()
		s.handleCircuit(rec, httptest.NewRequest(http.MethodGet, "/circuit", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

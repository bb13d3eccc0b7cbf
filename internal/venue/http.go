package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// HTTPAdapter talks to a venue gateway over its JSON API with retries.
type HTTPAdapter struct {
	name       string
	domain     types.Domain
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPAdapter creates an adapter for one venue gateway.
func NewHTTPAdapter(name string, domain types.Domain, baseURL, apiKey string, timeout time.Duration) *HTTPAdapter {
	client := newRetryClient()
	client.Timeout = timeout
	return &HTTPAdapter{
		name:       name,
		domain:     domain,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

// newRetryClient creates an HTTP client with retry logic.
func newRetryClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil
	return retryClient.StandardClient()
}

// Name returns the registry identifier of the venue.
func (a *HTTPAdapter) Name() string { return a.name }

// Domain returns the transfer domain the venue settles on.
func (a *HTTPAdapter) Domain() types.Domain { return a.domain }

// metricsResponse is the gateway wire format. Amounts travel as decimal
// strings to survive JSON number precision.
type metricsResponse struct {
	TVL                   string `json:"tvl"`
	UtilizationBps        int64  `json:"utilization_bps"`
	AgeDays               int64  `json:"age_days"`
	MaxWithdrawable       string `json:"max_withdrawable"`
	HistoricalYieldBps    int64  `json:"historical_yield_bps"`
	YieldVolatilityBps    int64  `json:"yield_volatility_bps"`
	Audited               bool   `json:"audited"`
	AuditQualityBps       int64  `json:"audit_quality_bps"`
	HasGovernanceToken    bool   `json:"has_governance_token"`
	CentralizationRiskBps int64  `json:"centralization_risk_bps"`
	CollectedAt           int64  `json:"collected_at"`
}

// Metrics retrieves a fresh snapshot from the venue gateway.
func (a *HTTPAdapter) Metrics(ctx context.Context) (model.VenueMetrics, error) {
	var resp metricsResponse
	if err := a.get(ctx, "/v1/metrics", &resp); err != nil {
		return model.VenueMetrics{}, err
	}

	tvl, err := parseAmount(resp.TVL)
	if err != nil {
		return model.VenueMetrics{}, fmt.Errorf("%s metrics: bad tvl %q", a.name, resp.TVL)
	}
	withdrawable, err := parseAmount(resp.MaxWithdrawable)
	if err != nil {
		return model.VenueMetrics{}, fmt.Errorf("%s metrics: bad max_withdrawable %q", a.name, resp.MaxWithdrawable)
	}

	logrus.Debugf("Received metrics from venue %s", a.name)
	return model.VenueMetrics{
		Venue:                 a.name,
		TotalValueLocked:      tvl,
		UtilizationBps:        model.ClampBps(resp.UtilizationBps),
		AgeDays:               resp.AgeDays,
		MaxWithdrawable:       withdrawable,
		HistoricalYieldBps:    resp.HistoricalYieldBps,
		YieldVolatilityBps:    resp.YieldVolatilityBps,
		Audited:               resp.Audited,
		AuditQualityBps:       model.ClampBps(resp.AuditQualityBps),
		HasGovernanceToken:    resp.HasGovernanceToken,
		CentralizationRiskBps: model.ClampBps(resp.CentralizationRiskBps),
		CollectedAt:           resp.CollectedAt,
	}, nil
}

// CurrentYieldBps retrieves the current supply APY from the gateway.
func (a *HTTPAdapter) CurrentYieldBps(ctx context.Context) (int64, error) {
	var resp struct {
		APYBps int64 `json:"apy_bps"`
	}
	if err := a.get(ctx, "/v1/yield", &resp); err != nil {
		return 0, err
	}
	return resp.APYBps, nil
}

// Deposit places principal with the venue.
func (a *HTTPAdapter) Deposit(ctx context.Context, account common.Address, amount *big.Int) (string, error) {
	return a.execute(ctx, "/v1/deposit", account, amount)
}

// Withdraw pulls principal from the venue.
func (a *HTTPAdapter) Withdraw(ctx context.Context, account common.Address, amount *big.Int) (string, error) {
	return a.execute(ctx, "/v1/withdraw", account, amount)
}

// CanDeposit reports whether the gateway accepts a deposit of this size.
func (a *HTTPAdapter) CanDeposit(ctx context.Context, amount *big.Int) (bool, error) {
	limits, err := a.limits(ctx)
	if err != nil {
		return false, err
	}
	return limits.maxDeposit.Sign() > 0 && amount.Cmp(limits.maxDeposit) <= 0, nil
}

// CanWithdraw reports whether the venue can service a withdrawal now.
func (a *HTTPAdapter) CanWithdraw(ctx context.Context, amount *big.Int) (bool, error) {
	limits, err := a.limits(ctx)
	if err != nil {
		return false, err
	}
	return amount.Cmp(limits.maxWithdraw) <= 0, nil
}

type venueLimits struct {
	maxDeposit  *big.Int
	maxWithdraw *big.Int
}

func (a *HTTPAdapter) limits(ctx context.Context) (venueLimits, error) {
	var resp struct {
		MaxDeposit  string `json:"max_deposit"`
		MaxWithdraw string `json:"max_withdraw"`
	}
	if err := a.get(ctx, "/v1/limits", &resp); err != nil {
		return venueLimits{}, err
	}
	maxDeposit, err := parseAmount(resp.MaxDeposit)
	if err != nil {
		return venueLimits{}, fmt.Errorf("%s limits: bad max_deposit %q", a.name, resp.MaxDeposit)
	}
	maxWithdraw, err := parseAmount(resp.MaxWithdraw)
	if err != nil {
		return venueLimits{}, fmt.Errorf("%s limits: bad max_withdraw %q", a.name, resp.MaxWithdraw)
	}
	return venueLimits{maxDeposit: maxDeposit, maxWithdraw: maxWithdraw}, nil
}

func (a *HTTPAdapter) execute(ctx context.Context, path string, account common.Address, amount *big.Int) (string, error) {
	body, err := json.Marshal(map[string]string{
		"account": account.Hex(),
		"amount":  amount.String(),
	})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: venue %s: %v", model.ErrExecution, a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: venue %s: status %d, body: %s", model.ErrExecution, a.name, resp.StatusCode, string(raw))
	}

	var out struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	return out.TxRef, nil
}

func (a *HTTPAdapter) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	a.setHeaders(req)

	logrus.Debugf("Fetching %s from venue %s", path, a.name)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching data from venue %s: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("venue %s API error: status %d, body: %s", a.name, resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (a *HTTPAdapter) setHeaders(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

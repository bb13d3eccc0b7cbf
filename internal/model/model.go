// Package model defines the core data structures for the yield rebalancer.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// BpsScale is the basis-point denominator: 10000 bps = 100%.
const BpsScale int64 = 10000

// SecondsPerYear is the annualization constant used by every yield formula.
const SecondsPerYear int64 = 31536000

// ClampBps bounds a basis-point value to [0, 10000]. Every score and rate
// field that leaves a component passes through this.
func ClampBps(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > BpsScale {
		return BpsScale
	}
	return v
}

// VenueMetrics is a point-in-time snapshot of a lending venue, supplied
// fresh by the venue adapter on every evaluation. Immutable once built.
type VenueMetrics struct {
	// Venue is the registry identifier of the venue.
	Venue string `json:"venue"`

	// TotalValueLocked is the aggregate principal the venue holds,
	// in native 6-decimal stable units.
	TotalValueLocked *big.Int `json:"tvl"`

	// UtilizationBps is borrowed/supplied in basis points.
	UtilizationBps int64 `json:"utilization_bps"`

	// AgeDays is how long the venue has been operating.
	AgeDays int64 `json:"age_days"`

	// MaxWithdrawable is the amount immediately withdrawable right now.
	MaxWithdrawable *big.Int `json:"max_withdrawable"`

	// HistoricalYieldBps is the trailing average supply APY.
	HistoricalYieldBps int64 `json:"historical_yield_bps"`

	// YieldVolatilityBps is the volatility of the trailing APY.
	YieldVolatilityBps int64 `json:"yield_volatility_bps"`

	// Audited reports whether the venue has at least one audit.
	Audited bool `json:"audited"`

	// AuditQualityBps grades the audit coverage when Audited is true.
	AuditQualityBps int64 `json:"audit_quality_bps"`

	// HasGovernanceToken reports whether venue governance is tokenized.
	HasGovernanceToken bool `json:"has_governance_token"`

	// CentralizationRiskBps grades governance concentration when a
	// governance token exists.
	CentralizationRiskBps int64 `json:"centralization_risk_bps"`

	// CollectedAt is the Unix timestamp the snapshot was taken.
	CollectedAt int64 `json:"collected_at"`
}

// RiskCategory buckets a composite risk score into fixed bands.
type RiskCategory string

// Risk category bands. Boundaries are inclusive on the low side: a
// composite of exactly 2000 is still very-low.
const (
	RiskVeryLow  RiskCategory = "very_low"
	RiskLow      RiskCategory = "low"
	RiskMedium   RiskCategory = "medium"
	RiskHigh     RiskCategory = "high"
	RiskVeryHigh RiskCategory = "very_high"
)

// VenueRisk is the derived risk assessment for one venue. Never persisted
// as authoritative; always recomputed from current VenueMetrics.
type VenueRisk struct {
	Venue string `json:"venue"`

	// Six sub-scores, each clamped to [0, 10000].
	ValueScore       int64 `json:"value_score"`
	AuditScore       int64 `json:"audit_score"`
	AgeScore         int64 `json:"age_score"`
	UtilizationScore int64 `json:"utilization_score"`
	GovernanceScore  int64 `json:"governance_score"`
	LiquidityScore   int64 `json:"liquidity_score"`

	// Composite is the weighted sum of the sub-scores divided by 10000.
	Composite int64 `json:"composite"`

	Category RiskCategory `json:"category"`

	// Factors names every sub-score at or above the flagging threshold.
	Factors []string `json:"factors,omitempty"`
}

// YieldProjection is the input to a single yield computation. Ephemeral,
// constructed per evaluation.
type YieldProjection struct {
	Principal          *big.Int `json:"principal"`
	APYBps             int64    `json:"apy_bps"`
	DurationSec        int64    `json:"duration_sec"`
	CompoundingPerYear int64    `json:"compounding_per_year"`
	RiskAdjustmentBps  int64    `json:"risk_adjustment_bps"`
	GasCost            *big.Int `json:"gas_cost"`
	ProtocolFee        *big.Int `json:"protocol_fee"`
}

// OpportunityComparison reports whether moving capital to a candidate venue
// beats staying put. Output-only.
type OpportunityComparison struct {
	// YieldDelta is candidate net yield minus current net yield.
	YieldDelta *big.Int `json:"yield_delta"`

	// ImprovementBps is the relative improvement over the current net
	// yield, in basis points.
	ImprovementBps int64 `json:"improvement_bps"`

	Worthwhile bool `json:"worthwhile"`

	// BreakEvenSec is the time for the APY improvement to recoup the
	// rebalance cost; zero when not computable.
	BreakEvenSec int64 `json:"break_even_sec"`

	// AnnualBenefit projects the yield delta over a full year.
	AnnualBenefit *big.Int `json:"annual_benefit"`
}

// AccountStrategy holds an account's rebalancing policy. Created on the
// first strategy-set call, overwritten in place, never deleted.
type AccountStrategy struct {
	Account             common.Address        `json:"account"`
	TargetAllocationBps int64                 `json:"target_allocation_bps"`
	RiskToleranceBps    int64                 `json:"risk_tolerance_bps"`
	MinImprovementBps   int64                 `json:"min_improvement_bps"`
	AutoRebalance       bool                  `json:"auto_rebalance"`
	CrossDomainEnabled  bool                  `json:"cross_domain_enabled"`
	ApprovedVenues      map[string]bool       `json:"approved_venues"`
	ApprovedDomains     map[types.Domain]bool `json:"approved_domains"`
	MaxSlippageBps      int64                 `json:"max_slippage_bps"`
	LastRebalanceAt     int64                 `json:"last_rebalance_at"`
}

// VenueApproved reports whether the strategy explicitly approves a venue.
func (s AccountStrategy) VenueApproved(venue string) bool {
	return s.ApprovedVenues[venue]
}

// DomainApproved reports whether the strategy explicitly approves a domain.
func (s AccountStrategy) DomainApproved(d types.Domain) bool {
	return s.ApprovedDomains[d]
}

// TransferRecord is the append-only history entry for one cross-domain
// transfer leg. Mutated exactly once, at completion.
type TransferRecord struct {
	// ID is the hex digest derived from (nonce, created-at, sender).
	ID string `json:"id"`

	Nonce     uint64 `json:"nonce"`
	CreatedAt int64  `json:"created_at"`

	SourceDomain types.Domain `json:"source_domain"`
	DestDomain   types.Domain `json:"dest_domain"`

	// Amount is the gross amount pulled from the sender.
	Amount *big.Int `json:"amount"`

	// Fee is the fast-transfer fee withheld from the recipient credit;
	// zero for standard transfers.
	Fee *big.Int `json:"fee"`

	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`

	Completed   bool  `json:"completed"`
	Fast        bool  `json:"fast"`
	SettlesAt   int64 `json:"settles_at,omitempty"`
	CompletedAt int64 `json:"completed_at,omitempty"`

	// AttestationID references the attestation authorizing completion.
	AttestationID string `json:"attestation_id,omitempty"`
}

// DomainInfo describes a registered transfer domain. Admin-owned; the core
// only reads it.
type DomainInfo struct {
	Domain      types.Domain  `json:"domain"`
	ChainID     types.ChainID `json:"chain_id"`
	Supported   bool          `json:"supported"`
	Enabled     bool          `json:"enabled"`
	FastEnabled bool          `json:"fast_enabled"`
	MinTransfer *big.Int      `json:"min_transfer"`
	MaxTransfer *big.Int      `json:"max_transfer"`
}

// RebalanceOutcome records the result of one rebalance request. Immutable
// after creation except for the cancel transition, which may only apply
// before success.
type RebalanceOutcome struct {
	RequestID      string         `json:"request_id"`
	Account        common.Address `json:"account"`
	Success        bool           `json:"success"`
	AmountExecuted *big.Int       `json:"amount_executed"`
	ResourceCost   *big.Int       `json:"resource_cost"`
	FeesPaid       *big.Int       `json:"fees_paid"`
	TxRef          string         `json:"tx_ref,omitempty"`
	Error          string         `json:"error,omitempty"`
	Cancelled      bool           `json:"cancelled"`
	CreatedAt      int64          `json:"created_at"`
}

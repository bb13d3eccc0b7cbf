// Package risk turns venue metrics into bounded composite risk scores and
// derives risk-gated allocation limits from them.
package risk

import (
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

// Sub-score weights in basis points. They sum to exactly 10000:
// value 20%, audit 25%, age 15%, utilization 10%, governance 15%,
// liquidity 15%.
const (
	weightValue       int64 = 2000
	weightAudit       int64 = 2500
	weightAge         int64 = 1500
	weightUtilization int64 = 1000
	weightGovernance  int64 = 1500
	weightLiquidity   int64 = 1500
)

// flagThreshold is the sub-score level at which a risk factor gets named.
const flagThreshold int64 = 6000

// Value tiers in native 6-decimal stable units.
var (
	tierBillion        = new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000))
	tierHundredMillion = new(big.Int).Mul(big.NewInt(100_000_000), big.NewInt(1_000_000))
	tierTenMillion     = new(big.Int).Mul(big.NewInt(10_000_000), big.NewInt(1_000_000))
	tierMillion        = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))
)

// Assess computes the full risk profile for a venue snapshot. Pure: the
// result is always a function of the supplied metrics alone.
func Assess(m model.VenueMetrics) model.VenueRisk {
	r := model.VenueRisk{
		Venue:            m.Venue,
		ValueScore:       valueScore(m),
		AuditScore:       auditScore(m),
		AgeScore:         ageScore(m),
		UtilizationScore: utilizationScore(m),
		GovernanceScore:  governanceScore(m),
		LiquidityScore:   liquidityScore(m),
	}

	weighted := r.ValueScore*weightValue +
		r.AuditScore*weightAudit +
		r.AgeScore*weightAge +
		r.UtilizationScore*weightUtilization +
		r.GovernanceScore*weightGovernance +
		r.LiquidityScore*weightLiquidity
	r.Composite = model.ClampBps(weighted / model.BpsScale)
	r.Category = Categorize(r.Composite)
	r.Factors = flagFactors(r)

	logrus.WithFields(logrus.Fields{
		"venue":     m.Venue,
		"composite": r.Composite,
		"category":  r.Category,
		"factors":   r.Factors,
	}).Debug("Venue risk assessed")

	return r
}

// Categorize maps a composite score onto the fixed category bands.
// Band edges are inclusive: exactly 2000 is still very-low.
func Categorize(composite int64) model.RiskCategory {
	switch {
	case composite <= 2000:
		return model.RiskVeryLow
	case composite <= 4000:
		return model.RiskLow
	case composite <= 6000:
		return model.RiskMedium
	case composite <= 8000:
		return model.RiskHigh
	default:
		return model.RiskVeryHigh
	}
}

// IsSafer reports whether a carries strictly less composite risk than b.
func IsSafer(a, b model.VenueRisk) bool {
	return a.Composite < b.Composite
}

// MeetsTolerance reports whether the assessed risk fits within an
// account's tolerance.
func MeetsTolerance(r model.VenueRisk, toleranceBps int64) bool {
	return toleranceBps-r.Composite >= 0
}

// AllocationLimit returns the maximum allocation fraction, in basis
// points, permitted for a venue with the given composite score. Scores
// above tolerance get zero. Within tolerance the limit shrinks
// quadratically, so risk near the tolerance boundary is penalized
// disproportionately: maxPct × (10000 − score²/10000) / 10000.
func AllocationLimit(scoreBps, toleranceBps, maxPctBps int64) int64 {
	if scoreBps > toleranceBps {
		return 0
	}
	penalty := model.BpsScale - (scoreBps*scoreBps)/model.BpsScale
	return model.ClampBps(maxPctBps * penalty / model.BpsScale)
}

func valueScore(m model.VenueMetrics) int64 {
	tvl := m.TotalValueLocked
	if tvl == nil {
		tvl = new(big.Int)
	}
	switch {
	case tvl.Cmp(tierBillion) >= 0:
		return 500
	case tvl.Cmp(tierHundredMillion) >= 0:
		return 2000
	case tvl.Cmp(tierTenMillion) >= 0:
		return 4000
	case tvl.Cmp(tierMillion) >= 0:
		return 6500
	default:
		return 9000
	}
}

func auditScore(m model.VenueMetrics) int64 {
	if !m.Audited {
		return 8000
	}
	return model.ClampBps(model.BpsScale - m.AuditQualityBps)
}

func ageScore(m model.VenueMetrics) int64 {
	switch {
	case m.AgeDays >= 730:
		return 1000
	case m.AgeDays >= 365:
		return 3000
	case m.AgeDays >= 180:
		return 5000
	case m.AgeDays >= 90:
		return 7000
	default:
		return 9000
	}
}

// utilizationScore bands around the optimal 70-85% utilization range.
// Scores worsen symmetrically the further utilization drifts out of band.
func utilizationScore(m model.VenueMetrics) int64 {
	u := m.UtilizationBps
	switch {
	case u >= 7000 && u <= 8500:
		return 1000
	case (u >= 6000 && u < 7000) || (u > 8500 && u <= 9000):
		return 3000
	case (u >= 4000 && u < 6000) || (u > 9000 && u <= 9500):
		return 5500
	default:
		return 8500
	}
}

func governanceScore(m model.VenueMetrics) int64 {
	if !m.HasGovernanceToken {
		return 7000
	}
	return model.ClampBps(m.CentralizationRiskBps)
}

// liquidityScore bands the immediately-withdrawable share of TVL, with a
// flat penalty when utilization leaves little headroom. A venue with zero
// TVL is maximally risky.
func liquidityScore(m model.VenueMetrics) int64 {
	if m.TotalValueLocked == nil || m.TotalValueLocked.Sign() == 0 {
		return model.BpsScale
	}
	withdrawable := m.MaxWithdrawable
	if withdrawable == nil {
		withdrawable = new(big.Int)
	}

	ratio := new(big.Int).Mul(withdrawable, big.NewInt(model.BpsScale))
	ratio.Div(ratio, m.TotalValueLocked)

	var score int64
	switch {
	case ratio.Int64() >= 2000:
		score = 1000
	case ratio.Int64() >= 1000:
		score = 3000
	case ratio.Int64() >= 500:
		score = 5500
	default:
		score = 8000
	}

	if m.UtilizationBps >= 9000 {
		score += 1500
	}
	return model.ClampBps(score)
}

func flagFactors(r model.VenueRisk) []string {
	var factors []string
	if r.ValueScore >= flagThreshold {
		factors = append(factors, "small_tvl")
	}
	if r.AuditScore >= flagThreshold {
		factors = append(factors, "audit")
	}
	if r.AgeScore >= flagThreshold {
		factors = append(factors, "young_protocol")
	}
	if r.UtilizationScore >= flagThreshold {
		factors = append(factors, "utilization")
	}
	if r.GovernanceScore >= flagThreshold {
		factors = append(factors, "governance")
	}
	if r.LiquidityScore >= flagThreshold {
		factors = append(factors, "thin_liquidity")
	}
	return factors
}

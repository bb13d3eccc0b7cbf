// Package yield computes simple, compound, and cost-adjusted yield
// projections and compares rebalancing opportunities, including
// cross-domain ones. All functions are pure; amounts are native 6-decimal
// stable units and rates are basis points.
package yield

import (
	"math"
	"math/big"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

// ImprovementInfinite is the sentinel returned when no finite APY
// improvement can cover a cost (zero principal or zero duration).
const ImprovementInfinite int64 = math.MaxInt64

var (
	bpsScale       = big.NewInt(model.BpsScale)
	secondsPerYear = big.NewInt(model.SecondsPerYear)
)

// Simple computes linear (non-compounding) yield:
// principal × apyBps × durationSec / (10000 × secondsPerYear).
func Simple(principal *big.Int, apyBps, durationSec int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || apyBps <= 0 || durationSec <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(principal, big.NewInt(apyBps))
	out.Mul(out, big.NewInt(durationSec))
	out.Div(out, new(big.Int).Mul(bpsScale, secondsPerYear))
	return out
}

// Compound computes periodic-compounding yield using 18-decimal fixed-point
// arithmetic: principal × ((1 + r/n)^(n·t) − 1). A compounding frequency of
// zero falls back to simple yield, as does a horizon too short to contain a
// whole compounding period.
func Compound(principal *big.Int, apyBps, durationSec, freqPerYear int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || apyBps <= 0 || durationSec <= 0 {
		return new(big.Int)
	}
	if freqPerYear <= 0 {
		return Simple(principal, apyBps, durationSec)
	}

	periods := freqPerYear * durationSec / model.SecondsPerYear
	if periods == 0 {
		return Simple(principal, apyBps, durationSec)
	}

	// ratePerPeriod = apy/n in 18-decimal fixed point.
	ratePerPeriod := new(big.Int).Mul(big.NewInt(apyBps), fixedOne)
	ratePerPeriod.Div(ratePerPeriod, new(big.Int).Mul(bpsScale, big.NewInt(freqPerYear)))

	base := new(big.Int).Add(fixedOne, ratePerPeriod)
	factor := powFixed(base, uint64(periods))

	gross := new(big.Int).Mul(principal, factor)
	gross.Div(gross, fixedOne)
	gross.Sub(gross, principal)
	if gross.Sign() < 0 {
		return new(big.Int)
	}
	return gross
}

// RiskAdjusted computes compound yield, removes the risk-adjustment slice,
// then removes execution costs. Both subtractions floor at zero: a
// projection never reports negative yield.
func RiskAdjusted(p model.YieldProjection) *big.Int {
	gross := Compound(p.Principal, p.APYBps, p.DurationSec, p.CompoundingPerYear)

	penalty := new(big.Int).Mul(gross, big.NewInt(model.ClampBps(p.RiskAdjustmentBps)))
	penalty.Div(penalty, bpsScale)
	adjusted := new(big.Int).Sub(gross, penalty)
	if adjusted.Sign() < 0 {
		adjusted.SetInt64(0)
	}

	if p.GasCost != nil {
		adjusted.Sub(adjusted, p.GasCost)
	}
	if p.ProtocolFee != nil {
		adjusted.Sub(adjusted, p.ProtocolFee)
	}
	if adjusted.Sign() < 0 {
		adjusted.SetInt64(0)
	}
	return adjusted
}

// Net returns the risk- and cost-adjusted yield together with the effective
// APY it implies. The effective APY is zero when principal or duration is
// zero; callers needing the distinction must guard those inputs.
func Net(p model.YieldProjection) (*big.Int, int64) {
	net := RiskAdjusted(p)
	if p.Principal == nil || p.Principal.Sign() == 0 || p.DurationSec == 0 {
		return net, 0
	}
	eff := new(big.Int).Mul(net, secondsPerYear)
	eff.Mul(eff, bpsScale)
	eff.Div(eff, new(big.Int).Mul(p.Principal, big.NewInt(p.DurationSec)))
	if !eff.IsInt64() {
		return net, ImprovementInfinite
	}
	return net, eff.Int64()
}

// CompareOpportunities weighs a candidate venue against the current one.
// The candidate's net yield is charged the rebalance cost (floored at
// zero) before comparison. When the candidate does not win, the zero-value
// comparison is returned with Worthwhile false.
func CompareOpportunities(current, candidate model.YieldProjection, rebalanceCost *big.Int) model.OpportunityComparison {
	currentNet, _ := Net(current)
	candidateNet, _ := Net(candidate)

	if rebalanceCost != nil {
		candidateNet = new(big.Int).Sub(candidateNet, rebalanceCost)
		if candidateNet.Sign() < 0 {
			candidateNet.SetInt64(0)
		}
	}

	if candidateNet.Cmp(currentNet) <= 0 {
		return model.OpportunityComparison{
			YieldDelta:    new(big.Int),
			AnnualBenefit: new(big.Int),
		}
	}

	delta := new(big.Int).Sub(candidateNet, currentNet)

	improvement := ImprovementInfinite
	if currentNet.Sign() > 0 {
		imp := new(big.Int).Mul(delta, bpsScale)
		imp.Div(imp, currentNet)
		if imp.IsInt64() {
			improvement = imp.Int64()
		}
	}

	// Break-even is only defined when the candidate APY actually exceeds
	// the current one.
	var breakEven int64
	apyDelta := candidate.APYBps - current.APYBps
	if apyDelta > 0 && rebalanceCost != nil && candidate.Principal != nil && candidate.Principal.Sign() > 0 {
		be := new(big.Int).Mul(rebalanceCost, secondsPerYear)
		be.Mul(be, bpsScale)
		be.Div(be, new(big.Int).Mul(candidate.Principal, big.NewInt(apyDelta)))
		if be.IsInt64() {
			breakEven = be.Int64()
		}
	}

	annual := new(big.Int)
	if candidate.DurationSec > 0 {
		annual.Mul(delta, secondsPerYear)
		annual.Div(annual, big.NewInt(candidate.DurationSec))
	}

	return model.OpportunityComparison{
		YieldDelta:     delta,
		ImprovementBps: improvement,
		Worthwhile:     true,
		BreakEvenSec:   breakEven,
		AnnualBenefit:  annual,
	}
}

// MinimumImprovementNeeded returns the APY improvement, in basis points,
// required for a move to recoup its cost over the holding duration.
func MinimumImprovementNeeded(principal, cost *big.Int, durationSec int64) int64 {
	if principal == nil || principal.Sign() == 0 || durationSec == 0 {
		return ImprovementInfinite
	}
	if cost == nil || cost.Sign() <= 0 {
		return 0
	}
	needed := new(big.Int).Mul(cost, secondsPerYear)
	needed.Mul(needed, bpsScale)
	needed.Div(needed, new(big.Int).Mul(principal, big.NewInt(durationSec)))
	if !needed.IsInt64() {
		return ImprovementInfinite
	}
	return needed.Int64()
}

// CrossDomain compares a local opportunity against a remote one reachable
// only through a bridge. The remote horizon is shortened by the bridge
// time (floored at zero) and the remote yield is charged the bridge cost.
// Returns the net benefit of going remote and whether it is positive.
func CrossDomain(local, remote model.YieldProjection, bridgeCost *big.Int, bridgeTimeSec int64) (*big.Int, bool) {
	adjusted := remote
	adjusted.DurationSec -= bridgeTimeSec
	if adjusted.DurationSec < 0 {
		adjusted.DurationSec = 0
	}

	localNet := RiskAdjusted(local)
	remoteNet := RiskAdjusted(adjusted)
	if bridgeCost != nil {
		remoteNet.Sub(remoteNet, bridgeCost)
		if remoteNet.Sign() < 0 {
			remoteNet.SetInt64(0)
		}
	}

	benefit := new(big.Int).Sub(remoteNet, localNet)
	return benefit, benefit.Sign() > 0
}

// Package allocation splits a pool of capital across candidate venues,
// weighting each by yield discounted with a quadratic risk penalty.
package allocation

import (
	"fmt"
	"math/big"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

// Optimal computes per-candidate allocation amounts. Candidates whose risk
// exceeds the tolerance get weight zero; the rest are weighted
// yield × 10000 / (10000 + risk²/10000) and receive a pro-rata share of
// totalAmount. When every weight is zero, every allocation is zero.
func Optimal(yieldsBps, risksBps []int64, toleranceBps int64, totalAmount *big.Int) ([]*big.Int, error) {
	if len(yieldsBps) != len(risksBps) {
		return nil, fmt.Errorf("%w: %d yields vs %d risks", model.ErrValidation, len(yieldsBps), len(risksBps))
	}

	weights := make([]int64, len(yieldsBps))
	var totalWeight int64
	for i := range yieldsBps {
		weights[i] = Weight(yieldsBps[i], risksBps[i], toleranceBps)
		totalWeight += weights[i]
	}

	amounts := make([]*big.Int, len(yieldsBps))
	for i := range amounts {
		amounts[i] = new(big.Int)
		if totalWeight == 0 || weights[i] == 0 || totalAmount == nil {
			continue
		}
		amounts[i].Mul(totalAmount, big.NewInt(weights[i]))
		amounts[i].Div(amounts[i], big.NewInt(totalWeight))
	}
	return amounts, nil
}

// Weight is the risk-discounted attractiveness of one candidate. The
// quadratic denominator penalizes risk disproportionately as it grows.
func Weight(yieldBps, riskBps, toleranceBps int64) int64 {
	if riskBps > toleranceBps || yieldBps <= 0 {
		return 0
	}
	risk := model.ClampBps(riskBps)
	return yieldBps * model.BpsScale / (model.BpsScale + (risk*risk)/model.BpsScale)
}

package allocation

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

func TestOptimal_SumMatchesTotalWithinRounding(t *testing.T) {
	total := big.NewInt(1_000_000_000_000)
	yields := []int64{400, 450, 600, 300}
	risks := []int64{1000, 2500, 5000, 800}

	amounts, err := Optimal(yields, risks, 6000, total)
	require.NoError(t, err)
	require.Len(t, amounts, 4)

	sum := new(big.Int)
	for _, a := range amounts {
		sum.Add(sum, a)
	}
	diff := new(big.Int).Sub(total, sum)
	assert.GreaterOrEqual(t, diff.Int64(), int64(0))
	assert.Less(t, diff.Int64(), int64(len(amounts)))
}

func TestOptimal_OverToleranceGetsZero(t *testing.T) {
	total := big.NewInt(1_000_000)
	amounts, err := Optimal([]int64{500, 900}, []int64{2000, 7000}, 5000, total)
	require.NoError(t, err)

	assert.Equal(t, 0, amounts[1].Sign())
	assert.Equal(t, total.String(), amounts[0].String())
}

func TestOptimal_AllWeightsZero(t *testing.T) {
	amounts, err := Optimal([]int64{500, 900}, []int64{8000, 9000}, 5000, big.NewInt(1_000_000))
	require.NoError(t, err)
	for _, a := range amounts {
		assert.Equal(t, 0, a.Sign())
	}
}

func TestOptimal_MismatchedLengths(t *testing.T) {
	_, err := Optimal([]int64{500}, []int64{1000, 2000}, 5000, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestWeight_QuadraticRiskDiscount(t *testing.T) {
	// risk 0: weight equals yield
	assert.Equal(t, int64(500), Weight(500, 0, 5000))
	// risk 5000: denominator 10000 + 2500
	assert.Equal(t, int64(500)*10000/12500, Weight(500, 5000, 5000))
	// over tolerance
	assert.Equal(t, int64(0), Weight(500, 5001, 5000))
	// zero yield never attracts capital
	assert.Equal(t, int64(0), Weight(0, 100, 5000))
}

func TestWeight_HigherRiskSmallerWeight(t *testing.T) {
	w1 := Weight(600, 1000, 10000)
	w2 := Weight(600, 4000, 10000)
	w3 := Weight(600, 9000, 10000)
	assert.Greater(t, w1, w2)
	assert.Greater(t, w2, w3)
	assert.Greater(t, w3, int64(0))
}

package yield

import "math/big"

// fixedOne is 1.0 in 18-decimal fixed point.
var fixedOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// powFixed raises an 18-decimal fixed-point base to an integer exponent by
// squaring, rescaling after every multiplication so intermediate values
// stay in fixed point.
func powFixed(base *big.Int, exp uint64) *big.Int {
	result := new(big.Int).Set(fixedOne)
	b := new(big.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, b)
			result.Div(result, fixedOne)
		}
		exp >>= 1
		if exp > 0 {
			b.Mul(b, b)
			b.Div(b, fixedOne)
		}
	}
	return result
}

package contracts

import "math/big"

// Decimals is the fixed-point scale of every on-chain amount pricing reads.
const Decimals = 18

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// OneToken is one whole token in base units, the probe amount for curve quotes.
func OneToken() *big.Int {
	return new(big.Int).Set(weiPerUnit)
}

// FromWei converts an 18-decimals fixed-point integer to a float.
// This is a display approximation, not exact arithmetic.
func FromWei(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(value, weiPerUnit).Float64()
	return f
}

// Ratio returns num/den as a float, or false when den is zero.
func Ratio(num, den *big.Int) (float64, bool) {
	if num == nil || den == nil || den.Sign() == 0 {
		return 0, false
	}
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return f, true
}

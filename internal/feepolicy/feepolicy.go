// Package feepolicy computes EIP-1559 replacement fees.
//
// The algorithm is a pure function: given the fee pair of the attempt
// being replaced and a fresh network estimate, it returns a fee pair
// that satisfies the protocol's replacement-transaction rule (both the
// tip and the base-fee contribution must rise by at least 10%) while
// never under-pricing relative to the current estimate.
package feepolicy

import "math/big"

var (
	hundred = big.NewInt(100)
	ten     = big.NewInt(10)
	one     = big.NewInt(1)
)

// minBump returns x + 10% of x + 1, truncating division. The +1 keeps
// the bump strictly positive even when x is small (including zero),
// matching the EIP-1559 replacement rule's requirement of a strictly
// higher fee rather than a merely non-decreasing one.
func minBump(x *big.Int) *big.Int {
	tenPct := new(big.Int).Mul(x, ten)
	tenPct.Quo(tenPct, hundred)
	return tenPct.Add(tenPct, x).Add(tenPct, one)
}

// Fees is the (max fee, max priority fee) pair carried on a TxIntent.
type Fees struct {
	MaxFeePerGas   *big.Int
	MaxPriorityFee *big.Int
}

// Bump computes the replacement fee pair for a transaction whose
// previous attempt used prev and whose current network estimate is est.
//
// Callers must ensure prev.MaxFeePerGas >= prev.MaxPriorityFee and
// est.MaxFeePerGas >= est.MaxPriorityFee; Bump does not re-derive the
// base fee from a block header, it only operates on the two fee pairs.
func Bump(prev, est Fees) Fees {
	newPriority := maxBig(est.MaxPriorityFee, minBump(prev.MaxPriorityFee))

	prevBase := new(big.Int).Sub(prev.MaxFeePerGas, prev.MaxPriorityFee)
	estBase := new(big.Int).Sub(est.MaxFeePerGas, est.MaxPriorityFee)
	newBase := maxBig(estBase, minBump(prevBase))

	newMaxFee := new(big.Int).Add(newBase, newPriority)

	bumped := Fees{
		MaxFeePerGas:   newMaxFee,
		MaxPriorityFee: newPriority,
	}

	// Sanity check mirroring validateDynamicFeeGas's tip-cap-exceeds-fee-cap
	// guard: the construction above can never produce this, but a caller
	// handed an invalid bumped attempt is worse than a loud panic here.
	if bumped.MaxFeePerGas.Cmp(bumped.MaxPriorityFee) < 0 {
		panic("feepolicy: bumped max fee is below bumped max priority fee")
	}

	return bumped
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

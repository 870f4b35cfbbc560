package pos

import "math/big"

// rewardScale is the fixed-point denominator shared by the rewards product
// series (P_self, P_deleg) and the inflation PD controller's rational
// constants, so every compounding series in the module shares one precision
// budget.
const rewardScale = 1_000_000_000_000_000_000

var rewardScaleBig = big.NewInt(rewardScale)

func bigFromUint64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// fixed is a fixed-point rational scaled by rewardScale, stored as a
// big.Int. One unit (1.0) is rewardScaleBig. Values may be negative (the
// inflation controller's error terms are).
type fixed struct {
	n *big.Int
}

// one returns the fixed-point representation of 1.0.
func one() fixed { return fixed{n: new(big.Int).Set(rewardScaleBig)} }

func fixedFromBig(n *big.Int) fixed {
	if n == nil {
		return fixed{n: big.NewInt(0)}
	}
	return fixed{n: new(big.Int).Set(n)}
}

// fixedFromRatio builds num/den scaled by rewardScale, rounding half-to-even
// at the fixed-point boundary as mandated by the inflation controller's
// determinism requirement (spec design notes: "a single rounding convention
// must be documented and tested").
func fixedFromRatio(num, den *big.Int) fixed {
	if den == nil || den.Sign() == 0 {
		return fixed{n: big.NewInt(0)}
	}
	scaled := new(big.Int).Mul(num, rewardScaleBig)
	return fixed{n: roundHalfToEven(scaled, den)}
}

// mul returns a*b/scale, i.e. fixed-point multiplication.
func (a fixed) mul(b fixed) fixed {
	n := new(big.Int).Mul(a.n, b.n)
	return fixed{n: roundHalfToEven(n, rewardScaleBig)}
}

// div returns a*scale/b, i.e. fixed-point division.
func (a fixed) div(b fixed) fixed {
	if b.n.Sign() == 0 {
		return fixed{n: big.NewInt(0)}
	}
	n := new(big.Int).Mul(a.n, rewardScaleBig)
	return fixed{n: roundHalfToEven(n, b.n)}
}

func (a fixed) add(b fixed) fixed { return fixed{n: new(big.Int).Add(a.n, b.n)} }
func (a fixed) sub(b fixed) fixed { return fixed{n: new(big.Int).Sub(a.n, b.n)} }
func (a fixed) sign() int         { return a.n.Sign() }
func (a fixed) cmp(b fixed) int   { return a.n.Cmp(b.n) }

// applyToAmount returns floor(amount * a), used to convert a rewards-product
// ratio into a concrete token amount.
func (a fixed) applyToAmount(amt Amount) Amount {
	n := new(big.Int).SetBytes(amt.RLPBytes())
	n.Mul(n, a.n)
	n.Quo(n, rewardScaleBig)
	return AmountFromRLPBytes(n.Bytes())
}

// String renders the fixed-point value as a base-10 decimal for logs and
// event attributes.
func (a fixed) String() string {
	return new(big.Rat).SetFrac(a.n, rewardScaleBig).FloatString(18)
}

// bytes/fromBytes round-trip a fixed value through RLP-storable bytes.
func (a fixed) bytes() []byte { return a.n.Bytes() }
func fixedFromBytes(b []byte) fixed {
	if len(b) == 0 {
		return fixed{n: big.NewInt(0)}
	}
	return fixed{n: new(big.Int).SetBytes(b)}
}

// roundHalfToEven computes round(n/d) using banker's rounding: ties round to
// the nearest even quotient. d must be positive; a negative n is rounded by
// magnitude, so round(-n/d) == -round(n/d).
func roundHalfToEven(n, d *big.Int) *big.Int {
	if n.Sign() < 0 {
		return new(big.Int).Neg(roundHalfToEven(new(big.Int).Neg(n), d))
	}
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(n, d, r)
	if r.Sign() == 0 {
		return q
	}
	twice := new(big.Int).Lsh(r, 1)
	cmp := twice.Cmp(d)
	switch {
	case cmp < 0:
		return q
	case cmp > 0:
		return q.Add(q, big.NewInt(1))
	default:
		if q.Bit(0) == 1 {
			return q.Add(q, big.NewInt(1))
		}
		return q
	}
}

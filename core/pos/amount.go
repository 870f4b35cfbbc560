package pos

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is a fixed-precision integer in the smallest token unit. All PoS
// arithmetic is integer arithmetic over a 256-bit unsigned word, matching the
// teacher repo's use of holiman/uint256 for balance-shaped quantities (see
// core/state/accounts.go in the reference pack).
type Amount struct {
	v uint256.Int
}

// ZeroAmount returns the additive identity.
func ZeroAmount() Amount {
	return Amount{}
}

// NewAmount builds an Amount from a uint64 smallest-unit value.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// AmountFromString builds an Amount from a base-10 string, rejecting negative or
// malformed input.
func AmountFromString(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("pos: invalid amount %q: %w", s, err)
	}
	return a, nil
}

func (a Amount) String() string { return a.v.Dec() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp compares two amounts the way bytes.Compare compares slices.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Add returns a+b. Overflow is a programmer error in this domain (amounts are
// bounded well under 2^256) and panics rather than silently wrapping.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		panic("pos: amount overflow")
	}
	return out
}

// Sub returns a-b and panics on underflow; callers must check Cmp first when
// underflow is a reachable, recoverable validation failure.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		panic("pos: amount underflow")
	}
	return out
}

// MulDivFloor computes floor(a*num/den) without intermediate overflow beyond
// 256 bits, used for pro-rata reward and slash distribution.
func (a Amount) MulDivFloor(num, den uint64) Amount {
	if den == 0 {
		panic("pos: division by zero")
	}
	var wide uint256.Int
	wide.Mul(&a.v, uint256.NewInt(num))
	wide.Div(&wide, uint256.NewInt(den))
	return Amount{v: wide}
}

// Bytes32 returns the big-endian 32-byte encoding used for RLP/storage.
func (a Amount) Bytes32() [32]byte { return a.v.Bytes32() }

// AmountFromBytes32 decodes the big-endian form produced by Bytes32.
func AmountFromBytes32(b [32]byte) Amount {
	var a Amount
	a.v.SetBytes(b[:])
	return a
}

// RLPBytes returns the minimal big-endian encoding used when embedding an
// Amount inside an RLP-encoded record (records store []byte fields rather
// than Amount directly, since uint256.Int has no RLP codec of its own).
func (a Amount) RLPBytes() []byte { return a.v.Bytes() }

// AmountFromRLPBytes is the inverse of RLPBytes.
func AmountFromRLPBytes(b []byte) Amount {
	var a Amount
	a.v.SetBytes(b)
	return a
}

// BigInt converts to a *big.Int, used at the boundary with the bank ledger
// and with core/epoch's big.Int-based weight comparisons.
func (a Amount) BigInt() *big.Int { return a.v.ToBig() }

// AmountFromBigInt is the inverse of BigInt; negative inputs are rejected by
// the caller's own validation, not here (a negative big.Int would otherwise
// silently wrap to a huge unsigned value).
func AmountFromBigInt(v *big.Int) Amount {
	var a Amount
	a.v.SetFromBig(v)
	return a
}

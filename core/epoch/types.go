package epoch

import (
	"encoding/hex"
	"math/big"
	"sort"
)

// Weight captures the composite weight calculation inputs and result for a
// single validator.
type Weight struct {
	Address   []byte
	Stake     *big.Int
	Composite *big.Int
}

// SortWeights sorts weights by descending composite weight with a deterministic
// tie-breaker on address bytes.
func SortWeights(weights []Weight) {
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Composite == nil && weights[j].Composite == nil {
			return hex.EncodeToString(weights[i].Address) < hex.EncodeToString(weights[j].Address)
		}
		if weights[i].Composite == nil {
			return false
		}
		if weights[j].Composite == nil {
			return true
		}
		cmp := weights[i].Composite.Cmp(weights[j].Composite)
		if cmp == 0 {
			return hex.EncodeToString(weights[i].Address) < hex.EncodeToString(weights[j].Address)
		}
		return cmp > 0
	})
}

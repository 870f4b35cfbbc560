// Package genesis builds the initial PoS engine state from a JSON genesis
// document, grounded on the teacher's core/genesis/spec.go and loader.go
// shape (a JSON spec struct plus a Build function that drives a fresh state
// backend), narrowed to the PoS domain: validators, self-bonds, account
// balances, and the governance-mutable staking parameter set.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"

	"posd/config"
	"posd/core/pos"
	"posd/crypto"
)

// ValidatorSpec describes one genesis validator and its self-bond.
type ValidatorSpec struct {
	Address      string `json:"address"`
	ConsensusKey string `json:"consensusKey"`
	SelfBond     string `json:"selfBond"`
	Commission   uint32 `json:"commissionBps"`
	Moniker      string `json:"moniker,omitempty"`
}

// Spec is the genesis document the PoS engine bootstraps from.
type Spec struct {
	Staking    config.Staking    `json:"staking"`
	Validators []ValidatorSpec   `json:"validators"`
	Alloc      map[string]string `json:"alloc"` // addr -> token amount
}

// LoadSpec reads and parses a genesis document from path.
func LoadSpec(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return &spec, nil
}

// Apply constructs a pos.Engine over store and seeds it from spec: account
// balances are credited, each validator is registered and self-bonded at
// epoch 0 (becoming effective at pipeline_len per the ordinary Bond path,
// same as any post-genesis bond), and the circulating supply is set to the
// sum of every credited balance. Returns the ready-to-run engine.
func Apply(store *pos.Store, spec *Spec) (*pos.Engine, error) {
	params, err := pos.ParamsFromConfig(spec.Staking)
	if err != nil {
		return nil, fmt.Errorf("genesis: staking params: %w", err)
	}
	engine := pos.NewEngine(store, params)

	supply := pos.ZeroAmount()
	for addrStr, amountStr := range spec.Alloc {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("genesis: alloc address %q: %w", addrStr, err)
		}
		amt, err := pos.AmountFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("genesis: alloc amount for %q: %w", addrStr, err)
		}
		if err := engine.CreditGenesisBalance(addr, amt); err != nil {
			return nil, fmt.Errorf("genesis: credit %q: %w", addrStr, err)
		}
		supply = supply.Add(amt)
	}

	for _, vs := range spec.Validators {
		addr, err := crypto.DecodeAddress(vs.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: validator address %q: %w", vs.Address, err)
		}
		commission := pos.BPSToFixed(vs.Commission)
		if err := engine.BecomeValidator(addr, []byte(vs.ConsensusKey), commission, params.MaxCommissionDelta, vs.Moniker); err != nil {
			return nil, fmt.Errorf("genesis: register validator %q: %w", vs.Address, err)
		}
		selfBond, err := pos.AmountFromString(vs.SelfBond)
		if err != nil {
			return nil, fmt.Errorf("genesis: self-bond for %q: %w", vs.Address, err)
		}
		if err := engine.CreditGenesisBalance(addr, selfBond); err != nil {
			return nil, fmt.Errorf("genesis: fund self-bond for %q: %w", vs.Address, err)
		}
		if err := engine.Bond(addr, addr, selfBond, 0); err != nil {
			return nil, fmt.Errorf("genesis: self-bond %q: %w", vs.Address, err)
		}
		supply = supply.Add(selfBond)
	}

	if err := engine.SeedSupply(supply); err != nil {
		return nil, fmt.Errorf("genesis: seed supply: %w", err)
	}

	return engine, nil
}

package pos

import (
	"testing"

	"posd/config"
)

// TestAdvanceEpochOrdersTransitionStepsCorrectly exercises spec §4.1's
// mandated epoch-transition order end to end: a bond placed at epoch 0
// becomes visible to the validator-set computation pipeline_len epochs
// later, and a parameter change queued mid-epoch stays invisible until the
// next boundary applies it (spec §2: "immutable within an epoch").
func TestAdvanceEpochOrdersTransitionStepsCorrectly(t *testing.T) {
	// The default min_validator_stake (1e18) would leave the 1000-unit bond
	// below threshold, so this test lowers it to 1.
	stakingCfg := config.DefaultStaking()
	stakingCfg.MinValidatorStake = "1"
	params, err := ParamsFromConfig(stakingCfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	e := newTestEngine(t, params) // pipeline_len=2
	val := testAddr(1)
	mustRegisterValidator(t, e, val)
	if err := e.CreditGenesisBalance(val, NewAmount(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := e.Bond(val, val, NewAmount(1000), 0); err != nil {
		t.Fatalf("bond: %v", err)
	}

	if got, err := e.CurrentEpoch(); err != nil || got != 0 {
		t.Fatalf("CurrentEpoch = %v, %v; want 0", got, err)
	}
	newEpoch, err := e.AdvanceEpoch()
	if err != nil {
		t.Fatalf("AdvanceEpoch: %v", err)
	}
	if newEpoch != 1 {
		t.Fatalf("newEpoch = %d, want 1", newEpoch)
	}
	if got, err := e.CurrentEpoch(); err != nil || got != 1 {
		t.Fatalf("CurrentEpoch = %v, %v; want 1", got, err)
	}

	// recomputeSets targets newEpoch+pipeline_len = 1+2 = 3: the validator's
	// bond (scheduled for epoch 2) is visible by then.
	consensus, err := e.ConsensusSet(3)
	if err != nil {
		t.Fatalf("ConsensusSet(3): %v", err)
	}
	if len(consensus) != 1 || consensus[0].String() != val.String() {
		t.Fatalf("consensus at epoch 3 = %v, want [val]", consensus)
	}

	cfg := config.DefaultStaking()
	cfg.MaxConsensusValidators = 1
	newParams, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	if err := e.QueueParams(newParams); err != nil {
		t.Fatalf("QueueParams: %v", err)
	}
	// The queued change must not be visible yet -- pipeline_len still reads
	// as this engine's original params until the next boundary applies it.
	if e.params.PipelineLen != testParams(t).PipelineLen {
		t.Fatalf("queued params applied before the next boundary")
	}

	if _, err := e.AdvanceEpoch(); err != nil {
		t.Fatalf("second AdvanceEpoch: %v", err)
	}
	if e.params.MaxConsensusValidators != 1 {
		t.Fatalf("MaxConsensusValidators = %d, want 1 after the boundary applied the queued params", e.params.MaxConsensusValidators)
	}
}

func TestAdvanceEpochMintsInflationIntoTrackedSupply(t *testing.T) {
	cfg := config.DefaultStaking()
	cfg.RMaxBPS = 10_000
	cfg.RTargetBPS = 10_000
	cfg.EpochsPerYear = 1
	cfg.KPNomBPS = 10_000
	cfg.KDNomBPS = 0
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	e := newTestEngine(t, params)

	if err := e.creditSupply(NewAmount(1000)); err != nil {
		t.Fatalf("seed supply: %v", err)
	}

	before, err := e.TotalSupply()
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	if _, err := e.AdvanceEpoch(); err != nil {
		t.Fatalf("AdvanceEpoch: %v", err)
	}
	after, err := e.TotalSupply()
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	if after.Cmp(before) <= 0 {
		t.Fatalf("total supply did not grow: before=%s after=%s", before, after)
	}
}

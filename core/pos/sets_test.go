package pos

import (
	"testing"

	"posd/config"
)

// TestRecomputeSetsOrdersByStakeDescAddressAscAndSplitsCapacity exercises
// spec §4.3's set-transition algorithm: eligible validators are sorted
// (stake desc, address asc), the top max_consensus_validators land in
// consensus, the remainder in below_capacity, and anything under
// min_validator_stake lands in below_threshold regardless of rank.
func TestRecomputeSetsOrdersByStakeDescAddressAscAndSplitsCapacity(t *testing.T) {
	cfg := config.DefaultStaking()
	cfg.MinValidatorStake = "100"
	cfg.MaxConsensusValidators = 1
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	e := newTestEngine(t, params)

	v1 := testAddr(1) // lower address, tied stake with v2
	v2 := testAddr(2)
	v3 := testAddr(3) // below threshold
	mustRegisterValidator(t, e, v1)
	mustRegisterValidator(t, e, v2)
	mustRegisterValidator(t, e, v3)

	const target Epoch = 12
	if err := e.kernel().ScheduleDelta(v1, 0, target, true, NewAmount(300)); err != nil {
		t.Fatalf("seed v1: %v", err)
	}
	if err := e.kernel().ScheduleDelta(v2, 0, target, true, NewAmount(300)); err != nil {
		t.Fatalf("seed v2: %v", err)
	}
	if err := e.kernel().ScheduleDelta(v3, 0, target, true, NewAmount(50)); err != nil {
		t.Fatalf("seed v3: %v", err)
	}

	if err := e.recomputeSets(target); err != nil {
		t.Fatalf("recomputeSets: %v", err)
	}

	consensus, err := e.ConsensusSet(target)
	if err != nil {
		t.Fatalf("ConsensusSet: %v", err)
	}
	if len(consensus) != 1 || consensus[0].String() != v1.String() {
		t.Fatalf("consensus = %v, want [v1] (tie-break on lower address)", consensus)
	}

	belowCap, err := e.BelowCapacitySet(target)
	if err != nil {
		t.Fatalf("BelowCapacitySet: %v", err)
	}
	if len(belowCap) != 1 || belowCap[0].String() != v2.String() {
		t.Fatalf("below_capacity = %v, want [v2]", belowCap)
	}

	belowThresh, err := e.BelowThresholdSet(target)
	if err != nil {
		t.Fatalf("BelowThresholdSet: %v", err)
	}
	if len(belowThresh) != 1 || belowThresh[0].String() != v3.String() {
		t.Fatalf("below_threshold = %v, want [v3]", belowThresh)
	}
}

// TestRecomputeSetsExcludesJailedValidators confirms a jailed validator is
// excluded from every active set even with ample stake (spec §4.3).
func TestRecomputeSetsExcludesJailedValidators(t *testing.T) {
	cfg := config.DefaultStaking()
	cfg.MinValidatorStake = "1"
	cfg.MaxConsensusValidators = 10
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	e := newTestEngine(t, params)

	jailed := testAddr(9)
	active := testAddr(10)
	mustRegisterValidator(t, e, jailed)
	mustRegisterValidator(t, e, active)

	const target Epoch = 5
	if err := e.kernel().ScheduleDelta(jailed, 0, target, true, NewAmount(1000)); err != nil {
		t.Fatalf("seed jailed: %v", err)
	}
	if err := e.kernel().ScheduleDelta(active, 0, target, true, NewAmount(10)); err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if err := e.Jail(jailed, 0); err != nil {
		t.Fatalf("Jail: %v", err)
	}

	if err := e.recomputeSets(target); err != nil {
		t.Fatalf("recomputeSets: %v", err)
	}
	consensus, err := e.ConsensusSet(target)
	if err != nil {
		t.Fatalf("ConsensusSet: %v", err)
	}
	for _, a := range consensus {
		if a.String() == jailed.String() {
			t.Fatalf("jailed validator must not appear in consensus set: %v", consensus)
		}
	}
	if len(consensus) != 1 || consensus[0].String() != active.String() {
		t.Fatalf("consensus = %v, want [active]", consensus)
	}
}

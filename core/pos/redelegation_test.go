package pos

import (
	"testing"

	"posd/core/errors"
)

func TestRedelegateMovesBondAndIsPipelinedBothSides(t *testing.T) {
	e := newTestEngine(t, testParams(t)) // pipeline_len=2, unbonding_len=21
	owner := testAddr(1)
	src := testAddr(2)
	dest := testAddr(3)
	mustRegisterValidator(t, e, src)
	mustRegisterValidator(t, e, dest)

	if err := e.CreditGenesisBalance(src, NewAmount(1)); err != nil {
		t.Fatalf("credit src self-bond funding: %v", err)
	}
	if err := e.CreditGenesisBalance(dest, NewAmount(1)); err != nil {
		t.Fatalf("credit dest self-bond funding: %v", err)
	}
	if err := e.Bond(src, src, NewAmount(1), 0); err != nil {
		t.Fatalf("src self-bond: %v", err)
	}
	if err := e.Bond(dest, dest, NewAmount(1), 0); err != nil {
		t.Fatalf("dest self-bond: %v", err)
	}

	if err := e.CreditGenesisBalance(owner, NewAmount(1000)); err != nil {
		t.Fatalf("credit owner: %v", err)
	}
	if err := e.Bond(owner, src, NewAmount(1000), 2); err != nil {
		t.Fatalf("owner bonds to src: %v", err)
	}

	if err := e.Redelegate(owner, src, dest, NewAmount(1000), 10); err != nil {
		t.Fatalf("Redelegate: %v", err)
	}

	// Property 7 (spec §8): immediate pipelined stake of the delegator across
	// all validators is unchanged -- the loss at src is exactly offset by the
	// gain at dest, both effective at the same target epoch.
	target := Epoch(10 + e.params.PipelineLen)
	srcStake, err := e.kernel().StakeAt(src, target)
	if err != nil {
		t.Fatalf("StakeAt(src): %v", err)
	}
	destStake, err := e.kernel().StakeAt(dest, target)
	if err != nil {
		t.Fatalf("StakeAt(dest): %v", err)
	}
	// src retains only its own self-bond (1) once the delegated 1000 departs;
	// dest gains the same 1000 on top of its self-bond (1).
	if srcStake.Cmp(NewAmount(1)) != 0 {
		t.Fatalf("src stake at target = %s, want 1", srcStake)
	}
	if destStake.Cmp(NewAmount(1001)) != 0 {
		t.Fatalf("dest stake at target = %s, want 1001", destStake)
	}
}

func TestRedelegateFreezesUntilWindowCloses(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	owner := testAddr(4)
	src := testAddr(5)
	dest := testAddr(6)
	mustRegisterValidator(t, e, src)
	mustRegisterValidator(t, e, dest)
	if err := e.CreditGenesisBalance(src, NewAmount(1)); err != nil {
		t.Fatalf("credit src: %v", err)
	}
	if err := e.Bond(src, src, NewAmount(1), 0); err != nil {
		t.Fatalf("src self-bond: %v", err)
	}
	if err := e.CreditGenesisBalance(owner, NewAmount(500)); err != nil {
		t.Fatalf("credit owner: %v", err)
	}
	if err := e.Bond(owner, src, NewAmount(500), 2); err != nil {
		t.Fatalf("owner bond: %v", err)
	}

	if err := e.Redelegate(owner, src, dest, NewAmount(500), 10); err != nil {
		t.Fatalf("first redelegate: %v", err)
	}
	// Window is [start, end) = [12, 33); a second redelegation of the same
	// src->dest chain before epoch 33 must be rejected.
	if err := e.Redelegate(owner, src, dest, NewAmount(1), 20); err != errors.ErrRedelegationFrozen {
		t.Fatalf("expected ErrRedelegationFrozen, got %v", err)
	}
}

// TestProcessCarriesSlashToDestAfterRedelegationScenarioS3 is spec §8's
// scenario S3: a delegator redelegates from src to dest, then an infraction
// against src is discovered with infraction_epoch < the redelegation's Start.
// The redelegated amount was still part of src's stake when it misbehaved,
// so the carry rule (spec §4.5) slashes it at dest instead of src.
func TestProcessCarriesSlashToDestAfterRedelegationScenarioS3(t *testing.T) {
	e := newTestEngine(t, testParams(t)) // pipeline_len=2, unbonding_len=21
	owner := testAddr(10)
	src := testAddr(11)
	dest := testAddr(12)
	mustRegisterValidator(t, e, src)
	mustRegisterValidator(t, e, dest)

	// src starts with 1000 total stake (a 500 self-stake plus 500 from owner);
	// the self-stake is written straight into src's materialized stake record
	// (ScheduleDelta cannot target the current epoch) so it is already
	// effective at epoch 0, where Bond checks it.
	if err := e.kernel().saveStake(src, stakeRecord{Current: NewAmount(500)}); err != nil {
		t.Fatalf("seed src self-stake: %v", err)
	}
	if err := e.CreditGenesisBalance(owner, NewAmount(500)); err != nil {
		t.Fatalf("credit owner: %v", err)
	}
	if err := e.Bond(owner, src, NewAmount(500), 0); err != nil {
		t.Fatalf("owner bonds to src: %v", err)
	}
	if err := e.CreditGenesisBalance(escrowAddress, NewAmount(1000)); err != nil {
		t.Fatalf("fund escrow: %v", err)
	}

	// Redelegate the owner's 500 away from src at epoch 10: Start = 12, so
	// any infraction_epoch < 12 against src carries to dest.
	if err := e.Redelegate(owner, src, dest, NewAmount(500), 10); err != nil {
		t.Fatalf("Redelegate: %v", err)
	}

	// Infraction occurred at epoch 5, before the redelegation's Start (12):
	// src's voting power at the time still included the 500 that later moved.
	ev := SlashEvidence{
		Validator: src, InfractionEpoch: 5, Type: InfractionDoubleSign,
		ReportedEpoch: 6, VotingPower: NewAmount(1000), TotalVotingPower: NewAmount(1000),
	}
	if err := e.Ingest(ev, 6); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := e.Process(26); err != nil { // processEpoch = InfractionEpoch + unbonding_len
		t.Fatalf("Process: %v", err)
	}

	rate, finalized, err := e.finalizedSlashRate(src, 5)
	if err != nil || !finalized {
		t.Fatalf("finalizedSlashRate: finalized=%v err=%v", finalized, err)
	}
	if rate.cmp(one()) != 0 {
		t.Fatalf("rate = %s, want 1.0", rate)
	}

	// Both the 500 carried to dest and src's own remaining 500 are fully
	// slashed, for 1000 total moved from escrow to the slash pool.
	poolBal, err := e.ledger.Balance(slashPoolAddress)
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if poolBal.Cmp(NewAmount(1000).BigInt()) != 0 {
		t.Fatalf("slash pool balance = %s, want 1000 (both src and carried dest slashed)", poolBal)
	}

	target := Epoch(26 + e.params.PipelineLen)
	srcStake, err := e.kernel().StakeAt(src, target)
	if err != nil {
		t.Fatalf("StakeAt(src): %v", err)
	}
	destStake, err := e.kernel().StakeAt(dest, target)
	if err != nil {
		t.Fatalf("StakeAt(dest): %v", err)
	}
	if !srcStake.IsZero() {
		t.Fatalf("src stake at target = %s, want 0 (its own 500 fully slashed)", srcStake)
	}
	if !destStake.IsZero() {
		t.Fatalf("dest stake at target = %s, want 0 (carried 500 fully slashed)", destStake)
	}
}

func TestRedelegateRejectsUnknownDestination(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	owner := testAddr(7)
	src := testAddr(8)
	unknownDest := testAddr(9)
	mustRegisterValidator(t, e, src)
	if err := e.CreditGenesisBalance(owner, NewAmount(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := e.Redelegate(owner, src, unknownDest, NewAmount(10), 0); err != errors.ErrUnknownValidator {
		t.Fatalf("expected ErrUnknownValidator, got %v", err)
	}
}

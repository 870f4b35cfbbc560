package pos

import (
	"testing"

	"posd/core/errors"
)

func TestKernelScheduleDeltaRejectsWriteToCurrentEpoch(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	val := testAddr(1)

	if err := e.kernel().ScheduleDelta(val, 5, 5, true, NewAmount(10)); err != errors.ErrWriteToCurrentEpoch {
		t.Fatalf("expected ErrWriteToCurrentEpoch, got %v", err)
	}
	if err := e.kernel().ScheduleDelta(val, 5, 3, true, NewAmount(10)); err != errors.ErrWriteToCurrentEpoch {
		t.Fatalf("expected ErrWriteToCurrentEpoch for a past target, got %v", err)
	}
}

func TestKernelStakeAtOnlyFoldsDeltasDueByAsOf(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	val := testAddr(2)

	if err := e.kernel().ScheduleDelta(val, 0, 2, true, NewAmount(100)); err != nil {
		t.Fatalf("schedule 1: %v", err)
	}
	if err := e.kernel().ScheduleDelta(val, 0, 5, true, NewAmount(50)); err != nil {
		t.Fatalf("schedule 2: %v", err)
	}

	if got, err := e.kernel().StakeAt(val, 1); err != nil || got.Cmp(ZeroAmount()) != 0 {
		t.Fatalf("StakeAt(1) = %v, %v; want 0", got, err)
	}
	if got, err := e.kernel().StakeAt(val, 2); err != nil || got.Cmp(NewAmount(100)) != 0 {
		t.Fatalf("StakeAt(2) = %v, %v; want 100", got, err)
	}
	if got, err := e.kernel().StakeAt(val, 4); err != nil || got.Cmp(NewAmount(100)) != 0 {
		t.Fatalf("StakeAt(4) = %v, %v; want 100", got, err)
	}
	if got, err := e.kernel().StakeAt(val, 5); err != nil || got.Cmp(NewAmount(150)) != 0 {
		t.Fatalf("StakeAt(5) = %v, %v; want 150", got, err)
	}
}

func TestKernelFoldMaterializesDueDeltasAndDiscardsThem(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	val := testAddr(3)

	if err := e.kernel().ScheduleDelta(val, 0, 2, true, NewAmount(100)); err != nil {
		t.Fatalf("schedule 1: %v", err)
	}
	if err := e.kernel().ScheduleDelta(val, 0, 5, true, NewAmount(25)); err != nil {
		t.Fatalf("schedule 2: %v", err)
	}

	if err := e.kernel().Fold(val, 2); err != nil {
		t.Fatalf("fold: %v", err)
	}
	rec, err := e.kernel().loadStake(val)
	if err != nil {
		t.Fatalf("loadStake: %v", err)
	}
	if rec.Current.Cmp(NewAmount(100)) != 0 {
		t.Fatalf("Current after fold = %v, want 100", rec.Current)
	}
	if len(rec.Deltas) != 1 || rec.Deltas[0].TargetEpoch != 5 {
		t.Fatalf("unexpected remaining deltas: %+v", rec.Deltas)
	}

	if err := e.kernel().Fold(val, 5); err != nil {
		t.Fatalf("fold 2: %v", err)
	}
	rec, err = e.kernel().loadStake(val)
	if err != nil {
		t.Fatalf("loadStake 2: %v", err)
	}
	if rec.Current.Cmp(NewAmount(125)) != 0 {
		t.Fatalf("Current after second fold = %v, want 125", rec.Current)
	}
	if len(rec.Deltas) != 0 {
		t.Fatalf("expected no remaining deltas, got %+v", rec.Deltas)
	}
}

func TestKernelNegativeDeltaSubtracts(t *testing.T) {
	e := newTestEngine(t, testParams(t))
	val := testAddr(4)

	if err := e.kernel().ScheduleDelta(val, 0, 2, true, NewAmount(100)); err != nil {
		t.Fatalf("schedule bond: %v", err)
	}
	if err := e.kernel().ScheduleDelta(val, 0, 2, false, NewAmount(40)); err != nil {
		t.Fatalf("schedule unbond: %v", err)
	}
	if got, err := e.kernel().StakeAt(val, 2); err != nil || got.Cmp(NewAmount(60)) != 0 {
		t.Fatalf("StakeAt(2) = %v, %v; want 60", got, err)
	}
}

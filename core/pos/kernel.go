package pos

import (
	"sort"

	"posd/core/errors"
	"posd/crypto"
)

// stakeDelta is one pipelined write against a validator's materialized
// stake: a signed amount scheduled to apply at TargetEpoch.
type stakeDelta struct {
	TargetEpoch Epoch
	Positive    bool
	Amount      Amount
}

// stakeRecord is the epoched data kernel's per-validator state (spec §4.2):
// Current holds the value as observed at the validator's last-folded epoch;
// Deltas holds writes scheduled for strictly future epochs, sorted ascending
// by TargetEpoch. Contract: any query at epoch e returns the value as it
// would be observed at the start of e; folding Deltas with TargetEpoch <= e
// into Current is how the epoch-transition hook materializes them.
type stakeRecord struct {
	Current Amount
	Deltas  []stakeDelta
}

func (k *kernel) loadStake(val crypto.Address) (stakeRecord, error) {
	var rec struct {
		Current []byte
		Deltas  []struct {
			TargetEpoch Epoch
			Positive    bool
			Amount      []byte
		}
	}
	ok, err := k.store.KVGet(stakeRecordKey(val), &rec)
	if err != nil {
		return stakeRecord{}, err
	}
	if !ok {
		return stakeRecord{Current: ZeroAmount()}, nil
	}
	out := stakeRecord{Current: AmountFromRLPBytes(rec.Current)}
	for _, d := range rec.Deltas {
		out.Deltas = append(out.Deltas, stakeDelta{
			TargetEpoch: d.TargetEpoch,
			Positive:    d.Positive,
			Amount:      AmountFromRLPBytes(d.Amount),
		})
	}
	return out, nil
}

func (k *kernel) saveStake(val crypto.Address, rec stakeRecord) error {
	type wireDelta struct {
		TargetEpoch Epoch
		Positive    bool
		Amount      []byte
	}
	wire := struct {
		Current []byte
		Deltas  []wireDelta
	}{Current: rec.Current.RLPBytes()}
	for _, d := range rec.Deltas {
		wire.Deltas = append(wire.Deltas, wireDelta{TargetEpoch: d.TargetEpoch, Positive: d.Positive, Amount: d.Amount.RLPBytes()})
	}
	return k.store.KVPut(stakeRecordKey(val), wire)
}

func stakeRecordKey(val crypto.Address) []byte {
	return []byte("/kernel/stake/" + addrHex(val))
}

// kernel is the epoched data kernel collaborator shared by the registry,
// bond ledger, and redelegation ledger.
type kernel struct {
	store *Store
}

// ScheduleDelta records a pipelined stake write targeting epoch. Per spec
// §4.2, writes at epoch e targeting epoch e fail.
func (k *kernel) ScheduleDelta(val crypto.Address, currentEpoch, target Epoch, positive bool, amt Amount) error {
	if target <= currentEpoch {
		return errors.ErrWriteToCurrentEpoch
	}
	rec, err := k.loadStake(val)
	if err != nil {
		return err
	}
	rec.Deltas = append(rec.Deltas, stakeDelta{TargetEpoch: target, Positive: positive, Amount: amt})
	sort.SliceStable(rec.Deltas, func(i, j int) bool { return rec.Deltas[i].TargetEpoch < rec.Deltas[j].TargetEpoch })
	return k.saveStake(val, rec)
}

// StakeAt returns the value of a validator's stake as observed at asOf,
// folding in every scheduled delta with TargetEpoch <= asOf without
// mutating persisted state.
func (k *kernel) StakeAt(val crypto.Address, asOf Epoch) (Amount, error) {
	rec, err := k.loadStake(val)
	if err != nil {
		return ZeroAmount(), err
	}
	total := rec.Current
	for _, d := range rec.Deltas {
		if d.TargetEpoch > asOf {
			continue
		}
		if d.Positive {
			total = total.Add(d.Amount)
		} else {
			total = total.Sub(d.Amount)
		}
	}
	return total, nil
}

// Fold materializes every delta with TargetEpoch <= newEpoch into Current and
// discards them, advancing the validator's last-folded epoch. Called once per
// validator during the epoch-transition hook.
func (k *kernel) Fold(val crypto.Address, newEpoch Epoch) error {
	rec, err := k.loadStake(val)
	if err != nil {
		return err
	}
	remaining := rec.Deltas[:0]
	changed := false
	for _, d := range rec.Deltas {
		if d.TargetEpoch <= newEpoch {
			if d.Positive {
				rec.Current = rec.Current.Add(d.Amount)
			} else {
				rec.Current = rec.Current.Sub(d.Amount)
			}
			changed = true
			continue
		}
		remaining = append(remaining, d)
	}
	rec.Deltas = remaining
	if !changed {
		return nil
	}
	return k.saveStake(val, rec)
}

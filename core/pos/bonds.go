package pos

import (
	"posd/core/errors"
	"posd/core/events"
	"posd/crypto"
)

type bondWire struct {
	Owner     []byte
	Validator []byte
	Start     Epoch
	Amount    []byte
}

func bondToWire(b BondRecord) bondWire {
	return bondWire{Owner: b.Owner.Bytes(), Validator: b.Validator.Bytes(), Start: b.Start, Amount: b.Amount.RLPBytes()}
}

func bondFromWire(w bondWire) (BondRecord, error) {
	owner, err := crypto.NewAddress(crypto.NHBPrefix, w.Owner)
	if err != nil {
		return BondRecord{}, err
	}
	val, err := crypto.NewAddress(crypto.NHBPrefix, w.Validator)
	if err != nil {
		return BondRecord{}, err
	}
	return BondRecord{Owner: owner, Validator: val, Start: w.Start, Amount: AmountFromRLPBytes(w.Amount)}, nil
}

func (e *Engine) getBond(owner, val crypto.Address, start Epoch) (BondRecord, bool, error) {
	var w bondWire
	ok, err := e.store.KVGet(bondKey(owner, val, start), &w)
	if err != nil || !ok {
		return BondRecord{}, ok, err
	}
	rec, err := bondFromWire(w)
	return rec, true, err
}

func (e *Engine) putBond(rec BondRecord) error {
	if err := e.store.KVPut(bondKey(rec.Owner, rec.Validator, rec.Start), bondToWire(rec)); err != nil {
		return err
	}
	return e.store.KVAppend(bondIndexKey(rec.Owner, rec.Validator), bondKey(rec.Owner, rec.Validator, rec.Start))
}

// bondStarts returns every creation epoch for which owner has a bond record
// against val, in FIFO (ascending) order, by decoding the secondary index.
func (e *Engine) bondStarts(owner, val crypto.Address) ([]Epoch, error) {
	keys, err := e.store.KVGetList(bondIndexKey(owner, val))
	if err != nil {
		return nil, err
	}
	starts := make([]Epoch, 0, len(keys))
	for _, k := range keys {
		var w bondWire
		ok, err := e.store.KVGet(k, &w)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		starts = append(starts, w.Start)
	}
	return starts, nil
}

// Bond escrows amt from owner and schedules it to take effect against val at
// currentEpoch+pipeline_len (spec §4.4). A validator's own first bond must be
// a self-bond (owner == val); delegating is rejected while the validator's
// stake at currentEpoch is zero, i.e. until its self-bond has taken effect.
func (e *Engine) Bond(owner, val crypto.Address, amt Amount, currentEpoch Epoch) error {
	if amt.IsZero() {
		return errors.ErrInvalidAmount
	}
	v, ok, err := e.GetValidator(val)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	if v.Jailed {
		return errors.ErrValidatorJailed
	}
	if owner.String() != val.String() {
		selfStake, err := e.kernel().StakeAt(val, currentEpoch)
		if err != nil {
			return err
		}
		if selfStake.IsZero() {
			return errors.ErrSelfBondRequired
		}
	}

	if err := e.ledger.Transfer(owner, escrowAddress, amt.BigInt()); err != nil {
		return errors.ErrInsufficientBalance
	}

	start := currentEpoch + e.params.PipelineLen
	existing, found, err := e.getBond(owner, val, start)
	if err != nil {
		return err
	}
	if found {
		existing.Amount = existing.Amount.Add(amt)
	} else {
		existing = BondRecord{Owner: owner, Validator: val, Start: start, Amount: amt}
	}
	if err := e.putBond(existing); err != nil {
		return err
	}
	if err := e.kernel().ScheduleDelta(val, currentEpoch, start, true, amt); err != nil {
		return err
	}
	e.emit(events.Bonded{Owner: owner.String(), Validator: val.String(), Amount: amt.String(), Start: start}.Event())
	return nil
}

// Unbond consumes amt from owner's FIFO-ordered bonds against val and queues
// it for withdrawal at n+pipeline_len+unbonding_len (spec §4.4). It snapshots
// every infraction already committed against val at or before the current
// epoch so Withdraw can apply carried slashes even if they finalize later.
func (e *Engine) Unbond(owner, val crypto.Address, amt Amount, currentEpoch Epoch) error {
	if amt.IsZero() {
		return errors.ErrInvalidAmount
	}
	starts, err := e.bondStarts(owner, val)
	if err != nil {
		return err
	}
	remaining := amt
	for _, start := range starts {
		if remaining.IsZero() {
			break
		}
		rec, ok, err := e.getBond(owner, val, start)
		if err != nil {
			return err
		}
		if !ok || rec.Amount.IsZero() {
			continue
		}
		var taken Amount
		if rec.Amount.Cmp(remaining) <= 0 {
			taken = rec.Amount
			rec.Amount = ZeroAmount()
		} else {
			taken = remaining
			rec.Amount = rec.Amount.Sub(remaining)
		}
		remaining = remaining.Sub(taken)
		if err := e.putBond(rec); err != nil {
			return err
		}

		withdraw := currentEpoch + e.params.PipelineLen + e.params.UnbondingLen
		carried, err := e.committedSlashSnapshots(val, currentEpoch)
		if err != nil {
			return err
		}
		unbond := UnbondRecord{
			Owner: owner, Validator: val, BondStart: start,
			WithdrawEpoch: withdraw, Amount: taken, CarriedSlashes: carried,
		}
		if err := e.putUnbond(unbond); err != nil {
			return err
		}
		if err := e.kernel().ScheduleDelta(val, currentEpoch, currentEpoch+e.params.PipelineLen, false, taken); err != nil {
			return err
		}
		e.emit(events.Unbonded{Owner: owner.String(), Validator: val.String(), Amount: taken.String(), WithdrawEpoch: withdraw}.Event())
	}
	if !remaining.IsZero() {
		return errors.ErrInsufficientBond
	}
	return nil
}

type unbondWire struct {
	Owner, Validator           []byte
	BondStart, WithdrawEpoch   Epoch
	Amount                     []byte
	CarriedSlashes             []SlashSnapshot
}

func (e *Engine) putUnbond(u UnbondRecord) error {
	w := unbondWire{
		Owner: u.Owner.Bytes(), Validator: u.Validator.Bytes(),
		BondStart: u.BondStart, WithdrawEpoch: u.WithdrawEpoch,
		Amount: u.Amount.RLPBytes(), CarriedSlashes: u.CarriedSlashes,
	}
	key := unbondKey(u.Owner, u.Validator, u.BondStart, u.WithdrawEpoch)
	if err := e.store.KVPut(key, w); err != nil {
		return err
	}
	return e.store.KVAppend(unbondIndexKey(u.Owner, u.Validator), key)
}

// Withdraw releases every due unbond (WithdrawEpoch <= currentEpoch) for
// owner against val, netting out any slash that finalized against a carried
// infraction before release (spec §4.4/§4.6 interaction).
func (e *Engine) Withdraw(owner, val crypto.Address, currentEpoch Epoch) (Amount, error) {
	keys, err := e.store.KVGetList(unbondIndexKey(owner, val))
	if err != nil {
		return ZeroAmount(), err
	}
	total := ZeroAmount()
	for _, key := range keys {
		var w unbondWire
		ok, err := e.store.KVGet(key, &w)
		if err != nil {
			return ZeroAmount(), err
		}
		if !ok || w.WithdrawEpoch > currentEpoch {
			continue
		}
		amt := AmountFromRLPBytes(w.Amount)
		if amt.IsZero() {
			continue
		}
		for _, snap := range w.CarriedSlashes {
			rate, finalized, err := e.finalizedSlashRate(val, snap.InfractionEpoch)
			if err != nil {
				return ZeroAmount(), err
			}
			if finalized {
				amt = one().sub(rate).applyToAmount(amt)
			}
		}
		total = total.Add(amt)
		w.Amount = nil
		if err := e.store.KVPut(key, w); err != nil {
			return ZeroAmount(), err
		}
	}
	if total.IsZero() {
		return ZeroAmount(), nil
	}
	if err := e.ledger.Transfer(escrowAddress, owner, total.BigInt()); err != nil {
		return ZeroAmount(), err
	}
	e.emit(events.Withdrawn{Owner: owner.String(), Validator: val.String(), Amount: total.String()}.Event())
	return total, nil
}

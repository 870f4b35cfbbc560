package pos

import (
	"posd/core/errors"
	"posd/core/events"
	"posd/crypto"
)

type redelegationWire struct {
	Owner, Src, Dest []byte
	Start, End       Epoch
	Amount           []byte
	SrcAtInfr        []byte
}

func redelegationToWire(r RedelegationRecord) redelegationWire {
	return redelegationWire{
		Owner: r.Owner.Bytes(), Src: r.Src.Bytes(), Dest: r.Dest.Bytes(),
		Start: r.Start, End: r.End, Amount: r.Amount.RLPBytes(), SrcAtInfr: r.SrcAtInfr.RLPBytes(),
	}
}

func redelegationFromWire(w redelegationWire) (RedelegationRecord, error) {
	owner, err := crypto.NewAddress(crypto.NHBPrefix, w.Owner)
	if err != nil {
		return RedelegationRecord{}, err
	}
	src, err := crypto.NewAddress(crypto.NHBPrefix, w.Src)
	if err != nil {
		return RedelegationRecord{}, err
	}
	dest, err := crypto.NewAddress(crypto.NHBPrefix, w.Dest)
	if err != nil {
		return RedelegationRecord{}, err
	}
	return RedelegationRecord{
		Owner: owner, Src: src, Dest: dest, Start: w.Start, End: w.End,
		Amount: AmountFromRLPBytes(w.Amount), SrcAtInfr: AmountFromRLPBytes(w.SrcAtInfr),
	}, nil
}

func (e *Engine) putRedelegation(r RedelegationRecord) error {
	key := redelegationKey(r.Owner, r.Src, r.Dest, r.Start)
	if err := e.store.KVPut(key, redelegationToWire(r)); err != nil {
		return err
	}
	if err := e.store.KVAppend(redelegationIndexKey(r.Owner), key); err != nil {
		return err
	}
	return e.store.KVAppend(redelegationBySrcIndexKey(r.Src), key)
}

// redelegationsCarryingSrcInfraction returns every redelegation record moved
// out of src whose Start postdates infractionEpoch: the redelegated amount
// was still part of src's stake at the time of the infraction, so it stays
// slashable at dest instead of src (spec §4.5's carry rule, scenario S3).
// Start > infractionEpoch also guarantees processEpoch = infractionEpoch +
// unbonding_len falls before End = Start + unbonding_len, so no separate
// expiry check is needed here.
func (e *Engine) redelegationsCarryingSrcInfraction(src crypto.Address, infractionEpoch Epoch) ([]RedelegationRecord, error) {
	keys, err := e.store.KVGetList(redelegationBySrcIndexKey(src))
	if err != nil {
		return nil, err
	}
	var out []RedelegationRecord
	for _, key := range keys {
		var w redelegationWire
		ok, err := e.store.KVGet(key, &w)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rec, err := redelegationFromWire(w)
		if err != nil {
			return nil, err
		}
		if rec.Start > infractionEpoch {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Redelegate moves amt from owner's bond against src directly to dest,
// skipping the unbonding wait (spec §4.5): it consumes owner's bond entries
// against src in FIFO order exactly like Unbond, taking part of an entry when
// amt does not cover it whole (a whole-entry move is not enforced), but
// schedules the corresponding positive delta against dest instead of
// releasing to the owner. Until End the moved stake stays slashable at dest
// for a src infraction whose infraction epoch is before Start (SrcAtInfr
// records src's stake at the redelegation epoch for that carry rule).
func (e *Engine) Redelegate(owner, src, dest crypto.Address, amt Amount, currentEpoch Epoch) error {
	if amt.IsZero() {
		return errors.ErrInvalidAmount
	}
	if _, ok, err := e.GetValidator(dest); err != nil {
		return err
	} else if !ok {
		return errors.ErrUnknownValidator
	}

	if active, err := e.redelegationActiveSince(owner, src, dest, currentEpoch); err != nil {
		return err
	} else if active {
		return errors.ErrRedelegationFrozen
	}

	starts, err := e.bondStarts(owner, src)
	if err != nil {
		return err
	}
	remaining := amt
	for _, start := range starts {
		if remaining.IsZero() {
			break
		}
		rec, ok, err := e.getBond(owner, src, start)
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
		if err := e.kernel().ScheduleDelta(src, currentEpoch, currentEpoch+e.params.PipelineLen, false, taken); err != nil {
			return err
		}
	}
	if !remaining.IsZero() {
		return errors.ErrInsufficientBond
	}

	start := currentEpoch + e.params.PipelineLen
	end := start + e.params.UnbondingLen
	srcStake, err := e.kernel().StakeAt(src, currentEpoch)
	if err != nil {
		return err
	}
	rec := RedelegationRecord{Owner: owner, Src: src, Dest: dest, Start: start, End: end, Amount: amt, SrcAtInfr: srcStake}
	if err := e.putRedelegation(rec); err != nil {
		return err
	}
	if err := e.kernel().ScheduleDelta(dest, currentEpoch, start, true, amt); err != nil {
		return err
	}
	destBond, found, err := e.getBond(owner, dest, start)
	if err != nil {
		return err
	}
	if found {
		destBond.Amount = destBond.Amount.Add(amt)
	} else {
		destBond = BondRecord{Owner: owner, Validator: dest, Start: start, Amount: amt}
	}
	if err := e.putBond(destBond); err != nil {
		return err
	}

	e.emit(events.Redelegated{Owner: owner.String(), Src: src.String(), Dest: dest.String(), Amount: amt.String(), Start: start, End: end}.Event())
	return nil
}

// redelegationActiveSince reports whether owner already has a src->dest
// redelegation whose slashability window (Start..End) has not yet closed,
// which per spec §4.5 must block a second redelegation of the same bond
// chain until it is resolved.
func (e *Engine) redelegationActiveSince(owner, src, dest crypto.Address, currentEpoch Epoch) (bool, error) {
	keys, err := e.store.KVGetList(redelegationIndexKey(owner))
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		var w redelegationWire
		ok, err := e.store.KVGet(key, &w)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		rec, err := redelegationFromWire(w)
		if err != nil {
			return false, err
		}
		if rec.Src.String() == src.String() && rec.Dest.String() == dest.String() && currentEpoch < rec.End {
			return true, nil
		}
	}
	return false, nil
}

package pos

import (
	"math/big"

	"posd/core/errors"
	"posd/core/events"
	"posd/crypto"
)

type slashEvidenceWire struct {
	Validator        []byte
	InfractionEpoch  Epoch
	Type             uint8
	ReportedEpoch    Epoch
	ProcessEpoch     Epoch
	VotingPower      []byte
	TotalVotingPower []byte
	Processed        bool
	Rate             []byte
}

func evidenceToWire(ev SlashEvidence) slashEvidenceWire {
	return slashEvidenceWire{
		Validator: ev.Validator.Bytes(), InfractionEpoch: ev.InfractionEpoch, Type: uint8(ev.Type),
		ReportedEpoch: ev.ReportedEpoch, ProcessEpoch: ev.ProcessEpoch,
		VotingPower: ev.VotingPower.RLPBytes(), TotalVotingPower: ev.TotalVotingPower.RLPBytes(),
		Processed: ev.Processed, Rate: ev.Rate.bytes(),
	}
}

func evidenceFromWire(w slashEvidenceWire) (SlashEvidence, error) {
	val, err := crypto.NewAddress(crypto.NHBPrefix, w.Validator)
	if err != nil {
		return SlashEvidence{}, err
	}
	return SlashEvidence{
		Validator: val, InfractionEpoch: w.InfractionEpoch, Type: InfractionType(w.Type),
		ReportedEpoch: w.ReportedEpoch, ProcessEpoch: w.ProcessEpoch,
		VotingPower: AmountFromRLPBytes(w.VotingPower), TotalVotingPower: AmountFromRLPBytes(w.TotalVotingPower),
		Processed: w.Processed, Rate: fixedFromBytes(w.Rate),
	}, nil
}

func (e *Engine) putEvidence(ev SlashEvidence) error {
	key := slashQueuedKey(ev.ProcessEpoch, ev.Validator, ev.InfractionEpoch, ev.Type)
	return e.store.KVPut(key, evidenceToWire(ev))
}

func (e *Engine) getEvidence(key []byte) (SlashEvidence, bool, error) {
	var w slashEvidenceWire
	ok, err := e.store.KVGet(key, &w)
	if err != nil || !ok {
		return SlashEvidence{}, ok, err
	}
	ev, err := evidenceFromWire(w)
	return ev, true, err
}

// Ingest records a single reported infraction (spec §4.6). Evidence is
// deduplicated by (validator, infraction_epoch, type): a repeat report is
// silently dropped rather than surfaced as an error, matching how consensus
// engines routinely re-broadcast the same double-sign evidence. Jailing is
// immediate; the cubic rate itself is only known once Process runs at
// infraction_epoch+unbonding_len.
func (e *Engine) Ingest(ev SlashEvidence, currentEpoch Epoch) error {
	if ev.Type == InfractionUnknown {
		return errors.ErrInvalidAmount
	}
	keys, err := e.store.KVGetList(slashEvidenceByValidatorIndexKey(ev.Validator))
	if err != nil {
		return err
	}
	for _, k := range keys {
		existing, ok, err := e.getEvidence(k)
		if err != nil {
			return err
		}
		if ok && existing.InfractionEpoch == ev.InfractionEpoch && existing.Type == ev.Type {
			return nil
		}
	}

	ev.ProcessEpoch = ev.InfractionEpoch + e.params.UnbondingLen
	ev.Processed = false
	ev.Rate = fixed{n: big.NewInt(0)}

	if err := e.Jail(ev.Validator, currentEpoch); err != nil {
		return err
	}
	if err := e.putEvidence(ev); err != nil {
		return err
	}
	key := slashQueuedKey(ev.ProcessEpoch, ev.Validator, ev.InfractionEpoch, ev.Type)
	if err := e.store.KVAppend(slashQueuedIndexKey(ev.ProcessEpoch), key); err != nil {
		return err
	}
	if err := e.store.KVAppend(slashEvidenceByValidatorIndexKey(ev.Validator), key); err != nil {
		return err
	}
	e.telemetry.IncEvidenceIngested(ev.Type.String())
	return nil
}

// committedSlashSnapshots returns every infraction ingested (not necessarily
// finalized) against val at or before asOf, used by Unbond to record the
// exposure an outgoing unbond must still carry.
func (e *Engine) committedSlashSnapshots(val crypto.Address, asOf Epoch) ([]SlashSnapshot, error) {
	keys, err := e.store.KVGetList(slashEvidenceByValidatorIndexKey(val))
	if err != nil {
		return nil, err
	}
	var out []SlashSnapshot
	for _, k := range keys {
		ev, ok, err := e.getEvidence(k)
		if err != nil {
			return nil, err
		}
		if ok && ev.InfractionEpoch <= asOf {
			out = append(out, SlashSnapshot{InfractionEpoch: ev.InfractionEpoch, Type: ev.Type})
		}
	}
	return out, nil
}

type slashFinalWire struct {
	Rate []byte
}

// finalizedSlashRate reports the cubic rate committed for a (validator,
// infraction epoch) pair once Process has run, or (_, false, nil) if it
// hasn't yet.
func (e *Engine) finalizedSlashRate(val crypto.Address, infractionEpoch Epoch) (fixed, bool, error) {
	var w slashFinalWire
	ok, err := e.store.KVGet(slashFinalKey(val, infractionEpoch), &w)
	if err != nil || !ok {
		return fixed{}, false, err
	}
	return fixedFromBytes(w.Rate), true, nil
}

var nineFixed = fixed{n: big.NewInt(9 * rewardScale)}

// Process finalizes every infraction queued to resolve at processEpoch
// (spec §4.6): for each, it sums the misbehaving-stake fraction S over every
// infraction (any validator) whose infraction epoch falls within
// [e-cubic_slashing_window, e+cubic_slashing_window], computes
// rate = max(r_min_type, min(1, 9*S^2)), debits the slashed amount from
// escrow into the slash pool, and commits the rate for Withdraw's carried-
// slash accounting. Processing is idempotent: an already-processed entry is
// skipped.
func (e *Engine) Process(processEpoch Epoch) error {
	dueKeys, err := e.store.KVGetList(slashQueuedIndexKey(processEpoch))
	if err != nil {
		return err
	}

	window := e.params.CubicSlashingWindow
	for _, key := range dueKeys {
		ev, ok, err := e.getEvidence(key)
		if err != nil {
			return err
		}
		if !ok || ev.Processed {
			continue
		}

		s, err := e.sumMisbehavingFraction(ev.InfractionEpoch, window)
		if err != nil {
			return err
		}
		rate := nineFixed.mul(s).mul(s)
		if rate.cmp(one()) > 0 {
			rate = one()
		}
		if minRate, ok := e.params.SlashMinRate[ev.Type]; ok && rate.cmp(minRate) < 0 {
			rate = minRate
		}

		// Spec §4.5's carry rule: any amount the validator redelegated away
		// after this infraction occurred (Start > InfractionEpoch) was still
		// part of its stake when it misbehaved, so that amount is slashed at
		// dest instead of here, not counted twice against src.
		carried, err := e.redelegationsCarryingSrcInfraction(ev.Validator, ev.InfractionEpoch)
		if err != nil {
			return err
		}
		target := processEpoch + e.params.PipelineLen
		votingPower := ev.VotingPower
		for _, rec := range carried {
			base := rec.Amount
			if base.Cmp(rec.SrcAtInfr) > 0 {
				base = rec.SrcAtInfr
			}
			if base.Cmp(votingPower) > 0 {
				base = votingPower
			}
			carriedSlashed := rate.applyToAmount(base)
			if carriedSlashed.IsZero() {
				continue
			}
			if err := e.ledger.Transfer(escrowAddress, slashPoolAddress, carriedSlashed.BigInt()); err != nil {
				return err
			}
			if err := e.kernel().ScheduleDelta(rec.Dest, processEpoch, target, false, carriedSlashed); err != nil {
				return err
			}
			votingPower = votingPower.Sub(base)
			e.emit(events.Slashed{
				Validator: rec.Dest.String(), Rate: rate.String(),
				InfractionEpoch: ev.InfractionEpoch, Removed: carriedSlashed.String(),
			}.Event())
		}

		slashed := rate.applyToAmount(votingPower)
		if !slashed.IsZero() {
			if err := e.ledger.Transfer(escrowAddress, slashPoolAddress, slashed.BigInt()); err != nil {
				return err
			}
			if err := e.kernel().ScheduleDelta(ev.Validator, processEpoch, target, false, slashed); err != nil {
				return err
			}
		}

		ev.Processed = true
		ev.Rate = rate
		if err := e.putEvidence(ev); err != nil {
			return err
		}
		if err := e.store.KVPut(slashFinalKey(ev.Validator, ev.InfractionEpoch), slashFinalWire{Rate: rate.bytes()}); err != nil {
			return err
		}

		e.emit(events.Slashed{
			Validator: ev.Validator.String(), Rate: rate.String(),
			InfractionEpoch: ev.InfractionEpoch, Removed: slashed.String(),
		}.Event())
		e.telemetry.IncSlashProcessed(ev.Type.String())
		rateFloat, _ := new(big.Float).SetInt(rate.n).Float64()
		e.telemetry.SetSlashRate(ev.Validator.String(), ev.Type.String(), rateFloat/float64(rewardScale))
	}
	return nil
}

// sumMisbehavingFraction scans the queued-evidence buckets whose process
// epoch falls within the window (infraction epoch and process epoch differ
// by the constant unbonding_len, so the window translates directly) and
// sums VotingPower/TotalVotingPower for every entry whose own infraction
// epoch lies within window of center.
func (e *Engine) sumMisbehavingFraction(center Epoch, window Epoch) (fixed, error) {
	total := fixed{n: big.NewInt(0)}
	lowBucket := subClampEpoch(center+e.params.UnbondingLen, window)
	highBucket := center + e.params.UnbondingLen + window
	for p := lowBucket; p <= highBucket; p++ {
		keys, err := e.store.KVGetList(slashQueuedIndexKey(p))
		if err != nil {
			return total, err
		}
		for _, k := range keys {
			ev, ok, err := e.getEvidence(k)
			if err != nil {
				return total, err
			}
			if !ok {
				continue
			}
			if epochDiff(ev.InfractionEpoch, center) > window {
				continue
			}
			if ev.TotalVotingPower.IsZero() {
				continue
			}
			total = total.add(fixedFromRatio(ev.VotingPower.BigInt(), ev.TotalVotingPower.BigInt()))
		}
	}
	return total, nil
}

func subClampEpoch(v, delta Epoch) Epoch {
	if delta > v {
		return 0
	}
	return v - delta
}

func epochDiff(a, b Epoch) Epoch {
	if a > b {
		return a - b
	}
	return b - a
}

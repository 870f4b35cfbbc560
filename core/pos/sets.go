package pos

import (
	"posd/core/epoch"
	"posd/core/events"
	"posd/crypto"
)

// setsWire is the persisted representation of one ordered validator set.
type setsWire struct {
	Addresses [][]byte
}

func (e *Engine) saveSet(key []byte, addrs []crypto.Address) error {
	w := setsWire{Addresses: make([][]byte, len(addrs))}
	for i, a := range addrs {
		w.Addresses[i] = a.Bytes()
	}
	return e.store.KVPut(key, w)
}

func (e *Engine) loadSet(key []byte) ([]crypto.Address, error) {
	var w setsWire
	ok, err := e.store.KVGet(key, &w)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]crypto.Address, len(w.Addresses))
	for i, raw := range w.Addresses {
		addr, err := crypto.NewAddress(crypto.NHBPrefix, raw)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

// ConsensusSet returns the ordered consensus validator set recorded for epoch.
func (e *Engine) ConsensusSet(epoch Epoch) ([]crypto.Address, error) {
	return e.loadSet(consensusSetKey(epoch))
}

// BelowCapacitySet returns the ordered below_capacity set for epoch.
func (e *Engine) BelowCapacitySet(epoch Epoch) ([]crypto.Address, error) {
	return e.loadSet(belowCapacitySetKey(epoch))
}

// BelowThresholdSet returns the below_threshold membership for epoch.
func (e *Engine) BelowThresholdSet(epoch Epoch) ([]crypto.Address, error) {
	return e.loadSet(belowThresholdSetKey(epoch))
}

// recomputeSets implements spec §4.3's set-transition algorithm. It reads
// every candidate's stake as of targetEpoch (new epoch+pipeline_len; deltas
// up to the new epoch are already folded at this point in the
// epoch-transition hook, later ones are applied by StakeAt), partitions by
// min_validator_stake, sorts the eligible remainder by (stake desc, address
// asc) via the shared epoch.SortWeights tie-break, and caps the top
// max_consensus_validators into the consensus set.
func (e *Engine) recomputeSets(targetEpoch Epoch) error {
	addrs, err := e.AllValidatorAddresses()
	if err != nil {
		return err
	}

	prevConsensus, _ := e.ConsensusSet(targetEpoch - 1)
	prevBelowCap, _ := e.BelowCapacitySet(targetEpoch - 1)
	prevActive := map[string]bool{}
	for _, a := range prevConsensus {
		prevActive[a.String()] = true
	}
	for _, a := range prevBelowCap {
		prevActive[a.String()] = true
	}

	weights := make([]epoch.Weight, 0, len(addrs))
	belowThreshold := make([]crypto.Address, 0)
	candidateByAddr := map[string]crypto.Address{}

	for _, addr := range addrs {
		v, ok, err := e.GetValidator(addr)
		if err != nil {
			return err
		}
		if !ok || v.Jailed || v.State == ValidatorInactive {
			continue
		}
		stake, err := e.kernel().StakeAt(addr, targetEpoch)
		if err != nil {
			return err
		}
		if stake.Cmp(e.params.MinValidatorStake) < 0 {
			belowThreshold = append(belowThreshold, addr)
			continue
		}
		stakeBig := stake.BigInt()
		weights = append(weights, epoch.Weight{
			Address:   addr.Bytes(),
			Stake:     stakeBig,
			Composite: stakeBig,
		})
		candidateByAddr[addr.String()] = addr
	}

	epoch.SortWeights(weights)

	maxConsensus := int(e.params.MaxConsensusValidators)
	var consensus, belowCapacity []crypto.Address
	for i, w := range weights {
		addr := candidateByAddr[addrFromWeight(w)]
		if i < maxConsensus {
			consensus = append(consensus, addr)
		} else {
			belowCapacity = append(belowCapacity, addr)
		}
	}

	if err := e.saveSet(consensusSetKey(targetEpoch), consensus); err != nil {
		return err
	}
	if err := e.saveSet(belowCapacitySetKey(targetEpoch), belowCapacity); err != nil {
		return err
	}
	if err := e.saveSet(belowThresholdSetKey(targetEpoch), belowThreshold); err != nil {
		return err
	}

	newActive := map[string]bool{}
	var reordered []string
	for _, a := range append(append([]crypto.Address{}, consensus...), belowCapacity...) {
		newActive[a.String()] = true
	}
	var added, removed []string
	for addr := range newActive {
		if !prevActive[addr] {
			added = append(added, addr)
		} else {
			reordered = append(reordered, addr)
		}
	}
	for addr := range prevActive {
		if !newActive[addr] {
			removed = append(removed, addr)
		}
	}
	e.emit(events.ValidatorSetUpdate{Epoch: targetEpoch, Added: added, Removed: removed, Reordered: reordered}.Event())

	e.telemetry.SetSetSize("consensus", float64(len(consensus)))
	e.telemetry.SetSetSize("below_capacity", float64(len(belowCapacity)))
	e.telemetry.SetSetSize("below_threshold", float64(len(belowThreshold)))

	return nil
}

func addrFromWeight(w epoch.Weight) string {
	addr, err := crypto.NewAddress(crypto.NHBPrefix, w.Address)
	if err != nil {
		return ""
	}
	return addr.String()
}

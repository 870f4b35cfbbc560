package pos

import (
	"github.com/ethereum/go-ethereum/rlp"

	"posd/core/errors"
	"posd/core/events"
	"posd/crypto"
)

// encodeValidatorForCommit RLP-encodes a validator record for insertion into
// the audit-export trie (see commit.go), reusing the same wire shape the
// flat KV store persists.
func encodeValidatorForCommit(v Validator) ([]byte, error) {
	return rlp.EncodeToBytes(toWire(v))
}

type validatorWire struct {
	Address            []byte
	ConsensusKey       []byte
	Commission         []byte
	PendingCommission  []byte
	MaxCommissionDelta []byte
	Metadata           string
	State              uint8
	Jailed             bool
	JailEpoch          Epoch
}

func toWire(v Validator) validatorWire {
	return validatorWire{
		Address:            v.Address.Bytes(),
		ConsensusKey:       v.ConsensusKey,
		Commission:         v.Commission.bytes(),
		PendingCommission:  v.PendingCommission.bytes(),
		MaxCommissionDelta: v.MaxCommissionDelta.bytes(),
		Metadata:           v.Metadata,
		State:              uint8(v.State),
		Jailed:             v.Jailed,
		JailEpoch:          v.JailEpoch,
	}
}

func fromWire(w validatorWire) (Validator, error) {
	addr, err := crypto.NewAddress(crypto.NHBPrefix, w.Address)
	if err != nil {
		return Validator{}, err
	}
	return Validator{
		Address:            addr,
		ConsensusKey:       w.ConsensusKey,
		Commission:         fixedFromBytes(w.Commission),
		PendingCommission:  fixedFromBytes(w.PendingCommission),
		MaxCommissionDelta: fixedFromBytes(w.MaxCommissionDelta),
		Metadata:           w.Metadata,
		State:              ValidatorState(w.State),
		Jailed:             w.Jailed,
		JailEpoch:          w.JailEpoch,
	}, nil
}

// GetValidator loads a validator's registry record.
func (e *Engine) GetValidator(addr crypto.Address) (Validator, bool, error) {
	var w validatorWire
	ok, err := e.store.KVGet(validatorKey(addr), &w)
	if err != nil || !ok {
		return Validator{}, ok, err
	}
	v, err := fromWire(w)
	return v, true, err
}

func (e *Engine) putValidator(v Validator) error {
	return e.store.KVPut(validatorKey(v.Address), toWire(v))
}

func (e *Engine) addToValidatorIndex(addr crypto.Address) error {
	list, err := e.store.KVGetList(validatorListKey())
	if err != nil {
		return err
	}
	key := addr.Bytes()
	for _, existing := range list {
		if string(existing) == string(key) {
			return nil
		}
	}
	return e.store.KVAppend(validatorListKey(), key)
}

// AllValidatorAddresses returns every registered validator address, used by
// the epoch-transition hook to iterate the registry.
func (e *Engine) AllValidatorAddresses() ([]crypto.Address, error) {
	list, err := e.store.KVGetList(validatorListKey())
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(list))
	for _, raw := range list {
		addr, err := crypto.NewAddress(crypto.NHBPrefix, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// BecomeValidator registers a new candidate validator. The initial self-bond
// is handled by a separate Bond call from the transaction runtime; this only
// creates the registry entry.
func (e *Engine) BecomeValidator(addr crypto.Address, consensusKey []byte, commission fixed, maxDelta fixed, metadata string) error {
	if _, ok, err := e.GetValidator(addr); err != nil {
		return err
	} else if ok {
		return errors.ErrInvalidAmount // already exists; re-registration is a validation error
	}
	if commission.sign() < 0 || commission.cmp(one()) > 0 {
		return errors.ErrCommissionOutOfRange
	}
	v := Validator{
		Address:            addr,
		ConsensusKey:       consensusKey,
		Commission:         commission,
		PendingCommission:  commission,
		MaxCommissionDelta: maxDelta,
		Metadata:           metadata,
		State:              ValidatorCandidate,
	}
	if err := e.putValidator(v); err != nil {
		return err
	}
	return e.addToValidatorIndex(addr)
}

// ChangeCommission sets a new commission rate, rejecting a change whose
// absolute difference from the current rate exceeds the validator's
// MaxCommissionDelta. The new rate replaces Commission (and
// PendingCommission) immediately; it is not deferred to an epoch boundary.
// The bound is checked per call against the current rate only: repeated
// calls within one epoch are not limited in number or cumulative change.
func (e *Engine) ChangeCommission(addr crypto.Address, newRate fixed) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	if v.Jailed {
		return errors.ErrValidatorJailed
	}
	if newRate.sign() < 0 || newRate.cmp(one()) > 0 {
		return errors.ErrCommissionOutOfRange
	}
	delta := newRate.sub(v.Commission)
	if delta.sign() < 0 {
		delta = v.Commission.sub(newRate)
	}
	if delta.cmp(v.MaxCommissionDelta) > 0 {
		return errors.ErrCommissionChangeTooBig
	}
	v.Commission = newRate
	v.PendingCommission = newRate
	return e.putValidator(v)
}

// ChangeConsensusKey updates the epoched consensus key.
func (e *Engine) ChangeConsensusKey(addr crypto.Address, newKey []byte) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	v.ConsensusKey = newKey
	return e.putValidator(v)
}

// Deactivate moves a validator out of all active sets voluntarily.
func (e *Engine) Deactivate(addr crypto.Address) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	v.State = ValidatorInactive
	return e.putValidator(v)
}

// Reactivate re-enters a previously deactivated validator as a candidate; its
// stake-based set placement is resolved at the next epoch boundary.
func (e *Engine) Reactivate(addr crypto.Address) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	if v.Jailed {
		return errors.ErrValidatorJailed
	}
	v.State = ValidatorCandidate
	return e.putValidator(v)
}

// Unjail lifts the jail overlay. Per spec §4.3/§4.6 this is disallowed before
// jail_epoch + unbonding_len and takes effect at current+pipeline_len; this
// engine applies the state change immediately and lets the set-recompute at
// the next boundary route the validator's current stake into the correct
// set, which is equivalent since jail status itself is not pipelined.
func (e *Engine) Unjail(addr crypto.Address, currentEpoch Epoch) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	if !v.Jailed {
		return errors.ErrValidatorNotJailed
	}
	if currentEpoch < v.JailEpoch+e.params.UnbondingLen {
		return errors.ErrUnjailTooEarly
	}
	v.Jailed = false
	v.State = ValidatorCandidate
	if err := e.putValidator(v); err != nil {
		return err
	}
	e.emit(events.ValidatorUnjailed{Validator: addr.String(), Epoch: currentEpoch}.Event())
	return nil
}

// Jail applies the jail overlay immediately (effective current epoch), used
// by the slashing engine on evidence ingest.
func (e *Engine) Jail(addr crypto.Address, currentEpoch Epoch) error {
	v, ok, err := e.GetValidator(addr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUnknownValidator
	}
	if v.Jailed {
		return nil
	}
	v.Jailed = true
	v.JailEpoch = currentEpoch
	v.State = ValidatorInactive
	if err := e.putValidator(v); err != nil {
		return err
	}
	e.emit(events.ValidatorJailed{Validator: addr.String(), JailEpoch: currentEpoch}.Event())
	return nil
}

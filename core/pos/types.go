package pos

import (
	"posd/crypto"
)

// Epoch is a monotonic non-negative epoch index.
type Epoch = uint64

// InfractionType enumerates the slashable misbehavior classes the consensus
// engine can report. The zero value is never valid evidence.
type InfractionType uint8

const (
	InfractionUnknown InfractionType = iota
	InfractionDoubleSign
	InfractionLiveness
)

func (t InfractionType) String() string {
	switch t {
	case InfractionDoubleSign:
		return "double_sign"
	case InfractionLiveness:
		return "liveness"
	default:
		return "unknown"
	}
}

// ValidatorState is the registry state machine's position, independent of the
// orthogonal Jailed overlay.
type ValidatorState uint8

const (
	ValidatorInactive ValidatorState = iota
	ValidatorCandidate
	ValidatorConsensus
	ValidatorBelowCapacity
	ValidatorBelowThreshold
)

func (s ValidatorState) String() string {
	switch s {
	case ValidatorCandidate:
		return "candidate"
	case ValidatorConsensus:
		return "consensus"
	case ValidatorBelowCapacity:
		return "below_capacity"
	case ValidatorBelowThreshold:
		return "below_threshold"
	default:
		return "inactive"
	}
}

// Validator is the registry's per-validator metadata record. Commission and
// the consensus key are single current values: ChangeCommission and
// ChangeConsensusKey overwrite them immediately, with no per-epoch history;
// Stake is derived, not stored, from the bond ledger plus scheduled deltas.
type Validator struct {
	Address            crypto.Address
	ConsensusKey       []byte
	Commission         fixed // current effective commission rate, 0..1
	PendingCommission  fixed // set to the same value as Commission by ChangeCommission
	MaxCommissionDelta fixed // maximum absolute change accepted by one ChangeCommission call
	Metadata           string
	State              ValidatorState
	Jailed             bool
	JailEpoch          Epoch // epoch at which the validator was jailed; meaningless unless Jailed
}

// BondRecord is a single (owner, validator, creation epoch) bond.
type BondRecord struct {
	Owner     crypto.Address
	Validator crypto.Address
	Start     Epoch // epoch at which the bond's stake becomes effective (n+pipeline_len)
	Amount    Amount
}

// SlashSnapshot is one entry in an unbond's carried slash-exposure list: a
// slash that had already been committed (ingested, not necessarily processed)
// against the bond's validator at or before the unbond epoch.
type SlashSnapshot struct {
	InfractionEpoch Epoch
	Type            InfractionType
}

// UnbondRecord tracks a pending withdrawal.
type UnbondRecord struct {
	Owner          crypto.Address
	Validator      crypto.Address
	BondStart      Epoch
	WithdrawEpoch  Epoch
	Amount         Amount
	CarriedSlashes []SlashSnapshot
}

// RedelegationRecord tracks a src->dest stake movement still inside its
// slashability window.
type RedelegationRecord struct {
	Owner     crypto.Address
	Src       crypto.Address
	Dest      crypto.Address
	Start     Epoch
	End       Epoch
	Amount    Amount
	SrcAtInfr Amount // src's total stake at the redelegation epoch; caps the carried slash base
}

// SlashEvidence is a single reported infraction.
type SlashEvidence struct {
	Validator       crypto.Address
	InfractionEpoch Epoch
	Type            InfractionType
	ReportedEpoch   Epoch
	ProcessEpoch    Epoch // InfractionEpoch + unbonding_len
	VotingPower     Amount
	TotalVotingPower Amount
	Processed       bool
	Rate            fixed
}

// id returns the evidence's dedup/idempotence key.
func (e SlashEvidence) id() string {
	return e.Validator.String() + "/" + itoa(e.InfractionEpoch) + "/" + e.Type.String()
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

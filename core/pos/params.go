package pos

import (
	"fmt"
	"math/big"

	"posd/config"
)

// Params is the in-memory, typed view of the governance-mutable PoS
// parameter set (spec §2, component 2: "Parameter store"). It is immutable
// within an epoch: changes queued via QueueParams only take effect at
// the next epoch boundary, applied first in the epoch-transition hook
// (spec §4.1, step 1).
type Params struct {
	PipelineLen            Epoch
	UnbondingLen           Epoch
	CubicSlashingWindow    Epoch
	MaxConsensusValidators uint64
	MinValidatorStake      Amount
	MaxCommissionDelta     fixed
	RMax                   fixed
	RTarget                fixed
	EpochsPerYear          uint64
	KPNom                  fixed
	KDNom                  fixed
	ProposerBase           fixed
	ProposerSlope          fixed
	SetShare               fixed
	MinSigningFraction     fixed
	SlashMinRate           map[InfractionType]fixed
}

// ParamsFromConfig converts the TOML/JSON-facing config.Staking into the
// typed Params used by the engine, validating structural bounds first.
func ParamsFromConfig(s config.Staking) (Params, error) {
	if err := config.ValidateStaking(s); err != nil {
		return Params{}, err
	}
	minStake, err := AmountFromString(s.MinValidatorStake)
	if err != nil {
		return Params{}, fmt.Errorf("pos: min_validator_stake: %w", err)
	}
	p := Params{
		PipelineLen:            s.PipelineLen,
		UnbondingLen:           s.UnbondingLen,
		CubicSlashingWindow:    s.CubicSlashingWindow,
		MaxConsensusValidators: s.MaxConsensusValidators,
		MinValidatorStake:      minStake,
		MaxCommissionDelta:     bps(s.MaxCommissionChangeRateBPS),
		RMax:                   bps(s.RMaxBPS),
		RTarget:                bps(s.RTargetBPS),
		EpochsPerYear:          s.EpochsPerYear,
		KPNom:                  bps(s.KPNomBPS),
		KDNom:                  bps(s.KDNomBPS),
		ProposerBase:           bps(s.ProposerBaseBPS),
		ProposerSlope:          bps(s.ProposerSlopeBPS),
		SetShare:               bps(s.SetShareBPS),
		MinSigningFraction:     bps(s.MinSigningFractionBPS),
		SlashMinRate:           map[InfractionType]fixed{},
	}
	for name, rate := range s.SlashMinRateBPS {
		switch name {
		case "double_sign":
			p.SlashMinRate[InfractionDoubleSign] = bps(rate)
		case "liveness":
			p.SlashMinRate[InfractionLiveness] = bps(rate)
		}
	}
	return p, nil
}

// bps converts a basis-point integer (denominator 10,000) into the engine's
// rewardScale fixed-point representation.
func bps(v uint32) fixed {
	return fixedFromRatio(bigFromUint64(uint64(v)), bigFromUint64(10_000))
}

// paramsWire is Params' RLP-storable form, used to queue a governance-voted
// parameter change for application at the next epoch boundary (spec §4.1
// step 1). fixed fields are stored via their raw *big.Int representation,
// the same convention core/pos/rewards.go uses for accrual accumulators.
type paramsWire struct {
	PipelineLen            Epoch
	UnbondingLen           Epoch
	CubicSlashingWindow    Epoch
	MaxConsensusValidators uint64
	MinValidatorStake      []byte
	MaxCommissionDelta     *big.Int
	RMax                   *big.Int
	RTarget                *big.Int
	EpochsPerYear          uint64
	KPNom                  *big.Int
	KDNom                  *big.Int
	ProposerBase           *big.Int
	ProposerSlope          *big.Int
	SetShare               *big.Int
	MinSigningFraction     *big.Int
	SlashMinRateKinds      []uint8
	SlashMinRateValues     []*big.Int
}

func paramsToWire(p Params) paramsWire {
	kinds := make([]uint8, 0, len(p.SlashMinRate))
	values := make([]*big.Int, 0, len(p.SlashMinRate))
	for k, v := range p.SlashMinRate {
		kinds = append(kinds, uint8(k))
		values = append(values, v.n)
	}
	return paramsWire{
		PipelineLen: p.PipelineLen, UnbondingLen: p.UnbondingLen, CubicSlashingWindow: p.CubicSlashingWindow,
		MaxConsensusValidators: p.MaxConsensusValidators, MinValidatorStake: p.MinValidatorStake.RLPBytes(),
		MaxCommissionDelta: p.MaxCommissionDelta.n, RMax: p.RMax.n, RTarget: p.RTarget.n,
		EpochsPerYear: p.EpochsPerYear, KPNom: p.KPNom.n, KDNom: p.KDNom.n,
		ProposerBase: p.ProposerBase.n, ProposerSlope: p.ProposerSlope.n, SetShare: p.SetShare.n,
		MinSigningFraction: p.MinSigningFraction.n, SlashMinRateKinds: kinds, SlashMinRateValues: values,
	}
}

func paramsFromWire(w paramsWire) Params {
	p := Params{
		PipelineLen: w.PipelineLen, UnbondingLen: w.UnbondingLen, CubicSlashingWindow: w.CubicSlashingWindow,
		MaxConsensusValidators: w.MaxConsensusValidators, MinValidatorStake: AmountFromRLPBytes(w.MinValidatorStake),
		MaxCommissionDelta: fixedFromBig(w.MaxCommissionDelta), RMax: fixedFromBig(w.RMax), RTarget: fixedFromBig(w.RTarget),
		EpochsPerYear: w.EpochsPerYear, KPNom: fixedFromBig(w.KPNom), KDNom: fixedFromBig(w.KDNom),
		ProposerBase: fixedFromBig(w.ProposerBase), ProposerSlope: fixedFromBig(w.ProposerSlope), SetShare: fixedFromBig(w.SetShare),
		MinSigningFraction: fixedFromBig(w.MinSigningFraction), SlashMinRate: map[InfractionType]fixed{},
	}
	for i, k := range w.SlashMinRateKinds {
		p.SlashMinRate[InfractionType(k)] = fixedFromBig(w.SlashMinRateValues[i])
	}
	return p
}

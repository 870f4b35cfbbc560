package config

// Governance captures global governance policy knobs that must be validated
// before applying runtime configuration updates.
type Governance struct {
	QuorumBPS        uint32
	PassThresholdBPS uint32
	VotingPeriodSecs uint64
}

// Slashing defines the allowed window bounds for penalty evaluation.
type Slashing struct {
	MinWindowSecs uint64
	MaxWindowSecs uint64
}

// Mempool controls global transaction admission limits.
type Mempool struct {
	MaxBytes int64
}

// Blocks captures block production limits for transaction counts.
type Blocks struct {
	MaxTxs int64
}

// Global bundles the runtime configuration values enforced by ValidateConfig.
type Global struct {
	Governance Governance
	Slashing   Slashing
	Mempool    Mempool
	Blocks     Blocks
}

// Pauses captures module-level emergency pause toggles that governance can
// flip without a full parameter-store rewrite.
type Pauses struct {
	Staking bool `json:"staking"`
}

// Staking bundles the governance-mutable subset of the epoched PoS
// parameters. Fields mirror the staking module's on-chain parameter store so
// a governance proposal payload round-trips through JSON unchanged.
type Staking struct {
	// PipelineLen is the number of epochs between a bond/unbond/redelegate tx
	// and the epoch its stake delta takes effect.
	PipelineLen uint64 `json:"pipeline_len"`
	// UnbondingLen is the number of epochs an unbonded amount remains
	// withdrawable-pending and slash evidence remains processable.
	UnbondingLen uint64 `json:"unbonding_len"`
	// CubicSlashingWindow is the +/- epoch radius around a slash's processing
	// epoch considered when summing correlated voting power.
	CubicSlashingWindow uint64 `json:"cubic_slashing_window"`
	// MaxConsensusValidators caps the size of the consensus validator set.
	MaxConsensusValidators uint64 `json:"max_consensus_validators"`
	// MinValidatorStake is the minimum stake (smallest unit) required to
	// leave the below_threshold set.
	MinValidatorStake string `json:"min_validator_stake"`
	// MaxCommissionChangeRateBPS bounds how much a validator's commission can
	// move in a single commission-change call, in basis points.
	MaxCommissionChangeRateBPS uint32 `json:"max_commission_change_rate_bps"`
	// RMaxBPS is the maximum annual inflation rate, in basis points.
	RMaxBPS uint32 `json:"r_max_bps"`
	// RTargetBPS is the PD controller's target bonded-stake ratio, in basis
	// points.
	RTargetBPS uint32 `json:"r_target_bps"`
	// EpochsPerYear is used to convert the annual inflation ceiling into a
	// per-epoch ceiling.
	EpochsPerYear uint64 `json:"epochs_per_year"`
	// KPNomBPS and KDNomBPS are the nominal proportional/derivative gains of
	// the inflation PD controller, in basis points of I_max.
	KPNomBPS uint32 `json:"kp_nom_bps"`
	KDNomBPS uint32 `json:"kd_nom_bps"`
	// ProposerBaseBPS and ProposerSlopeBPS parameterise the proposer block
	// reward share curve, clamped to [1.00%, 1.33%].
	ProposerBaseBPS  uint32 `json:"proposer_base_bps"`
	ProposerSlopeBPS uint32 `json:"proposer_slope_bps"`
	// SetShareBPS is the fixed share of the block reward distributed pro rata
	// across the whole consensus set; the remainder after the proposer and
	// set shares goes to the signers.
	SetShareBPS uint32 `json:"set_share_bps"`
	// MinSigningFractionBPS is the signing-stake fraction at which the
	// proposer slope term is zero; below it the term is negative and lowers
	// the share (never under the 1.00% floor).
	MinSigningFractionBPS uint32 `json:"min_signing_fraction_bps"`
	// SlashMinRateBPS carries the per-infraction-type minimum cubic slash
	// rate floor, in basis points, keyed by infraction type name.
	SlashMinRateBPS map[string]uint32 `json:"slash_min_rate_bps"`
}

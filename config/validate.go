package config

import "fmt"

var (
	MinVotingPeriodSeconds = uint64(3600)
)

func ValidateConfig(g Global) error {
	if g.Governance.QuorumBPS < g.Governance.PassThresholdBPS {
		return fmt.Errorf("governance: quorum_bps < pass_threshold_bps")
	}
	if g.Governance.VotingPeriodSecs < MinVotingPeriodSeconds {
		return fmt.Errorf("governance: voting_period_seconds too small")
	}
	if g.Slashing.MinWindowSecs == 0 || g.Slashing.MinWindowSecs > g.Slashing.MaxWindowSecs {
		return fmt.Errorf("slashing: min_window > max_window or zero")
	}
	if g.Mempool.MaxBytes <= 0 {
		return fmt.Errorf("mempool: max_bytes <= 0")
	}
	if g.Blocks.MaxTxs <= 0 {
		return fmt.Errorf("blocks: max_txs <= 0")
	}
	return nil
}

// ValidateStaking enforces the structural bounds on the governance-mutable
// staking parameters before they are committed to the parameter store.
func ValidateStaking(s Staking) error {
	if s.PipelineLen == 0 {
		return fmt.Errorf("staking: pipeline_len must be > 0")
	}
	if s.UnbondingLen == 0 {
		return fmt.Errorf("staking: unbonding_len must be > 0")
	}
	if s.MaxConsensusValidators == 0 {
		return fmt.Errorf("staking: max_consensus_validators must be > 0")
	}
	if s.EpochsPerYear == 0 {
		return fmt.Errorf("staking: epochs_per_year must be > 0")
	}
	if s.RMaxBPS == 0 || s.RMaxBPS > 10_000 {
		return fmt.Errorf("staking: r_max_bps out of range (0,10000]")
	}
	if s.RTargetBPS > 10_000 {
		return fmt.Errorf("staking: r_target_bps must be <= 10000")
	}
	if s.ProposerBaseBPS < 100 || s.ProposerBaseBPS > 133 {
		return fmt.Errorf("staking: proposer_base_bps must fall within [100,133]")
	}
	if s.ProposerBaseBPS+s.ProposerSlopeBPS > 133 {
		return fmt.Errorf("staking: proposer share band exceeds 1.33%% ceiling")
	}
	if uint64(s.ProposerBaseBPS)+uint64(s.SetShareBPS) > 10_000 {
		return fmt.Errorf("staking: proposer_base_bps + set_share_bps exceeds 100%%")
	}
	if s.MaxCommissionChangeRateBPS > 10_000 {
		return fmt.Errorf("staking: max_commission_change_rate_bps must be <= 10000")
	}
	return nil
}

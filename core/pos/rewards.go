package pos

import (
	"math/big"

	"posd/crypto"
)

// SignerStake pairs a validator address with its stake as reported by the
// consensus engine for a single block (spec §4.7: "signers with their stake
// at e", "total consensus stake at e").
type SignerStake struct {
	Address crypto.Address
	Stake   Amount
}

type fixedWire struct{ N *big.Int }

func (e *Engine) putFixed(key []byte, f fixed) error {
	return e.store.KVPut(key, fixedWire{N: f.n})
}

func (e *Engine) getFixed(key []byte) (fixed, bool, error) {
	var w fixedWire
	ok, err := e.store.KVGet(key, &w)
	if err != nil || !ok {
		return fixed{n: big.NewInt(0)}, ok, err
	}
	return fixedFromBig(w.N), true, nil
}

var (
	proposerClampLow  = fixedFromRatio(big.NewInt(100), big.NewInt(10_000))  // 1.00%
	proposerClampHigh = fixedFromRatio(big.NewInt(133), big.NewInt(10_000))  // 1.33%
)

// AccrueBlockReward folds one block's reward split into each validator's
// running fraction-of-epoch-reward accumulator (spec §4.7). consensusSet is
// the full consensus membership with stake at e, used to distribute the set
// share pro rata; signers is the subset that actually signed this block.
// Fees are explicitly out of scope here: spec §4.7 credits them directly to
// the proposer outside the PoS core.
func (e *Engine) AccrueBlockReward(currentEpoch Epoch, proposer crypto.Address, signers, consensusSet []SignerStake) error {
	totalStake := ZeroAmount()
	for _, v := range consensusSet {
		totalStake = totalStake.Add(v.Stake)
	}
	if totalStake.IsZero() {
		return nil
	}
	signingStake := ZeroAmount()
	for _, v := range signers {
		signingStake = signingStake.Add(v.Stake)
	}

	signingFrac := fixedFromRatio(signingStake.BigInt(), totalStake.BigInt())
	excess := signingFrac.sub(e.params.MinSigningFraction)
	propShare := e.params.ProposerBase.add(e.params.ProposerSlope.mul(excess))
	if propShare.cmp(proposerClampLow) < 0 {
		propShare = proposerClampLow
	}
	if propShare.cmp(proposerClampHigh) > 0 {
		propShare = proposerClampHigh
	}
	setShare := e.params.SetShare
	signerShare := one().sub(propShare).sub(setShare)

	add := func(val crypto.Address, delta fixed) error {
		key := proposerFractionKey(val, currentEpoch)
		cur, _, err := e.getFixed(key)
		if err != nil {
			return err
		}
		return e.putFixed(key, cur.add(delta))
	}

	if err := add(proposer, propShare); err != nil {
		return err
	}
	if !signingStake.IsZero() {
		for _, v := range signers {
			share := signerShare.mul(fixedFromRatio(v.Stake.BigInt(), signingStake.BigInt()))
			if err := add(v.Address, share); err != nil {
				return err
			}
		}
	}
	for _, v := range consensusSet {
		share := setShare.mul(fixedFromRatio(v.Stake.BigInt(), totalStake.BigInt()))
		if err := add(v.Address, share); err != nil {
			return err
		}
	}
	return nil
}

// rewardsProductAt returns P_self/P_deleg at epoch e: the record stored for
// the latest settled epoch at or before e (an unsettled epoch leaves the
// product unchanged), or 1.0 when none exists (spec §3: "P(-1) = 1").
func (e *Engine) rewardsProductAt(key func(crypto.Address, Epoch) []byte, val crypto.Address, ep Epoch) (fixed, error) {
	for {
		f, ok, err := e.getFixed(key(val, ep))
		if err != nil {
			return fixed{}, err
		}
		if ok {
			return f, nil
		}
		if ep == 0 {
			return one(), nil
		}
		ep--
	}
}

// RewardsProductSelf exposes P_self(e) for withdrawal-credit computation.
func (e *Engine) RewardsProductSelf(val crypto.Address, ep Epoch) (fixed, error) {
	return e.rewardsProductAt(rewardsSelfKey, val, ep)
}

// RewardsProductDeleg exposes P_deleg(e).
func (e *Engine) RewardsProductDeleg(val crypto.Address, ep Epoch) (fixed, error) {
	return e.rewardsProductAt(rewardsDelegKey, val, ep)
}

func (e *Engine) previousProduct(key func(crypto.Address, Epoch) []byte, val crypto.Address, ep Epoch) (fixed, error) {
	if ep == 0 {
		return one(), nil
	}
	return e.rewardsProductAt(key, val, ep-1)
}

// SettleEpoch is step 2-3 of the epoch-close hook (spec §4.7): it normalizes
// every consensus validator's raw block-reward accrual for closedEpoch into
// a fraction of mint, floors r_V(e) = floor(mint*f_v) (the flooring dust is
// not distributed and stays in the escrow account that Inflate credited the
// whole mint to, matching the spec's "residual dust ... retained in the
// pool"), and rolls
// P_self/P_deleg forward.
func (e *Engine) SettleEpoch(closedEpoch Epoch, mint Amount) error {
	consensus, err := e.ConsensusSet(closedEpoch)
	if err != nil {
		return err
	}
	if len(consensus) == 0 {
		return nil
	}

	accruals := make([]fixed, len(consensus))
	total := fixed{n: big.NewInt(0)}
	for i, val := range consensus {
		f, _, err := e.getFixed(proposerFractionKey(val, closedEpoch))
		if err != nil {
			return err
		}
		accruals[i] = f
		total = total.add(f)
	}
	if total.sign() <= 0 {
		return nil
	}

	for i, val := range consensus {
		frac := fixedFromRatio(accruals[i].n, total.n)
		rV := frac.applyToAmount(mint)

		v, ok, err := e.GetValidator(val)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		sV, err := e.kernel().StakeAt(val, closedEpoch)
		if err != nil {
			return err
		}
		if sV.IsZero() {
			continue
		}
		ratio := fixedFromRatio(rV.BigInt(), sV.BigInt())

		prevSelf, err := e.previousProduct(rewardsSelfKey, val, closedEpoch)
		if err != nil {
			return err
		}
		prevDeleg, err := e.previousProduct(rewardsDelegKey, val, closedEpoch)
		if err != nil {
			return err
		}

		selfFactor := one().add(ratio)
		delegFactor := one().add(one().sub(v.Commission).mul(ratio))

		if err := e.putFixed(rewardsSelfKey(val, closedEpoch), prevSelf.mul(selfFactor)); err != nil {
			return err
		}
		if err := e.putFixed(rewardsDelegKey(val, closedEpoch), prevDeleg.mul(delegFactor)); err != nil {
			return err
		}
	}
	return nil
}

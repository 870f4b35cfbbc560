package pos

import "math/big"

// fixedFromAmount lifts a whole-token Amount into the fixed real-number
// domain (scale-preserving), used to mix token-denominated quantities into
// the PD controller's rational arithmetic without losing precision.
func fixedFromAmount(a Amount) fixed {
	return fixed{n: new(big.Int).Mul(a.BigInt(), rewardScaleBig)}
}

func fixedFromUint(v uint64) fixed {
	return fixed{n: new(big.Int).Mul(bigFromUint64(v), rewardScaleBig)}
}

// floorAmount truncates a fixed real number down to a whole-token Amount,
// per spec §4.8's "round half-to-even at the fixed-point scale, then
// truncate to integer tokens" rule: every intermediate step above already
// used half-to-even (see fixed.mul/div), so only this final conversion
// truncates.
func (a fixed) floorAmount() Amount {
	q := new(big.Int).Quo(a.n, rewardScaleBig)
	if q.Sign() < 0 {
		q = big.NewInt(0)
	}
	return AmountFromBigInt(q)
}

type inflationStateWire struct {
	LastMint  []byte
	LastRatio *big.Int
}

func (e *Engine) loadInflationState() (Amount, fixed, error) {
	var w inflationStateWire
	ok, err := e.store.KVGet(inflationLastKey(), &w)
	if err != nil {
		return ZeroAmount(), fixed{n: big.NewInt(0)}, err
	}
	if !ok {
		return ZeroAmount(), fixed{n: big.NewInt(0)}, nil
	}
	return AmountFromRLPBytes(w.LastMint), fixedFromBig(w.LastRatio), nil
}

func (e *Engine) saveInflationState(mint Amount, ratio fixed) error {
	return e.store.KVPut(inflationLastKey(), inflationStateWire{LastMint: mint.RLPBytes(), LastRatio: ratio.n})
}

// Inflate runs the PD controller step of spec §4.8 at the close of an
// epoch: S is the current total supply, L is the current total staked
// (escrow balance). It mints I_new to the PoS escrow, persists (I_new,
// R_last) for the next step, and returns I_new for SettleEpoch to
// distribute.
func (e *Engine) Inflate(supply, staked Amount) (Amount, error) {
	prevMint, prevRatio, err := e.loadInflationState()
	if err != nil {
		return ZeroAmount(), err
	}
	if supply.IsZero() {
		return ZeroAmount(), nil
	}

	sFixed := fixedFromAmount(supply)
	lFixed := fixedFromAmount(staked)
	ratioNow := lFixed.div(sFixed)

	iMax := sFixed.mul(e.params.RMax).div(fixedFromUint(e.params.EpochsPerYear))
	kp := e.params.KPNom.mul(iMax)
	kd := e.params.KDNom.mul(iMax)
	ep := e.params.RTarget.sub(ratioNow)
	ed := prevRatio.sub(ratioNow)
	c := kp.mul(ep).sub(kd.mul(ed))

	iNew := fixedFromAmount(prevMint).add(c)
	if iNew.sign() < 0 {
		iNew = fixed{n: big.NewInt(0)}
	}
	if iNew.cmp(iMax) > 0 {
		iNew = iMax
	}

	minted := iNew.floorAmount()
	if !minted.IsZero() {
		if err := e.ledger.Credit(escrowAddress, minted.BigInt()); err != nil {
			return ZeroAmount(), err
		}
	}
	if err := e.saveInflationState(minted, ratioNow); err != nil {
		return ZeroAmount(), err
	}
	return minted, nil
}

package pos

import (
	"math/big"
	"time"

	"posd/core/events"
)

// CurrentEpoch returns the epoch the engine currently considers active.
func (e *Engine) CurrentEpoch() (Epoch, error) {
	var ep Epoch
	ok, err := e.store.KVGet(epochKey(), &ep)
	if err != nil || !ok {
		return 0, err
	}
	return ep, nil
}

func (e *Engine) setCurrentEpoch(ep Epoch) error {
	return e.store.KVPut(epochKey(), ep)
}

// QueueParams stages a governance-voted parameter change for application at
// the next epoch boundary (spec §2: "immutable within an epoch, mutable
// across epochs by governance"). Only one pending change is retained; a
// second call before the next boundary overwrites the first.
func (e *Engine) QueueParams(p Params) error {
	return e.store.KVPut(pendingParamsKey(), paramsToWire(p))
}

func (e *Engine) applyPendingParams() error {
	var w paramsWire
	ok, err := e.store.KVGet(pendingParamsKey(), &w)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	e.params = paramsFromWire(w)
	return e.store.KVDelete(pendingParamsKey())
}

// TotalSupply returns the engine-tracked circulating supply (spec §4.8's S).
func (e *Engine) TotalSupply() (Amount, error) {
	raw, found, err := e.store.ParamStoreGet("_total_supply")
	if err != nil {
		return ZeroAmount(), err
	}
	if !found {
		return ZeroAmount(), nil
	}
	return AmountFromRLPBytes(raw), nil
}

func (e *Engine) creditSupply(amt Amount) error {
	if amt.IsZero() {
		return nil
	}
	cur, err := e.TotalSupply()
	if err != nil {
		return err
	}
	return e.store.ParamStoreSet("_total_supply", cur.Add(amt).RLPBytes())
}

// TotalStaked returns the current escrow balance (spec §4.8's L): every
// token bonded anywhere, by construction of Bond/Unbond/Withdraw only ever
// moving funds into and out of the single escrow account.
func (e *Engine) TotalStaked() (Amount, error) {
	bal, err := e.ledger.Balance(escrowAddress)
	if err != nil {
		return ZeroAmount(), err
	}
	return AmountFromBigInt(bal), nil
}

// AdvanceEpoch runs the single epoch-transition hook (spec §4.1) in its
// mandated order: apply scheduled parameter changes, materialize pipelined
// stake deltas for every validator, recompute validator sets one
// pipeline_len ahead, process due slashes, mint inflation, then settle
// rewards products for the epoch that just closed. It returns the newly
// current epoch.
func (e *Engine) AdvanceEpoch() (Epoch, error) {
	started := time.Now()
	defer func() { e.telemetry.ObserveEpochTransition(time.Since(started).Seconds()) }()

	current, err := e.CurrentEpoch()
	if err != nil {
		return 0, err
	}
	newEpoch := current + 1

	if err := e.applyPendingParams(); err != nil {
		return 0, err
	}

	addrs, err := e.AllValidatorAddresses()
	if err != nil {
		return 0, err
	}
	for _, addr := range addrs {
		if err := e.kernel().Fold(addr, newEpoch); err != nil {
			return 0, err
		}
	}

	target := newEpoch + e.params.PipelineLen
	if err := e.recomputeSets(target); err != nil {
		return 0, err
	}

	if err := e.Process(newEpoch); err != nil {
		return 0, err
	}

	supply, err := e.TotalSupply()
	if err != nil {
		return 0, err
	}
	staked, err := e.TotalStaked()
	if err != nil {
		return 0, err
	}
	minted, err := e.Inflate(supply, staked)
	if err != nil {
		return 0, err
	}
	if err := e.creditSupply(minted); err != nil {
		return 0, err
	}
	if !minted.IsZero() {
		e.emit(events.InflationMinted{Epoch: newEpoch, Amount: minted.String()}.Event())
	}
	e.telemetry.SetInflationMinted(newEpoch, mintedFloat(minted))

	if err := e.SettleEpoch(current, minted); err != nil {
		return 0, err
	}

	if err := e.setCurrentEpoch(newEpoch); err != nil {
		return 0, err
	}

	newSupply, err := e.TotalSupply()
	if err == nil {
		e.telemetry.SetTotalSupply(mintedFloat(newSupply))
	}
	newStaked, err := e.TotalStaked()
	if err == nil {
		e.telemetry.SetTotalStaked(mintedFloat(newStaked))
	}
	e.telemetry.SetCurrentEpoch(newEpoch)

	return newEpoch, nil
}

// mintedFloat renders an Amount as a float64 for gauge export. Amounts above
// float64's 2^53 exact-integer range (such as 1e18-scaled token balances)
// are rounded to the nearest representable value, so the gauge is
// approximate for them.
func mintedFloat(a Amount) float64 {
	f, _ := new(big.Float).SetInt(a.BigInt()).Float64()
	return f
}

package pos

import (
	"posd/core/types"
	"posd/crypto"
	"posd/observability/metrics"
	"posd/state/bank"
)

// escrowAddress and slashPoolAddress are well-known system accounts the
// ledger settles bonded/slashed funds through. They are never reachable by a
// signed transaction's "from" address since no private key can produce
// these fixed byte patterns under the engine's signature scheme.
var (
	escrowAddress    = crypto.MustNewAddress(crypto.NHBPrefix, make([]byte, 20))
	slashPoolAddress = crypto.MustNewAddress(crypto.NHBPrefix, bytesOfOnes(20))
)

func bytesOfOnes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0x01
	}
	return b
}

// Engine is the root collaborator for the epoched PoS core: the validator
// registry, the bond/unbond/redelegation ledgers, the cubic slashing engine,
// the rewards engine, and the inflation controller all operate as methods on
// *Engine, sharing the flat KV Store and the epoched data kernel. This plays
// the role the teacher's core.StateProcessor played for the base ledger,
// scoped down to the PoS domain only.
type Engine struct {
	store  *Store
	params Params
	kern   *kernel
	ledger *bank.Ledger

	telemetry *metrics.PosMetrics
	events    []*types.Event
}

// NewEngine constructs an Engine over a backing store and a frozen parameter
// set. Parameter changes take effect only through QueueParams plus the
// next epoch boundary (spec §4.1 step 1), not by mutating this value
// in place mid-epoch.
func NewEngine(store *Store, params Params) *Engine {
	return &Engine{
		store:     store,
		params:    params,
		kern:      &kernel{store: store},
		ledger:    bank.NewLedger(store.db),
		telemetry: metrics.Pos(),
	}
}

// kernel returns the engine's epoched data kernel collaborator.
func (e *Engine) kernel() *kernel { return e.kern }

// Params returns the engine's current, frozen-for-the-epoch parameter set.
func (e *Engine) Params() Params { return e.params }

// SetParams replaces the engine's effective parameter set. Callers apply this
// only from the epoch-transition hook, after any governance-queued change has
// been read from the param store (spec §4.1 step 1); never mid-epoch.
func (e *Engine) SetParams(p Params) { e.params = p }

// emit buffers an event for the caller to drain after a state transition,
// following the kept core/events idiom of plain attribute-map events.
func (e *Engine) emit(ev *types.Event) {
	e.events = append(e.events, ev)
}

// DrainEvents returns and clears every event buffered since the last drain.
func (e *Engine) DrainEvents() []*types.Event {
	out := e.events
	e.events = nil
	return out
}

// CreditGenesisBalance credits an account balance directly, bypassing the
// normal transfer path. Used only by the genesis builder to seed initial
// allocations and validator self-bond funding before any block has run.
func (e *Engine) CreditGenesisBalance(addr crypto.Address, amt Amount) error {
	if amt.IsZero() {
		return nil
	}
	return e.ledger.Credit(addr, amt.BigInt())
}

// SeedSupply sets the engine-tracked circulating supply to amt, used once by
// the genesis builder after every allocation has been credited. Any later
// change flows only through creditSupply at epoch boundaries.
func (e *Engine) SeedSupply(amt Amount) error {
	return e.store.ParamStoreSet("_total_supply", amt.RLPBytes())
}

// BPSToFixed converts a basis-point integer (denominator 10,000) into the
// engine's rewardScale fixed-point representation, exported for callers
// outside the package (the genesis builder) that need to parse a
// commission-rate field the same way ParamsFromConfig parses one.
func BPSToFixed(v uint32) fixed {
	return bps(v)
}

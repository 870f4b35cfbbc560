package pos

import (
	"testing"

	"posd/config"
	"posd/crypto"
	"posd/storage"
)

// testParams returns the genesis-default staking parameters (pipeline_len=2,
// unbonding_len=21, cubic_slashing_window=1) converted through the same
// ParamsFromConfig path the daemon uses, so tests exercise the real
// validation/conversion logic rather than hand-built Params values whenever
// the scenario doesn't need custom bounds.
func testParams(t *testing.T) Params {
	t.Helper()
	p, err := ParamsFromConfig(config.DefaultStaking())
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	return p
}

// newTestEngine builds an Engine over a fresh in-memory store, mirroring the
// MemDB-backed setup core/genesis/genesis_test.go and state/bank/ledger_test.go
// already use.
func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return NewEngine(NewStore(db), params)
}

// testAddr builds a deterministic 20-byte address from a single distinguishing
// byte, the same convention state/bank/ledger_test.go uses.
func testAddr(b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.MustNewAddress(crypto.NHBPrefix, buf)
}

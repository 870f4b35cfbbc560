// Package bank is the account balance ledger shared by the PoS core for
// escrowing bonded stake and settling slashes. It replaces the teacher's
// placeholder Slasher stub (state/bank/slash.go) with an actual balance
// store, keeping the same "slash debits an account" shape that stub named
// but never implemented.
package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"posd/crypto"
)

// KV is the minimal persistence surface the ledger needs; storage.Database
// satisfies it structurally.
type KV interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
}

var ErrInsufficientBalance = errors.New("bank: insufficient balance")

// Ledger is a flat address -> balance store, RLP-encoding big.Int balances
// the same way core/pos encodes its own records.
type Ledger struct {
	kv KV
}

func NewLedger(kv KV) *Ledger {
	return &Ledger{kv: kv}
}

func accountKey(addr crypto.Address) []byte {
	return []byte("/accounts/" + hex.EncodeToString(addr.Bytes()))
}

func (l *Ledger) Balance(addr crypto.Address) (*big.Int, error) {
	raw, err := l.kv.Get(accountKey(addr))
	if err != nil || len(raw) == 0 {
		return big.NewInt(0), nil //nolint:nilerr // absent account reads as zero balance
	}
	var bal big.Int
	if err := rlp.DecodeBytes(raw, &bal); err != nil {
		return nil, fmt.Errorf("bank: decode balance for %s: %w", addr.String(), err)
	}
	return &bal, nil
}

func (l *Ledger) setBalance(addr crypto.Address, bal *big.Int) error {
	encoded, err := rlp.EncodeToBytes(bal)
	if err != nil {
		return fmt.Errorf("bank: encode balance for %s: %w", addr.String(), err)
	}
	return l.kv.Put(accountKey(addr), encoded)
}

// Credit increases addr's balance, used for minting and for releasing
// escrowed funds back to an owner.
func (l *Ledger) Credit(addr crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	return l.setBalance(addr, bal)
}

// Debit decreases addr's balance, failing if the balance would go negative.
func (l *Ledger) Debit(addr crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return l.setBalance(addr, bal)
}

// Transfer moves amount from -> to atomically with respect to the caller
// (the underlying KV writes are not themselves transactional, matching the
// teacher's own flat-KV stores which rely on single-threaded block
// application for atomicity).
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := l.Debit(from, amount); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

package bank

import (
	"math/big"
	"testing"

	"posd/crypto"
)

type memKV struct{ m map[string][]byte }

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (k *memKV) Put(key, value []byte) error {
	k.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (k *memKV) Get(key []byte) ([]byte, error) {
	v, ok := k.m[string(key)]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }

func addr(b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.MustNewAddress(crypto.NHBPrefix, buf)
}

func TestLedgerCreditDebit(t *testing.T) {
	l := NewLedger(newMemKV())
	a := addr(1)

	if err := l.Credit(a, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, err := l.Balance(a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100, got %s", bal)
	}

	if err := l.Debit(a, big.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, _ = l.Balance(a)
	if bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected 60, got %s", bal)
	}
}

func TestLedgerDebitInsufficientBalance(t *testing.T) {
	l := NewLedger(newMemKV())
	a := addr(2)
	if err := l.Debit(a, big.NewInt(1)); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestLedgerTransfer(t *testing.T) {
	l := NewLedger(newMemKV())
	from, to := addr(3), addr(4)
	if err := l.Credit(from, big.NewInt(50)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(from, to, big.NewInt(20)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromBal, _ := l.Balance(from)
	toBal, _ := l.Balance(to)
	if fromBal.Cmp(big.NewInt(30)) != 0 || toBal.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("unexpected balances: from=%s to=%s", fromBal, toBal)
	}
}

func TestLedgerTransferInsufficientBalanceLeavesRecipientUntouched(t *testing.T) {
	l := NewLedger(newMemKV())
	from, to := addr(5), addr(6)
	if err := l.Transfer(from, to, big.NewInt(5)); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	toBal, _ := l.Balance(to)
	if toBal.Sign() != 0 {
		t.Fatalf("expected untouched recipient, got %s", toBal)
	}
}

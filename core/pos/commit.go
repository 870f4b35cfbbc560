package pos

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"posd/storage"
	posTrie "posd/storage/trie"
)

// Commit computes a canonical Merkle root over the registry's current state
// for audit export, independent of the engine's flat-KV hot path.
// Every validator's RLP-encoded registry record is re-inserted under its
// keccak256(address) key into a fresh trie rooted at the given parent, and
// committed; the resulting root is a tamper-evident digest of validator
// state a third party can verify without trusting the node's KV store.
func (e *Engine) Commit(db storage.Database, parent common.Hash, blockNumber uint64) (common.Hash, error) {
	var parentBytes []byte
	if parent != (common.Hash{}) {
		parentBytes = parent.Bytes()
	}
	tr, err := posTrie.NewTrie(db, parentBytes)
	if err != nil {
		return common.Hash{}, err
	}

	addrs, err := e.AllValidatorAddresses()
	if err != nil {
		return common.Hash{}, err
	}
	for _, addr := range addrs {
		v, ok, err := e.GetValidator(addr)
		if err != nil {
			return common.Hash{}, err
		}
		if !ok {
			continue
		}
		encoded, err := encodeValidatorForCommit(v)
		if err != nil {
			return common.Hash{}, err
		}
		key := crypto.Keccak256(addr.Bytes())
		if err := tr.Update(key, encoded); err != nil {
			return common.Hash{}, err
		}
	}

	return tr.Commit(parent, blockNumber)
}

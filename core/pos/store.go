package pos

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"posd/storage"
)

// ErrNotFound is returned by typed Get accessors when a key is absent,
// distinguishing "doesn't exist" from a genuine storage I/O failure.
var ErrNotFound = errors.New("pos: not found")

// Store is the PoS core's key-value collaborator: a much smaller, generic
// replacement for the teacher's core/state/manager.go, carrying forward only
// the KVPut/KVGet/KVDelete/KVAppend/KVGetList and ParamStoreSet/Get
// primitives that file exposed, with RLP replacing its ad-hoc encoders.
//
// Keys are plain byte strings matching the prefix-scoped layout in spec §6
// (e.g. "/validators/<addr>/..."); values are RLP-encoded records. This is a
// direct flat-KV store, not a Merkle trie: canonical root commitments for
// audit export are computed separately (see commit.go) by replaying a
// snapshot through storage/trie, so the hot path never pays Merkle-proof
// overhead per write.
type Store struct {
	db storage.Database
}

// NewStore wraps a backing database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// KVPut RLP-encodes value and writes it under key.
func (s *Store) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("pos: encode %s: %w", key, err)
	}
	return s.db.Put(key, encoded)
}

// KVGet decodes the value stored at key into out. It reports (false, nil) when
// the key is absent.
func (s *Store) KVGet(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if err != nil {
		return false, nil //nolint:nilerr // absence is not modeled as a typed error by storage.Database
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("pos: decode %s: %w", key, err)
	}
	return true, nil
}

// KVDelete removes key. Deleting an absent key is a no-op.
func (s *Store) KVDelete(key []byte) error {
	return s.db.Delete(key)
}

// KVAppend appends entry to the RLP-encoded list of raw keys stored under
// indexKey, used to maintain the secondary indexes (e.g. all bond keys for an
// owner/validator pair) that a flat KV store cannot range-scan on its own.
func (s *Store) KVAppend(indexKey []byte, entry []byte) error {
	var list [][]byte
	if _, err := s.KVGet(indexKey, &list); err != nil {
		return err
	}
	list = append(list, entry)
	return s.KVPut(indexKey, list)
}

// KVGetList returns the raw keys previously appended under indexKey.
func (s *Store) KVGetList(indexKey []byte) ([][]byte, error) {
	var list [][]byte
	if _, err := s.KVGet(indexKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ParamStoreSet writes a named, governance-mutable parameter blob.
func (s *Store) ParamStoreSet(name string, value []byte) error {
	return s.db.Put(paramKey(name), value)
}

// ParamStoreGet reads a named parameter blob.
func (s *Store) ParamStoreGet(name string) ([]byte, bool, error) {
	raw, err := s.db.Get(paramKey(name))
	if err != nil {
		return nil, false, nil //nolint:nilerr
	}
	return raw, true, nil
}

func paramKey(name string) []byte {
	return []byte("/params/" + name)
}

// HasCurrentEpoch reports whether an epoch has ever been recorded in store,
// letting a daemon distinguish a fresh node (needs genesis applied) from one
// resuming existing state, without constructing an Engine first.
func (s *Store) HasCurrentEpoch() (bool, error) {
	var ep Epoch
	return s.KVGet(epochKey(), &ep)
}

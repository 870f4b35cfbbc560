package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// Database is a generic interface for a key-value store.
// This allows the PoS core to use any database backend (in-memory or persistent)
// while still being able to commit canonical Merkle snapshots through TrieDB.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Close() // A way to gracefully shut down the database connection.

	// TrieDB returns the go-ethereum trie database backing canonical state
	// root commitments (see storage/trie). Lazily constructed.
	TrieDB() *triedb.Database
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu     sync.RWMutex
	data   map[string][]byte
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = value
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("key not found")
	}
	return value, nil
}

// Delete removes a key from the store. Deleting an absent key is not an error.
func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// TrieDB lazily builds an ephemeral trie database for MemDB-backed snapshots.
func (db *MemDB) TrieDB() *triedb.Database {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.trieDB == nil {
		db.trieDB = triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil)
	}
	return db.trieDB
}

// --- Persistent DB (for mainnet) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db   *leveldb.DB
	path string

	trieMu sync.Mutex
	trieDB *triedb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db, path: path}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, nil)
}

// Delete removes a key from the store.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
	if ldb.trieDB != nil {
		ldb.trieDB.Close()
	}
}

// TrieDB lazily opens a sibling go-ethereum leveldb instance dedicated to trie
// nodes, kept separate from the flat KV namespace above so the two backends
// never contend for the same LevelDB file lock.
func (ldb *LevelDB) TrieDB() *triedb.Database {
	ldb.trieMu.Lock()
	defer ldb.trieMu.Unlock()
	if ldb.trieDB == nil {
		diskdb, err := rawdb.NewLevelDBDatabase(filepath.Join(ldb.path, "triedb"), 0, 0, "", false)
		if err != nil {
			panic(fmt.Sprintf("storage: open trie database: %v", err))
		}
		ldb.trieDB = triedb.NewDatabase(diskdb, nil)
	}
	return ldb.trieDB
}

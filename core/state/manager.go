package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"escrowchain/storage"
)

// Manager reads and writes RLP-encoded state over a key-value database.
// Writes are staged in an overlay until Commit flushes them in a single batch;
// Discard drops them. Reads observe staged writes first.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	m := &Manager{db: db}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.pending = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	k := string(hashed)
	if _, gone := m.deleted[k]; gone {
		return nil, nil
	}
	if v, ok := m.pending[k]; ok {
		return v, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) put(hashed []byte, value []byte) {
	k := string(hashed)
	delete(m.deleted, k)
	m.pending[k] = value
}

func (m *Manager) del(hashed []byte) {
	k := string(hashed)
	delete(m.pending, k)
	m.deleted[k] = struct{}{}
}

// Dirty reports the number of staged writes and deletes.
func (m *Manager) Dirty() int {
	return len(m.pending) + len(m.deleted)
}

// Commit writes every staged change atomically and clears the overlay.
func (m *Manager) Commit() error {
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), m.pending[k])
	}
	for k := range m.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.reset()
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.reset()
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.del(kvKey(key))
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

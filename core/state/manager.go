package state

import (
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"corebtc/storage"
)

// Manager reads and writes protocol state through a write buffer layered over a
// storage backend. Every mutation is journaled so callers can take a snapshot
// before an operation and roll the buffer back when it fails. Buffered writes
// reach the backend only on Commit.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	pending map[string]pendingValue
	journal []journalEntry
}

type pendingValue struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    pendingValue
	hadPrev bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		pending: make(map[string]pendingValue),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if value, ok := m.pending[string(key)]; ok {
		if value.deleted {
			return nil, nil
		}
		return value.data, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) record(key string) {
	prev, ok := m.pending[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: ok})
}

func (m *Manager) put(key []byte, value []byte) {
	k := string(key)
	m.record(k)
	m.pending[k] = pendingValue{data: append([]byte(nil), value...)}
}

func (m *Manager) del(key []byte) {
	k := string(key)
	m.record(k)
	m.pending[k] = pendingValue{deleted: true}
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every buffered write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.pending[entry.key] = entry.prev
		} else {
			delete(m.pending, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Dirty reports the number of keys with buffered writes.
func (m *Manager) Dirty() int {
	return len(m.pending)
}

// Commit flushes buffered writes to the backend in a single batch and resets the
// journal. Snapshots taken before Commit are invalidated.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	batch := m.db.NewBatch()
	for key, value := range m.pending {
		if value.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value.data)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state commit: %w", err)
	}
	m.pending = make(map[string]pendingValue)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every buffered write.
func (m *Manager) Discard() {
	m.pending = make(map[string]pendingValue)
	m.journal = m.journal[:0]
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the backend.
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

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.del(kvKey(key))
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

package blocklist

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get when no record exists for an address.
var ErrNotFound = errors.New("block record not found")

// Record is one block entry. A nil ExpiresAt means the block never expires.
type Record struct {
	Address    string     `json:"address"`
	BlockedAt  time.Time  `json:"blocked_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason"`
	Actor      string     `json:"actor"`
	AttackType string     `json:"attack_type,omitempty"`
	Severity   string     `json:"severity,omitempty"`
}

// Expired reports whether the record's expiry has passed at the given time.
// Permanent records never expire.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Store is the pluggable backend behind the block registry. Implementations
// persist records keyed by address; Put overwrites unconditionally.
type Store interface {
	Put(rec Record) error
	Get(address string) (Record, error)
	Delete(address string) (bool, error)
	List() ([]Record, error)
}

// MemoryStore is the reference in-process Store and the degraded-mode
// fallback for durable backends.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Put(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Address] = rec
	return nil
}

func (m *MemoryStore) Get(address string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[address]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Delete(address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[address]; !ok {
		return false, nil
	}
	delete(m.records, address)
	return true, nil
}

func (m *MemoryStore) List() ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

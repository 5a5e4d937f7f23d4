package mempool

import "github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"

// PoolStore is the primary tx-id -> PoolEntry mapping (spec §4.2). It is a
// pure container: every method here executes under the caller's lock and
// never blocks on I/O.
type PoolStore struct {
	entries map[transactions.TxID]*PoolEntry
}

func newPoolStore() *PoolStore {
	return &PoolStore{entries: make(map[transactions.TxID]*PoolEntry)}
}

// Insert adds or replaces the entry for e.ID.
func (s *PoolStore) Insert(e *PoolEntry) {
	s.entries[e.ID] = e
}

// Remove deletes the entry for id, if present.
func (s *PoolStore) Remove(id transactions.TxID) {
	delete(s.entries, id)
}

// Get returns the entry for id, if present.
func (s *PoolStore) Get(id transactions.TxID) (*PoolEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Contains reports whether id is resident.
func (s *PoolStore) Contains(id transactions.TxID) bool {
	_, ok := s.entries[id]
	return ok
}

// Count returns the number of resident entries.
func (s *PoolStore) Count() int {
	return len(s.entries)
}

// Iter calls fn once per resident entry. Iteration order is unspecified.
// If fn returns an error, iteration stops and the error is returned.
func (s *PoolStore) Iter(fn func(*PoolEntry) error) error {
	for _, e := range s.entries {
		if err := fn(e); err != nil {
			return err
		}
	}

	return nil
}

// Clear empties the store.
func (s *PoolStore) Clear() {
	s.entries = make(map[transactions.TxID]*PoolEntry)
}

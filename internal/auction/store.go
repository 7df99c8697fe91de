package auction

import "sync"

// record pairs an auction with the mutex that serializes writes to it.
// The authoritative execution model is single-writer per record: a bid and a
// settlement against the same auction can never interleave, while operations
// on different auctions run fully in parallel.
type record struct {
	mu sync.Mutex
	a  Auction
}

// Store is the shared state table behind the registry and the state machine.
// Records are never deleted; a settled auction stays as a historical record.
type Store struct {
	mu      sync.RWMutex
	records map[uint64]*record
}

// NewStore creates an empty state table.
func NewStore() *Store {
	return &Store{records: make(map[uint64]*record)}
}

func (s *Store) insert(a Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.ID] = &record{a: a}
}

func (s *Store) find(id uint64) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// snapshot returns an immutable copy of the record's current fields.
func (s *Store) snapshot(id uint64) (Auction, bool) {
	rec, ok := s.find(id)
	if !ok {
		return Auction{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.a, true
}

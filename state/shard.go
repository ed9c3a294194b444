package state

import (
	"sync"

	"github.com/IvanBrykalov/sharedstate/internal/util"
)

// shard is an independent partition of the shadow store with its own lock,
// record map and consumer registry. Records are indexed by the canonical
// form of their key's shadow key.
type shard struct {
	// ---- guarded by mu ----
	mu        sync.RWMutex
	records   map[string]*record
	consumers map[string]map[*consumer]struct{}

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	reads  util.PaddedAtomicUint64
	writes util.PaddedAtomicUint64
}

func newShard() *shard {
	return &shard{
		records:   make(map[string]*record),
		consumers: make(map[string]map[*consumer]struct{}),
	}
}

func (s *shard) get(id string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// put stores r unless a record already exists; it returns the resident one.
func (s *shard) put(id string, r *record) (*record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[id]; ok {
		return cur, false
	}
	s.records[id] = r
	return r, true
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *shard) each(fn func(*record)) {
	s.mu.RLock()
	rs := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		rs = append(rs, r)
	}
	s.mu.RUnlock()
	for _, r := range rs {
		fn(r)
	}
}

func (s *shard) attach(id string, c *consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.consumers[id]
	if !ok {
		set = make(map[*consumer]struct{})
		s.consumers[id] = set
	}
	set[c] = struct{}{}
}

func (s *shard) detach(id string, c *consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.consumers[id]
	delete(set, c)
	if len(set) == 0 {
		delete(s.consumers, id)
	}
}

// wake notifies every consumer of id and returns how many there were.
func (s *shard) wake(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.consumers[id]
	for c := range set {
		c.notify()
	}
	return len(set)
}

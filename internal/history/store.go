package history

import (
	"container/list"
	"sync"
)

// DefaultMaxSessions bounds a Store built with a non-positive size.
const DefaultMaxSessions = 1024

// Store keeps one Holder per client session. When full, the least recently
// used session is dropped.
type Store struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

type entry struct {
	id     string
	holder *Holder
}

func NewStore(maxSessions int) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Store{
		max:     maxSessions,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Session returns the holder for id, creating it if needed.
func (s *Store) Session(id string) *Holder {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[id]; ok {
		s.order.MoveToFront(el)
		return el.Value.(*entry).holder
	}

	h := NewHolder()
	s.entries[id] = s.order.PushFront(&entry{id: id, holder: h})
	for s.order.Len() > s.max {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry).id)
	}
	return h
}

// Lookup returns the holder for id without creating one.
func (s *Store) Lookup(id string) (*Holder, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry).holder, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

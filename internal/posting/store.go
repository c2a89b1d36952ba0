package posting

import (
	"iter"
	"maps"
	"slices"
	"sync"
)

// Store owns the posting lists of an index, keyed by head id.
type Store struct {
	dim int

	mu    sync.RWMutex
	lists map[uint32]*List
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(dim int) *Store {
	return &Store{dim: dim, lists: make(map[uint32]*List)}
}

// Dim returns the vector dimension.
func (s *Store) Dim() int { return s.dim }

// Create adds an empty list for head.
func (s *Store) Create(head uint32) (*List, error) {
	return s.create(head, 0)
}

func (s *Store) create(head uint32, capacity int) (*List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[head]; ok {
		return nil, ErrListExists
	}
	l := newList(head, s.dim, capacity)
	s.lists[head] = l
	return l, nil
}

// Put installs a fully built list, replacing nothing.
func (s *Store) Put(l *List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[l.head]; ok {
		return ErrListExists
	}
	s.lists[l.head] = l
	return nil
}

// Get returns the list for head.
func (s *Store) Get(head uint32) (*List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[head]
	return l, ok
}

// Append adds rec to the list owned by head and returns its position.
func (s *Store) Append(head uint32, rec Record) (int, error) {
	l, ok := s.Get(head)
	if !ok {
		return -1, ErrNoList
	}
	return l.Append(rec)
}

// Scan returns a restartable sequence over the current contents of head's
// list. A missing list yields nothing.
func (s *Store) Scan(head uint32) iter.Seq[Record] {
	l, ok := s.Get(head)
	if !ok {
		return func(func(Record) bool) {}
	}
	return l.Scan()
}

// View returns a snapshot of head's list.
func (s *Store) View(head uint32) (View, bool) {
	l, ok := s.Get(head)
	if !ok {
		return View{Dim: s.dim}, false
	}
	return l.View(), true
}

// Len returns the length of head's list, or 0 when it does not exist.
func (s *Store) Len(head uint32) int {
	l, ok := s.Get(head)
	if !ok {
		return 0
	}
	return l.Len()
}

// Retire marks head's list as retired and removes it from the store.
// The returned view holds every record the list contained; appends that
// lose the race observe ErrRetired and must re-route.
func (s *Store) Retire(head uint32) (View, error) {
	s.mu.Lock()
	l, ok := s.lists[head]
	if ok {
		delete(s.lists, head)
	}
	s.mu.Unlock()
	if !ok {
		return View{Dim: s.dim}, ErrNoList
	}
	return l.retire(), nil
}

// Heads returns all head ids in ascending order.
func (s *Store) Heads() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.lists))
}

// NumLists returns the number of lists.
func (s *Store) NumLists() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lists)
}

// Count returns the total number of records across all lists.
func (s *Store) Count() int {
	s.mu.RLock()
	lists := slices.Collect(maps.Values(s.lists))
	s.mu.RUnlock()

	n := 0
	for _, l := range lists {
		n += l.Len()
	}
	return n
}

// MaxLen returns the length of the largest list.
func (s *Store) MaxLen() int {
	s.mu.RLock()
	lists := slices.Collect(maps.Values(s.lists))
	s.mu.RUnlock()

	m := 0
	for _, l := range lists {
		m = max(m, l.Len())
	}
	return m
}

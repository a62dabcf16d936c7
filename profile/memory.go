package profile

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store with listener fan-out. It backs
// tests and local development; production wiring uses the persistence
// package.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]*Record
	listeners map[string]map[int]func(*Record)
	nextID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]*Record),
		listeners: make(map[string]map[int]func(*Record)),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, rec *Record, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[key]
	if merge && ok {
		updated := existing.Clone()
		updated.MergeFrom(rec)
		s.docs[key] = updated
	} else {
		c := rec.Clone()
		c.ID = key
		s.docs[key] = c
	}
	s.notify(key)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	s.notify(key)
	return nil
}

// Subscribe delivers the current document synchronously before
// returning, then every write in order. Listeners run under the store
// lock and must not call back into the store.
func (s *MemoryStore) Subscribe(key string, onChange func(*Record), onError func(error)) UnsubscribeFunc {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.listeners[key] == nil {
		s.listeners[key] = make(map[int]func(*Record))
	}
	s.listeners[key][id] = onChange
	onChange(s.docs[key].Clone())
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[key], id)
			s.mu.Unlock()
		})
	}
}

func (s *MemoryStore) notify(key string) {
	for _, fn := range s.listeners[key] {
		fn(s.docs[key].Clone())
	}
}

package post

import (
	"context"
	"sort"
	"sync"

	"postapi/internal/core"
)

// MemoryStore keeps posts in process memory.
// Data survives across requests but not process restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[int64]*core.Post
	lastID int64
}

// NewMemoryStore creates an empty in-memory post store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[int64]*core.Post),
	}
}

// List returns posts ordered by id ascending.
func (s *MemoryStore) List(_ context.Context) ([]*core.Post, error) {
	s.mu.RLock()
	all := make([]*core.Post, 0, len(s.items))
	for _, p := range s.items {
		all = append(all, p.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// Create stores a new post and assigns its id.
func (s *MemoryStore) Create(_ context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	p.ID = s.lastID
	s.items[p.ID] = p.Clone()
	return nil
}

// Get retrieves one post by id.
func (s *MemoryStore) Get(_ context.Context, id int64) (*core.Post, error) {
	s.mu.RLock()
	p, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Update replaces the mutable fields of an existing post.
func (s *MemoryStore) Update(_ context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[p.ID]
	if !ok {
		return ErrNotFound
	}
	updated := p.Clone()
	updated.CreatedAt = existing.CreatedAt
	s.items[p.ID] = updated
	return nil
}

// Delete removes a post.
func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Count returns the number of stored posts.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

// Close releases resources (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

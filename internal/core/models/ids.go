package models

import (
	"sync"

	"github.com/google/uuid"
)

// IDAllocator owns the set of ids handed out or loaded in this process.
// The set only grows: deleting an entity does not free its id.
type IDAllocator struct {
	mu       sync.Mutex
	used     map[uuid.UUID]struct{}
	generate func() (uuid.UUID, error)
}

type IDAllocatorOption func(*IDAllocator)

// WithGenerator replaces uuid.NewRandom as the id source.
func WithGenerator(fn func() (uuid.UUID, error)) IDAllocatorOption {
	return func(a *IDAllocator) { a.generate = fn }
}

func NewIDAllocator(opts ...IDAllocatorOption) *IDAllocator {
	a := &IDAllocator{
		used:     make(map[uuid.UUID]struct{}),
		generate: uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns an id not yet in the set and records it. It retries until the
// generator produces an unused value.
func (a *IDAllocator) Next() (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		id, err := a.generate()
		if err != nil {
			return uuid.Nil, err
		}
		if _, taken := a.used[id]; taken {
			continue
		}
		a.used[id] = struct{}{}
		return id, nil
	}
}

// Register records id unconditionally.
func (a *IDAllocator) Register(id uuid.UUID) {
	a.mu.Lock()
	a.used[id] = struct{}{}
	a.mu.Unlock()
}

func (a *IDAllocator) Contains(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.used[id]
	return ok
}

func (a *IDAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

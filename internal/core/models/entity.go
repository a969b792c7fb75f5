package models

import (
	"github.com/google/uuid"
)

// Entity is a persisted game-object identity plus the behaviours attached to
// it at load time. The id never changes after construction.
type Entity struct {
	id   uuid.UUID
	Name string
	Tags Tags

	behaviours []Behaviour
}

// NewEntity mints a fresh, collision-checked id from alloc.
func NewEntity(name string, alloc *IDAllocator) (*Entity, error) {
	id, err := alloc.Next()
	if err != nil {
		return nil, err
	}
	return &Entity{id: id, Name: name}, nil
}

// RestoreEntity rebuilds an entity that already has an id, typically one read
// back from disk. The id is registered with alloc without a collision check.
// A nil alloc skips registration.
func RestoreEntity(name string, id uuid.UUID, tags Tags, alloc *IDAllocator) *Entity {
	if alloc != nil {
		alloc.Register(id)
	}
	return &Entity{id: id, Name: name, Tags: tags}
}

func (e *Entity) ID() uuid.UUID { return e.id }

// Behaviours returns the attached behaviours in attach order.
func (e *Entity) Behaviours() []Behaviour {
	out := make([]Behaviour, len(e.behaviours))
	copy(out, e.behaviours)
	return out
}

func (e *Entity) AddBehaviour(b Behaviour) {
	e.behaviours = append(e.behaviours, b)
}

// Behaviour returns the first attached behaviour with the given name.
func (e *Entity) Behaviour(name string) (Behaviour, bool) {
	for _, b := range e.behaviours {
		if b.BehaviourName() == name {
			return b, true
		}
	}
	return nil, false
}

func (e *Entity) HasBehaviour(name string) bool {
	_, ok := e.Behaviour(name)
	return ok
}

// RemoveBehaviour detaches every behaviour with the given name and reports
// whether any was removed.
func (e *Entity) RemoveBehaviour(name string) bool {
	kept := e.behaviours[:0]
	for _, b := range e.behaviours {
		if b.BehaviourName() != name {
			kept = append(kept, b)
		}
	}
	removed := len(kept) != len(e.behaviours)
	clear(e.behaviours[len(kept):])
	e.behaviours = kept
	return removed
}

// Equal compares entities by id only.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.id == other.id
}

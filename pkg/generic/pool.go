package generic

import "sync"

// Pool is a typed sync.Pool. Values handed back through Put are passed to
// the reset function first; reset may return false to drop the value.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) bool
}

func NewPool[T any](generate func() T, reset func(T) bool) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil && !p.reset(value) {
		return
	}
	p.pool.Put(value)
}

package rpc

import "sync"

// Registry tracks the ids of live workers. All operations are total; the
// mutex guards only the id set, never business data, and callers must not
// hold it across a blocking join.
type Registry struct {
	mu  sync.Mutex
	ids map[uint64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[uint64]struct{})}
}

// Insert adds id to the registry. Idempotent.
func (r *Registry) Insert(id uint64) {
	r.mu.Lock()
	r.ids[id] = struct{}{}
	r.mu.Unlock()
}

// Erase removes id if present. No-op otherwise.
func (r *Registry) Erase(id uint64) {
	r.mu.Lock()
	delete(r.ids, id)
	r.mu.Unlock()
}

// Contains reports whether id is currently tracked.
func (r *Registry) Contains(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of tracked ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Snapshot returns a copy of all tracked ids for iteration outside the lock.
// Joining a worker while holding the registry lock would deadlock against
// that worker erasing itself.
func (r *Registry) Snapshot() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	return out
}

// Sweep removes every id for which isAlive returns false and reports how
// many were reclaimed. Used periodically to drop bookkeeping for workers
// that could not remove themselves.
func (r *Registry) Sweep(isAlive func(uint64) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []uint64
	for id := range r.ids {
		if !isAlive(id) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(r.ids, id)
	}
	return len(dead)
}

package actorkit

import (
	"fmt"
	"sync"
)

// Registry maps well-known names to live Refs: the Central Hub
// registers itself under wippy.central and each User Hub under
// user.<user_id>, without requiring every lookup to thread through
// the Central Hub's own goroutine.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Ref
}

// NewRegistry creates an empty name registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Ref)}
}

// ErrNameTaken is returned by Register when name already resolves to a
// different, still-registered Ref.
var ErrNameTaken = fmt.Errorf("actorkit: name already registered")

// Register binds name to ref. Re-registering the same name with the
// same Ref is a no-op; binding it to a different Ref fails until the
// name is explicitly Unregistered.
func (r *Registry) Register(name string, ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing != ref {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	r.byName[name] = ref
	return nil
}

// Unregister removes name if it currently maps to ref. Unregistering a
// name that was already reassigned to a newer Ref is a safe no-op —
// this lets an exit handler race a fresh spawn without corrupting the
// registry.
func (r *Registry) Unregister(name string, ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing == ref {
		delete(r.byName, name)
	}
}

// Lookup resolves name to its current Ref, if any.
func (r *Registry) Lookup(name string) (Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.byName[name]
	return ref, ok
}

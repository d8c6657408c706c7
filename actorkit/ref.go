package actorkit

import (
	"fmt"
	"sync/atomic"
)

var nextID atomic.Uint64

// Ref is an opaque handle to a running actor, standing in for a
// protocol PID (client_pid, hub_pid, process_id). Refs are comparable
// and safe to use as map keys or to compare for identity, which is
// how a User Hub checks that a client_pid appears in at most one
// hub's connected_clients.
type Ref struct {
	id    uint64
	Label string
}

// NewRef allocates a fresh, process-unique Ref carrying a human-readable
// label for logging (e.g. "user-hub:alice", "plugin:ops_").
func NewRef(label string) Ref {
	return Ref{id: nextID.Add(1), Label: label}
}

// Zero reports whether r is the zero Ref (never returned by NewRef).
func (r Ref) Zero() bool {
	return r.id == 0
}

func (r Ref) String() string {
	if r.Label == "" {
		return fmt.Sprintf("ref#%d", r.id)
	}
	return fmt.Sprintf("%s#%d", r.Label, r.id)
}

package actorkit

import (
	"context"
	"errors"
	"time"
)

// Exit reports how a spawned actor terminated. Clean distinguishes a
// cancel-initiated or otherwise voluntary exit from a crash, which is
// the distinction used to decide whether a Plugin's restart budget is
// charged.
type Exit struct {
	Ref   Ref
	Err   error
	Clean bool
}

// Handle is returned by Spawn and lets the parent monitor and cancel
// the child, giving it both a link (Cancel propagates shutdown down)
// and a monitor (ExitCh reports termination back up).
type Handle struct {
	Ref    Ref
	ExitCh <-chan Exit
	cancel context.CancelFunc
}

// Cancel requests that the actor stop by canceling its context. It
// does not wait for the actor to exit; the caller observes termination
// asynchronously via ExitCh, optionally bounded by a grace timer of
// its own construction.
func (h *Handle) Cancel() {
	h.cancel()
}

// Run is the function body of a spawned actor. It must return promptly
// once ctx is done; a nil return, or a return of ctx.Err() after ctx
// was in fact canceled, both count as a clean exit.
type Run func(ctx context.Context, self Ref) error

// Spawn starts fn in a new goroutine under a child context derived from
// ctx, and returns a Handle that fires exactly one Exit on ExitCh when
// fn returns.
func Spawn(ctx context.Context, label string, fn Run) Handle {
	childCtx, cancel := context.WithCancel(ctx)
	ref := NewRef(label)
	exitCh := make(chan Exit, 1)

	go func() {
		err := fn(childCtx, ref)
		clean := err == nil
		if !clean && errors.Is(err, context.Canceled) && childCtx.Err() != nil {
			// The actor observed its own cancellation and unwound via
			// context.Canceled instead of returning nil: still a clean
			// exit, not a crash (see DESIGN.md Open Question resolution).
			clean = true
		}
		exitCh <- Exit{Ref: ref, Err: err, Clean: clean}
		close(exitCh)
	}()

	return Handle{Ref: ref, ExitCh: exitCh, cancel: cancel}
}

// AwaitExit blocks for the actor's Exit, up to grace. If grace elapses
// first, it returns false: the actor is considered forcibly abandoned
// (its goroutine may still be unwinding, but the caller stops waiting).
func AwaitExit(exitCh <-chan Exit, grace time.Duration) (Exit, bool) {
	select {
	case e := <-exitCh:
		return e, true
	case <-time.After(grace):
		return Exit{}, false
	}
}

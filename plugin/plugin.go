// Package plugin implements the per-(user,prefix) worker supervision
// state machine a User Hub runs against each of its Plugins: spawn,
// crash classification, bounded restart, and the terminal failed
// state.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/messaging"
)

// Status is a PluginEntry's position in the state machine described
// in the component design for Plugin supervision.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// MaxRestarts is how many times a Plugin may crash and be respawned
// before its Entry becomes permanently Failed. A plugin may crash at
// most this many times before it stops being restarted.
const MaxRestarts = 1

// InitArgs is what a User Hub hands a Runner at spawn.
type InitArgs struct {
	UserID       string
	UserMetadata map[string]any
	UserHubRef   actorkit.Ref
	Config       any
}

// Runner is the opaque worker behavior a Plugin executes. Concrete
// session/plugin process implementations are black boxes behind this
// interface and the topic contract carried over Mailbox.
type Runner interface {
	Run(ctx context.Context, mailbox *actorkit.Mailbox[messaging.Envelope], init InitArgs) error
}

// ErrFailed is returned by Entry.Send when the entry has already
// reached the terminal Failed state.
var ErrFailed = errors.New("plugin: entry has failed")

// Entry is the per-(user,prefix) supervision record a User Hub keeps
// in its active_plugins map.
type Entry struct {
	Prefix       string
	Status       Status
	RestartCount int

	handle  actorkit.Handle
	mailbox *actorkit.Mailbox[messaging.Envelope]
	runner  Runner
	init    InitArgs
}

// NewEntry creates a Pending entry for prefix, not yet spawned.
func NewEntry(prefix string, runner Runner, init InitArgs) *Entry {
	return &Entry{
		Prefix: prefix,
		Status: StatusPending,
		runner: runner,
		init:   init,
	}
}

// Spawn starts the entry's Runner as a supervised actor. mailboxSize
// sizes its inbound Mailbox. Spawn itself always returns nil and sets
// Running; when it returns an error, its callers (TryRestart, and the
// User Hub through MarkFailed) move the entry to Failed, the
// "spawn error -> failed" edge in the state diagram.
func (e *Entry) Spawn(ctx context.Context, mailboxSize int) error {
	e.mailbox = actorkit.NewMailbox[messaging.Envelope](ctx, mailboxSize)
	handle := actorkit.Spawn(ctx, "plugin:"+e.Prefix, func(ctx context.Context, self actorkit.Ref) error {
		return e.runner.Run(ctx, e.mailbox, e.init)
	})
	e.handle = handle
	e.Status = StatusRunning
	return nil
}

// Handle returns the entry's actor handle, valid once Status is
// Running (or was Running before an exit was observed).
func (e *Entry) Handle() actorkit.Handle { return e.handle }

// Send delivers env to the plugin's mailbox, blocking on ctx per the
// documented sender-blocks backpressure policy for User Hub -> Plugin
// traffic. It fails fast with ErrFailed rather than enqueuing to a
// dead plugin.
func (e *Entry) Send(ctx context.Context, env messaging.Envelope) error {
	if e.Status == StatusFailed {
		return ErrFailed
	}
	return e.mailbox.Send(ctx, env)
}

// TryRestart applies a crash exit to the entry: if RestartCount is
// still below MaxRestarts it bumps the counter, re-spawns, and
// reports restarted=true; otherwise it transitions to Failed (terminal
// — it never transitions back) and reports restarted=false.
func (e *Entry) TryRestart(ctx context.Context, mailboxSize int) (restarted bool, err error) {
	if e.Status == StatusFailed {
		return false, ErrFailed
	}
	if e.RestartCount >= MaxRestarts {
		e.Status = StatusFailed
		return false, nil
	}
	e.RestartCount++
	if err := e.Spawn(ctx, mailboxSize); err != nil {
		e.Status = StatusFailed
		return false, fmt.Errorf("plugin: restart spawn: %w", err)
	}
	return true, nil
}

// MarkStopped records a clean exit. A stopped entry is not restarted;
// a future command matching its prefix spawns a fresh Pending entry.
func (e *Entry) MarkStopped() { e.Status = StatusStopped }

// MarkFailed forces the terminal Failed state, used when Spawn itself
// fails (the "spawn error" edge in the state diagram).
func (e *Entry) MarkFailed() { e.Status = StatusFailed }

// IsCrash classifies an actorkit.Exit: a link-down or an exit carrying
// a non-nil, non-clean error is a crash; a cancel-initiated clean exit
// is not.
func IsCrash(exit actorkit.Exit) bool {
	return !exit.Clean && exit.Err != nil
}

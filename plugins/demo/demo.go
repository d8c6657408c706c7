// Package demo provides a minimal plugin.Runner used when no real
// plugin process backend (a Lua VM host or similar) is wired in. It
// just drains its mailbox and logs what it receives, which is enough
// to exercise the full supervision state machine end to end in a
// single binary.
package demo

import (
	"context"
	"time"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/messaging"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/plugin"
	"github.com/wippy-systems/relay/pluginreg"
)

// Factory builds a Runner for every descriptor a User Hub asks it to
// start, satisfying userhub.PluginFactory.
type Factory struct {
	Observer observability.Observer
}

// New implements userhub.PluginFactory.
func (f Factory) New(d pluginreg.Descriptor) plugin.Runner {
	obs := f.Observer
	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	return &Runner{prefix: d.Prefix, obs: obs}
}

// Runner drains its mailbox until canceled, logging every envelope.
type Runner struct {
	prefix string
	obs    observability.Observer
}

// Run implements plugin.Runner.
func (r *Runner) Run(ctx context.Context, mailbox *actorkit.Mailbox[messaging.Envelope], init plugin.InitArgs) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-mailbox.Chan():
			r.obs.OnEvent(ctx, observability.Event{
				Type:      "demo_plugin.message",
				Level:     observability.LevelInfo,
				Timestamp: time.Now(),
				Source:    "plugin." + r.prefix,
				Data:      map[string]any{"user_id": init.UserID, "topic": env.Topic},
			})
		}
	}
}

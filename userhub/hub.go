// Package userhub implements the per-user hub that owns a user's live
// connections, routes client commands to Plugins by command-prefix,
// supervises those Plugins with a bounded restart budget, and
// broadcasts plugin output back to its clients.
package userhub

import (
	"context"
	"sort"
	"time"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/messaging"
	"github.com/wippy-systems/relay/metrics"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/plugin"
	"github.com/wippy-systems/relay/pluginreg"
	"github.com/wippy-systems/relay/relayconfig"
	"github.com/wippy-systems/relay/security"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// PluginFactory constructs the opaque Runner behind a plugin registry
// descriptor. Concrete session/plugin process implementations stay
// black boxes behind this factory and the topic contract.
type PluginFactory interface {
	New(d pluginreg.Descriptor) plugin.Runner
}

// CentralNotifier is the narrow surface a User Hub needs on its
// Central Hub: posting activity updates. Owned here (not by central)
// so userhub never imports its parent.
type CentralNotifier interface {
	NotifyActivity(userID string, clientCount int, lastActivity time.Time)
}

// Hub is one User Hub: one per active user, spawned lazily by the
// Central Hub and torn down on cancel, inactivity eviction, or crash.
type Hub struct {
	userID       string
	userMetadata map[string]any
	actor        security.Actor

	config  relayconfig.UserHubConfig
	plugins *pluginreg.Registry
	factory PluginFactory

	central CentralNotifier
	sender  transport.Sender
	obs     observability.Observer
	metrics *metrics.UserHub

	mailbox *actorkit.Mailbox[messaging.Envelope]

	connectedClients map[transport.ClientID]struct{}
	activePlugins    map[string]*plugin.Entry
	pluginExitCh     chan pluginExit

	selfRef actorkit.Ref
}

type pluginExit struct {
	prefix string
	exit   actorkit.Exit
}

// Config bundles the collaborators New needs; it exists so the
// constructor's argument list does not grow every time a dependency
// is added.
type Config struct {
	UserID       string
	UserMetadata map[string]any
	Actor        security.Actor
	HubConfig    relayconfig.UserHubConfig
	Plugins      *pluginreg.Registry
	Factory      PluginFactory
	Central      CentralNotifier
	Sender       transport.Sender
	Observer     observability.Observer
	Metrics      *metrics.UserHub
}

// New constructs a Hub. It does not start it; call Run in its own
// goroutine (typically via actorkit.Spawn).
func New(cfg Config) *Hub {
	obs := cfg.Observer
	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewUserHub()
	}
	return &Hub{
		userID:           cfg.UserID,
		userMetadata:     cfg.UserMetadata,
		actor:            cfg.Actor,
		config:           cfg.HubConfig,
		plugins:          cfg.Plugins,
		factory:          cfg.Factory,
		central:          cfg.Central,
		sender:           cfg.Sender,
		obs:              obs,
		metrics:          m,
		mailbox:          actorkit.NewMailbox[messaging.Envelope](context.Background(), cfg.HubConfig.MessageQueueSize),
		connectedClients: make(map[transport.ClientID]struct{}),
		activePlugins:    make(map[string]*plugin.Entry),
		pluginExitCh:     make(chan pluginExit, 16),
	}
}

// Dispatch implements transport.Hub. It is called from the transport's
// own goroutine, so it never blocks: a full mailbox drops the event
// rather than stall the caller.
func (h *Hub) Dispatch(t string, from transport.ClientID, payload any) {
	env := messaging.New(t, messaging.KindTransport, string(from), h.userID, payload)
	if !h.mailbox.TrySend(env) {
		h.obs.OnEvent(context.Background(), observability.Event{
			Type:      "userhub.mailbox_full",
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "userhub." + h.userID,
			Data:      map[string]any{"topic": t, "from": string(from)},
		})
	}
}

// Run is the Hub's actor body: it multiplexes its mailbox, its
// plugins' exit events, and ctx cancellation, the suspension sources
// every process in this system waits on. self is recorded so it can be
// handed to Plugins as their user_hub_pid.
func (h *Hub) Run(ctx context.Context, self actorkit.Ref) error {
	h.selfRef = self
	h.autoStart(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case env := <-h.mailbox.Chan():
			if h.handle(ctx, env) {
				h.shutdown()
				return nil
			}
		case pe := <-h.pluginExitCh:
			h.handlePluginExit(ctx, pe)
		}
	}
}

// handle processes one mailbox item and reports whether it should end
// the Hub's Run loop.
func (h *Hub) handle(ctx context.Context, env messaging.Envelope) bool {
	switch env.Topic {
	case topic.Join:
		h.handleJoin(ctx, transport.ClientID(env.From))
	case topic.Leave:
		h.handleLeave(ctx, transport.ClientID(env.From))
	case topic.Message:
		h.handleMessage(ctx, transport.ClientID(env.From), env.Payload)
	case topic.Cancel:
		return true
	default:
		// Anything else is a Plugin's unsolicited output; broadcast
		// it verbatim without inspecting the payload.
		h.broadcast(env.Topic, env.Payload)
	}
	return false
}

func (h *Hub) descriptorViews() []topic.PluginDescriptorView {
	all := h.plugins.All()
	views := make([]topic.PluginDescriptorView, len(all))
	for i, d := range all {
		views[i] = topic.PluginDescriptorView{Prefix: d.Prefix, AutoStart: d.AutoStart}
	}
	return views
}

func (h *Hub) broadcast(t string, payload any) {
	h.metrics.RecordBroadcast()
	clients := make([]transport.ClientID, 0, len(h.connectedClients))
	for c := range h.connectedClients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	for _, c := range clients {
		h.sender.Send(c, t, payload)
	}
}

func (h *Hub) postActivityUpdate() {
	if h.central == nil {
		return
	}
	h.central.NotifyActivity(h.userID, len(h.connectedClients), time.Now())
}

func (h *Hub) shutdown() {
	for _, entry := range h.activePlugins {
		handle := entry.Handle()
		handle.Cancel()
	}
}

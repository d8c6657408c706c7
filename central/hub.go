// Package central implements the Central Hub singleton: connection
// admission, lazy User Hub creation, rebinding, and inactivity garbage
// collection.
package central

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/messaging"
	"github.com/wippy-systems/relay/metrics"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/pluginreg"
	"github.com/wippy-systems/relay/relayconfig"
	"github.com/wippy-systems/relay/security"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// RegistryName is the well-known name the Central Hub registers itself
// under.
const RegistryName = "wippy.central"

// UserHubFactory constructs and spawns the concrete User Hub actor for
// a newly admitted user. Central owns admission and lifecycle
// bookkeeping; it never depends on userhub's package to avoid a
// central<->userhub import cycle (userhub already depends upward on
// central only through the narrow CentralNotifier interface it
// declares itself).
type UserHubFactory interface {
	// Spawn starts a new User Hub for userID and returns both its
	// actor Handle (for cancellation and exit observation) and its
	// transport.Hub dispatcher (so Central can forward broadcasts and
	// hub.activity_update processing back into it without importing
	// the userhub package).
	Spawn(ctx context.Context, userID string, userMetadata map[string]any, actor security.Actor) (transport.Hub, actorkit.Handle, error)
}

type userHubEntry struct {
	ref                  actorkit.Ref
	handle               actorkit.Handle
	dispatcher           transport.Hub
	createdAt            time.Time
	lastActivity         time.Time
	clientCount          int
	terminating          bool
	terminationStartedAt time.Time
}

// CancelTimeout is the shutdown grace period. cmd/relayd uses it as the
// deadline for stopping its HTTP servers. GC eviction and Central Hub
// shutdown do not use it: they cancel a User Hub's context and return
// without waiting, and nothing stops a User Hub that ignores the
// cancellation.
const CancelTimeout = 10 * time.Second

// Hub is the Central Hub singleton.
type Hub struct {
	config   relayconfig.CentralConfig
	plugins  *pluginreg.Registry
	security security.Provider
	scope    security.Scope
	factory  UserHubFactory
	sender   transport.Sender
	registry *actorkit.Registry
	obs      observability.Observer
	metrics  *metrics.Central

	mailbox *actorkit.Mailbox[messaging.Envelope]
	ref     actorkit.Ref

	mu       sync.Mutex // guards userHubs; also serializes admission so two joins for the same user can't race a hub into existence twice
	userHubs map[string]*userHubEntry

	exitCh chan hubExit
}

type hubExit struct {
	userID string
	ref    actorkit.Ref
	exit   actorkit.Exit
}

// Config bundles Hub's collaborators.
type Config struct {
	CentralConfig relayconfig.CentralConfig
	Plugins       *pluginreg.Registry
	Security      security.Provider
	Factory       UserHubFactory
	Sender        transport.Sender
	Registry      *actorkit.Registry
	Observer      observability.Observer
	Metrics       *metrics.Central
}

// New constructs a Hub. Start resolves the configured security scope
// (fatal on failure) and registers the Hub under RegistryName.
func New(cfg Config) *Hub {
	obs := cfg.Observer
	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewCentral()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = actorkit.NewRegistry()
	}
	return &Hub{
		config:   cfg.CentralConfig,
		plugins:  cfg.Plugins,
		security: cfg.Security,
		factory:  cfg.Factory,
		sender:   cfg.Sender,
		registry: reg,
		obs:      obs,
		metrics:  m,
		userHubs: make(map[string]*userHubEntry),
		exitCh:   make(chan hubExit, 32),
		mailbox:  actorkit.NewMailbox[messaging.Envelope](context.Background(), 1024),
	}
}

// Start resolves the security scope and registers the Hub. A failure
// here is unrecoverable: the Central Hub cannot admit anyone without
// a resolved scope, so the caller should treat it as fatal.
func (h *Hub) Start(ctx context.Context, ref actorkit.Ref) error {
	scope, err := h.security.Scope(ctx, h.config.UserSecurityScope)
	if err != nil {
		return fmt.Errorf("central: resolving security scope %q: %w", h.config.UserSecurityScope, err)
	}
	h.scope = scope
	h.ref = ref
	if err := h.registry.Register(RegistryName, ref); err != nil {
		return fmt.Errorf("central: registering %q: %w", RegistryName, err)
	}
	return nil
}

// Dispatch implements transport.Hub: it enqueues an inbound ws.join /
// ws.leave / hub.activity_update event without blocking the caller.
func (h *Hub) Dispatch(t string, from transport.ClientID, payload any) {
	env := messaging.New(t, messaging.KindTransport, string(from), RegistryName, payload)
	if !h.mailbox.TrySend(env) {
		h.obs.OnEvent(context.Background(), observability.Event{
			Type:      "central.mailbox_full",
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "central",
			Data:      map[string]any{"topic": t},
		})
	}
}

// NotifyActivity implements userhub.CentralNotifier.
func (h *Hub) NotifyActivity(userID string, clientCount int, lastActivity time.Time) {
	env := messaging.New(topic.ActivityUpdate, messaging.KindHubToHub, "user."+userID, RegistryName, topic.ActivityUpdateFrame{
		UserID:       userID,
		ClientCount:  clientCount,
		LastActivity: lastActivity.UTC().Format(time.RFC3339),
	})
	h.mailbox.TrySend(env)
}

// Run is the Central Hub's actor body: the fourth suspension source
// beyond mailbox/exits/ctx that only Central has is its GC ticker.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.config.GCCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case env := <-h.mailbox.Chan():
			h.handle(ctx, env)
		case he := <-h.exitCh:
			h.handleUserHubExit(he)
		case <-ticker.C:
			h.runGC(ctx)
		}
	}
}

func (h *Hub) handle(ctx context.Context, env messaging.Envelope) {
	switch env.Topic {
	case topic.Join:
		h.handleJoin(ctx, transport.ClientID(env.From), env.Payload)
	case topic.Leave:
		// advisory only; the User Hub learns about real departure
		// directly from the transport.
		h.obs.OnEvent(ctx, observability.Event{
			Type:      "central.ws_leave",
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "central",
			Data:      map[string]any{"client_pid": env.From},
		})
	case topic.ActivityUpdate:
		h.handleActivityUpdate(env.Payload)
	default:
		h.broadcastToUserHubs(env.Topic, env.Payload)
	}
}

// broadcastToUserHubs forwards an unrecognized topic verbatim to every
// currently live User Hub. This is best-effort: a User Hub whose
// mailbox is full simply misses it.
func (h *Hub) broadcastToUserHubs(t string, payload any) {
	h.mu.Lock()
	dispatchers := make([]transport.Hub, 0, len(h.userHubs))
	for _, entry := range h.userHubs {
		if !entry.terminating {
			dispatchers = append(dispatchers, entry.dispatcher)
		}
	}
	h.mu.Unlock()

	for _, d := range dispatchers {
		d.Dispatch(t, "", payload)
	}
}

// MetricsSnapshot returns a point-in-time read of Central's counters,
// for the admin package's status endpoint.
func (h *Hub) MetricsSnapshot() metrics.CentralSnapshot {
	return h.metrics.Snapshot()
}

// UserHubStatus is the admin-facing projection of a live userHubEntry.
type UserHubStatus struct {
	UserID       string
	ClientCount  int
	CreatedAt    time.Time
	LastActivity time.Time
	Terminating  bool
}

// UserHubStatuses lists every User Hub Central currently tracks.
func (h *Hub) UserHubStatuses() []UserHubStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]UserHubStatus, 0, len(h.userHubs))
	for userID, entry := range h.userHubs {
		out = append(out, UserHubStatus{
			UserID:       userID,
			ClientCount:  entry.clientCount,
			CreatedAt:    entry.createdAt,
			LastActivity: entry.lastActivity,
			Terminating:  entry.terminating,
		})
	}
	return out
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range h.userHubs {
		entry.handle.Cancel()
	}
}

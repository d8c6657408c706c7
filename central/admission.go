package central

import (
	"context"
	"fmt"
	"time"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// joinPayload is what a transport implementation hands Dispatch for a
// ws.join event.
type joinPayload struct {
	ClientPID string
	UserID    string
	Metadata  map[string]any
}

// JoinPayload builds the payload a transport passes to
// Dispatch(topic.Join, clientPID, ...) on a new connection.
func JoinPayload(clientPID, userID string, metadata map[string]any) any {
	return joinPayload{ClientPID: clientPID, UserID: userID, Metadata: metadata}
}

// handleJoin implements the connection admission algorithm: reject on
// a missing user id or a per-user connection cap, otherwise get or
// create the user's hub and hand the client its rebind target.
func (h *Hub) handleJoin(ctx context.Context, client transport.ClientID, payload any) {
	jp, ok := payload.(joinPayload)
	if !ok || jp.UserID == "" {
		h.sender.Send(client, topic.Error, topic.ErrorFrame{Error: topic.ErrMissingUserID})
		return
	}

	h.mu.Lock()
	if entry, ok := h.userHubs[jp.UserID]; ok && entry.clientCount >= h.config.MaxConnectionsPerUser {
		h.mu.Unlock()
		h.metrics.RecordRejection()
		h.sender.Send(client, topic.Error, topic.ErrorFrame{
			Error:   topic.ErrMaxConnectionsReached,
			Message: fmt.Sprintf("(%d connections)", h.config.MaxConnectionsPerUser),
		})
		return
	}
	h.mu.Unlock()

	ref, err := h.getOrCreateUserHub(ctx, jp.UserID, jp.Metadata)
	if err != nil {
		h.metrics.RecordRejection()
		h.sender.Send(client, topic.Error, topic.ErrorFrame{Error: topic.ErrHubCreationFailed, Message: err.Error()})
		return
	}

	h.metrics.RecordAdmission()
	h.sender.Send(client, topic.Control, topic.ControlFrame{
		TargetPID: ref.String(),
		Metadata:  jp.Metadata,
		Plugins:   h.descriptorViews(),
	})

	h.mu.Lock()
	if entry, ok := h.userHubs[jp.UserID]; ok {
		entry.lastActivity = time.Now()
	}
	h.mu.Unlock()
}

// getOrCreateUserHub is idempotent: a second call for the same
// user_id returns the existing hub's ref rather than spawning again.
// Central's mutex serializes admission end to end, so two concurrent
// ws.join calls for the same user_id can never observe or hand out
// two different target_pids; there is no separate compare-and-swap
// step to race.
func (h *Hub) getOrCreateUserHub(ctx context.Context, userID string, userMetadata map[string]any) (actorkit.Ref, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, ok := h.userHubs[userID]; ok && !entry.terminating {
		return entry.ref, nil
	}

	actor, err := h.security.Actor(ctx, userID, userMetadata)
	if err != nil {
		return actorkit.Ref{}, fmt.Errorf("central: constructing security actor: %w", err)
	}

	dispatcher, handle, err := h.factory.Spawn(ctx, userID, userMetadata, actor)
	if err != nil {
		return actorkit.Ref{}, fmt.Errorf("central: spawning user hub: %w", err)
	}

	now := time.Now()
	h.userHubs[userID] = &userHubEntry{
		ref:          handle.Ref,
		handle:       handle,
		dispatcher:   dispatcher,
		createdAt:    now,
		lastActivity: now,
	}
	h.metrics.RecordHubCreated()
	h.registry.Register("user."+userID, handle.Ref)
	h.watchExit(userID, handle)

	return handle.Ref, nil
}

func (h *Hub) watchExit(userID string, handle actorkit.Handle) {
	go func() {
		exit := <-handle.ExitCh
		h.exitCh <- hubExit{userID: userID, ref: handle.Ref, exit: exit}
	}()
}

// handleUserHubExit removes the entry unconditionally and decrements
// total_hubs; Central never auto-restarts a User Hub.
func (h *Hub) handleUserHubExit(he hubExit) {
	h.mu.Lock()
	entry, ok := h.userHubs[he.userID]
	if ok && entry.ref == he.ref {
		delete(h.userHubs, he.userID)
		h.registry.Unregister("user."+he.userID, he.ref)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.metrics.RecordHubEvicted()
	level := observability.LevelInfo
	if he.exit.Err != nil && !he.exit.Clean {
		level = observability.LevelWarning
	}
	h.obs.OnEvent(context.Background(), observability.Event{
		Type:      "central.user_hub_exited",
		Level:     level,
		Timestamp: time.Now(),
		Source:    "central",
		Data:      map[string]any{"user_id": he.userID, "clean": he.exit.Clean},
	})
}

// handleActivityUpdate applies a hub.activity_update from a User Hub.
// Unknown users are ignored.
func (h *Hub) handleActivityUpdate(payload any) {
	frame, ok := payload.(topic.ActivityUpdateFrame)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.userHubs[frame.UserID]
	if !ok {
		return
	}
	entry.clientCount = frame.ClientCount
	if t, err := time.Parse(time.RFC3339, frame.LastActivity); err == nil {
		entry.lastActivity = t
	}
}

// runGC sweeps for User Hubs idle past their inactivity timeout and
// starts their cancellation.
func (h *Hub) runGC(ctx context.Context) {
	h.mu.Lock()
	var toCancel []*userHubEntry
	now := time.Now()
	for _, entry := range h.userHubs {
		if entry.clientCount > 0 || entry.terminating {
			continue
		}
		idle := now.Sub(entry.lastActivity)
		if entry.lastActivity.IsZero() {
			idle = now.Sub(entry.createdAt)
		}
		if idle > h.config.UserHubInactivityTimeout {
			toCancel = append(toCancel, entry)
		}
	}
	for _, entry := range toCancel {
		entry.terminating = true
		entry.terminationStartedAt = now
	}
	h.mu.Unlock()

	for _, entry := range toCancel {
		entry.handle.Cancel()
	}
}

// Resolve looks up the transport.Hub a rebind target_pid (as handed
// out in a ws.control ControlFrame) currently points at. It also
// accepts the registry names: RegistryName for the Central Hub and
// user.<user_id> for a User Hub. A transport implementation calls this
// once, synchronously, before routing any further ws.message for that
// client, so its outbound ordering guarantee holds.
func (h *Hub) Resolve(targetPID string) (transport.Hub, bool) {
	if targetPID == h.ref.String() || targetPID == RegistryName {
		return h, true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, entry := range h.userHubs {
		if (entry.ref.String() == targetPID || "user."+userID == targetPID) && !entry.terminating {
			return entry.dispatcher, true
		}
	}
	return nil, false
}

func (h *Hub) descriptorViews() []topic.PluginDescriptorView {
	all := h.plugins.All()
	views := make([]topic.PluginDescriptorView, len(all))
	for i, d := range all {
		views[i] = topic.PluginDescriptorView{Prefix: d.Prefix, AutoStart: d.AutoStart}
	}
	return views
}

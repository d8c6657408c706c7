package userhub

import (
	"context"

	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// handleJoin registers client and welcomes it.
func (h *Hub) handleJoin(ctx context.Context, client transport.ClientID) {
	wasEmpty := len(h.connectedClients) == 0
	h.connectedClients[client] = struct{}{}
	h.metrics.RecordClientJoined()

	h.sender.Send(client, topic.Welcome, topic.WelcomeFrame{
		UserID:      h.userID,
		ClientCount: len(h.connectedClients),
		Plugins:     h.descriptorViews(),
	})

	if wasEmpty && len(h.connectedClients) == 1 {
		if entry, ok := h.activePlugins[topic.SessionPluginPrefix]; ok {
			_ = entry.Send(ctx, resumeEnvelope(h.userID))
		}
	}

	h.postActivityUpdate()
}

// handleLeave deregisters client.
func (h *Hub) handleLeave(ctx context.Context, client transport.ClientID) {
	if _, ok := h.connectedClients[client]; !ok {
		return
	}
	delete(h.connectedClients, client)
	h.metrics.RecordClientLeft()

	if len(h.connectedClients) == 0 {
		if entry, ok := h.activePlugins[topic.SessionPluginPrefix]; ok {
			_ = entry.Send(ctx, shutdownEnvelope(h.userID))
		}
	}

	h.postActivityUpdate()
}

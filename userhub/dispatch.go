package userhub

import (
	"context"
	"encoding/json"

	"github.com/wippy-systems/relay/messaging"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// handleMessage implements the client-message dispatch algorithm:
// decode, find the longest matching plugin prefix, ensure it is
// running, then forward with the prefix stripped.
func (h *Hub) handleMessage(ctx context.Context, client transport.ClientID, payload any) {
	body, ok := payloadBytes(payload)
	if !ok {
		h.sendError(client, topic.ErrInvalidJSON, "unrecognized message payload", "")
		return
	}

	var frame topic.ClientFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		h.sendError(client, topic.ErrInvalidJSON, err.Error(), "")
		return
	}
	if frame.Type == "" {
		h.sendError(client, topic.ErrUnknownCommand, "", frame.RequestID)
		return
	}

	d, ok := h.plugins.Match(frame.Type)
	if !ok {
		h.sendError(client, topic.ErrPluginNotFound, "", frame.RequestID)
		return
	}

	entry, err := h.ensureRunning(ctx, d)
	if err != nil {
		h.sendError(client, topic.ErrPluginFailed, err.Error(), frame.RequestID)
		return
	}

	strippedType := frame.Type[len(d.Prefix):]
	msg := topic.PluginMessage{
		ConnPID:    string(client),
		RequestID:  frame.RequestID,
		SessionID:  frame.SessionID,
		Type:       frame.Type,
		Data:       frame.Data,
		StartToken: frame.StartToken,
		Context:    frame.Context,
	}
	env := messaging.New(strippedType, messaging.KindHubToPlugin, string(client), d.Prefix, msg)
	if err := entry.Send(ctx, env); err != nil {
		h.sendError(client, topic.ErrPluginFailed, err.Error(), frame.RequestID)
		return
	}
	h.metrics.RecordMessageRouted()
}

func (h *Hub) sendError(client transport.ClientID, kind topic.ErrorKind, message, requestID string) {
	h.sender.Send(client, topic.Error, topic.ErrorFrame{
		Error:     kind,
		Message:   message,
		RequestID: requestID,
	})
}

// payloadBytes accepts either raw JSON bytes or a string, both of
// which a transport implementation might reasonably hand Dispatch.
func payloadBytes(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

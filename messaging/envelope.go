// Package messaging defines the Envelope type carried on every actor
// mailbox in the relay: Central Hub, User Hub, and Plugin goroutines all
// exchange Envelopes rather than raw values, so routing, provenance, and
// logging stay uniform across the hub hierarchy.
package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies how an Envelope should be treated by its recipient's
// dispatch loop. It does not appear on the wire; it exists purely to
// let a hub tell, without inspecting Payload, whether an Envelope came
// from the transport, another hub, or a plugin.
type Kind string

const (
	KindTransport    Kind = "transport"    // ws.join / ws.leave / ws.message / ws.cancel
	KindHubToHub     Kind = "hub_to_hub"   // hub.activity_update and administrative broadcasts
	KindPluginToHub  Kind = "plugin_to_hub"
	KindHubToPlugin  Kind = "hub_to_plugin"
	KindHubToClient  Kind = "hub_to_client" // ws.control / error / welcome / plugin broadcast
)

// Envelope wraps a topic-tagged payload with enough provenance to route,
// log, and (for request/response uses inside a single hub) correlate it.
type Envelope struct {
	ID        string
	Topic     string
	Kind      Kind
	From      string
	To        string
	Payload   any
	Timestamp time.Time
}

// New builds an Envelope with a fresh time-sortable ID.
func New(topic string, kind Kind, from, to string, payload any) Envelope {
	return Envelope{
		ID:        generateID(),
		Topic:     topic,
		Kind:      kind,
		From:      from,
		To:        to,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope{ID: %s, Topic: %s, From: %s, To: %s}", e.ID, e.Topic, e.From, e.To)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}

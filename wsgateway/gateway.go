// Package wsgateway is the concrete WebSocket transport for the relay:
// it accepts client connections, synthesizes ws.join/ws.leave for the
// Central Hub, and forwards ws.message to whichever hub currently owns
// a connection. It applies a ws.control rebind to its
// internal routing table before the control frame reaches the socket,
// which is what gives the transport its ordering guarantee: the
// client cannot observe a User Hub emission on a client_pid before it
// has observed that client_pid's rebind.
package wsgateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/central"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Resolver looks up the transport.Hub a ws.control target_pid
// currently points at. *central.Hub satisfies this.
type Resolver interface {
	Resolve(targetPID string) (transport.Hub, bool)
}

// Gateway accepts WebSocket connections and bridges them to the hub
// tree. It implements transport.Sender: a hub calls Send to deliver an
// outbound frame to a specific client_pid.
type Gateway struct {
	central  transport.Hub
	resolver Resolver
	obs      observability.Observer
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[transport.ClientID]*client
	routes  map[transport.ClientID]transport.Hub
}

// NewGateway constructs a Gateway. central is the Dispatch target for
// a freshly accepted connection's synthesized ws.join; resolver
// answers the ws.control rebind lookup once Central admits it.
func NewGateway(central transport.Hub, resolver Resolver, obs observability.Observer) *Gateway {
	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	return &Gateway{
		central:  central,
		resolver: resolver,
		obs:      obs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[transport.ClientID]*client),
		routes:  make(map[transport.ClientID]transport.Hub),
	}
}

// Router mounts the gateway's upgrade endpoint behind the chi
// middleware stack.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/ws", g.handleUpgrade)
	return r
}

// handleUpgrade admits a raw HTTP connection into the relay. user_id
// travels as a query parameter; this transport does not itself
// authenticate the connection (that is a concern of whatever sits in
// front of it, e.g. a reverse proxy).
func (g *Gateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.obs.OnEvent(r.Context(), observability.Event{
			Type:      "wsgateway.upgrade_failed",
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "wsgateway",
			Data:      map[string]any{"error": err.Error()},
		})
		return
	}

	id := transport.ClientID(actorkit.NewRef("ws").String())
	c := &client{id: id, conn: conn, send: make(chan []byte, 64), gw: g}

	g.mu.Lock()
	g.clients[id] = c
	g.routes[id] = g.central
	g.mu.Unlock()

	go c.writePump()
	go c.readPump()

	g.central.Dispatch(topic.Join, id, central.JoinPayload(string(id), userID, nil))
}

// routeFor reports the hub id's inbound frames currently forward to:
// Central before admission, the resolved User Hub after rebind.
func (g *Gateway) routeFor(id transport.ClientID) transport.Hub {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if hub, ok := g.routes[id]; ok {
		return hub
	}
	return g.central
}

func (g *Gateway) unregister(id transport.ClientID) {
	g.mu.Lock()
	c, existed := g.clients[id]
	hub, hadRoute := g.routes[id]
	delete(g.clients, id)
	delete(g.routes, id)
	g.mu.Unlock()

	if existed {
		close(c.send)
	}
	if hadRoute {
		hub.Dispatch(topic.Leave, id, nil)
	}
}

// Send implements transport.Sender. A ws.control frame updates id's
// route before the frame is queued for the socket, so any ws.message
// this connection sends afterward is forwarded to the new owner even
// if the client hasn't finished reading the control frame yet.
func (g *Gateway) Send(id transport.ClientID, t string, payload any) {
	if t == topic.Control {
		if frame, ok := payload.(topic.ControlFrame); ok {
			if hub, ok := g.resolver.Resolve(frame.TargetPID); ok {
				g.mu.Lock()
				g.routes[id] = hub
				g.mu.Unlock()
				hub.Dispatch(topic.Join, id, nil)
			}
		}
	}

	data, err := encodeFrame(t, payload)
	if err != nil {
		g.obs.OnEvent(context.Background(), observability.Event{
			Type:      "wsgateway.encode_failed",
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "wsgateway",
			Data:      map[string]any{"topic": t, "error": err.Error()},
		})
		return
	}

	g.mu.RLock()
	c, ok := g.clients[id]
	g.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		// Send buffer full; drop. Broadcasts and control frames are
		// best-effort once past the routing update above.
	}
}

package central_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/central"
	"github.com/wippy-systems/relay/metrics"
	"github.com/wippy-systems/relay/pluginreg"
	"github.com/wippy-systems/relay/relayconfig"
	"github.com/wippy-systems/relay/security"
	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

type sentFrame struct {
	client  transport.ClientID
	topic   string
	payload any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentFrame
}

func (s *fakeSender) Send(client transport.ClientID, t string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentFrame{client: client, topic: t, payload: payload})
}

func (s *fakeSender) last() (sentFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentFrame{}, false
	}
	return s.sent[len(s.sent)-1], true
}

type fakeUserHub struct{ dispatched chan struct{} }

func (f *fakeUserHub) Dispatch(t string, from transport.ClientID, payload any) {
	if f.dispatched != nil {
		f.dispatched <- struct{}{}
	}
}

type spawnRecord struct {
	userID string
}

type fakeFactory struct {
	mu      sync.Mutex
	spawns  []spawnRecord
	handles []actorkit.Handle
}

func (f *fakeFactory) Spawn(ctx context.Context, userID string, userMetadata map[string]any, actor security.Actor) (transport.Hub, actorkit.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, spawnRecord{userID: userID})
	handle := actorkit.Spawn(ctx, "user."+userID, func(ctx context.Context, self actorkit.Ref) error {
		<-ctx.Done()
		return nil
	})
	f.handles = append(f.handles, handle)
	return &fakeUserHub{}, handle, nil
}

func (f *fakeFactory) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

func newTestHub(t *testing.T, sender *fakeSender, factory central.UserHubFactory) *central.Hub {
	t.Helper()
	reg := pluginreg.NewRegistry()
	cfg := relayconfig.DefaultCentralConfig()
	cfg.MaxConnectionsPerUser = 2
	cfg.Host = "relay-1"
	cfg.UserSecurityScope = "default"

	hub := central.New(central.Config{
		CentralConfig: cfg,
		Plugins:       reg,
		Security:      security.Static{},
		Factory:       factory,
		Sender:        sender,
		Metrics:       metrics.NewCentral(),
	})

	ctx := context.Background()
	if err := hub.Start(ctx, actorkit.NewRef("central")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return hub
}

func TestHub_Join_AdmitsAndRebinds(t *testing.T) {
	sender := &fakeSender{}
	factory := &fakeFactory{}
	hub := newTestHub(t, sender, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Dispatch(topic.Join, "c1", central.JoinPayload("c1", "u1", nil))

	deadline := time.After(time.Second)
	for {
		if f, ok := sender.last(); ok && f.topic == topic.Control {
			frame := f.payload.(topic.ControlFrame)
			if frame.TargetPID == "" {
				t.Error("ControlFrame.TargetPID is empty")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ws.control")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_Join_MissingUserID(t *testing.T) {
	sender := &fakeSender{}
	factory := &fakeFactory{}
	hub := newTestHub(t, sender, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Dispatch(topic.Join, "c1", central.JoinPayload("c1", "", nil))

	deadline := time.After(time.Second)
	for {
		if f, ok := sender.last(); ok && f.topic == topic.Error {
			frame := f.payload.(topic.ErrorFrame)
			if frame.Error != topic.ErrMissingUserID {
				t.Errorf("ErrorFrame.Error = %v, want %v", frame.Error, topic.ErrMissingUserID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for missing_user_id error")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_Resolve_FindsCentralAndUserHub(t *testing.T) {
	sender := &fakeSender{}
	factory := &fakeFactory{}
	hub := newTestHub(t, sender, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if _, ok := hub.Resolve("wippy.central"); !ok {
		t.Error("Resolve(\"wippy.central\") = false, want true")
	}

	hub.Dispatch(topic.Join, "c1", central.JoinPayload("c1", "u1", nil))

	var targetPID string
	deadline := time.After(time.Second)
	for targetPID == "" {
		if f, ok := sender.last(); ok && f.topic == topic.Control {
			targetPID = f.payload.(topic.ControlFrame).TargetPID
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ws.control")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := hub.Resolve(targetPID); !ok {
		t.Errorf("Resolve(%q) = false, want true", targetPID)
	}
	if _, ok := hub.Resolve("no.such.pid"); ok {
		t.Error("Resolve(\"no.such.pid\") = true, want false")
	}
}

func TestHub_GetOrCreateUserHub_IsIdempotent(t *testing.T) {
	sender := &fakeSender{}
	factory := &fakeFactory{}
	hub := newTestHub(t, sender, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Dispatch(topic.Join, "c1", central.JoinPayload("c1", "u1", nil))
	hub.Dispatch(topic.Join, "c2", central.JoinPayload("c2", "u1", nil))

	deadline := time.After(time.Second)
	for {
		if factory.spawnCount() >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the first spawn")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if got := factory.spawnCount(); got != 1 {
		t.Errorf("spawnCount() = %d, want 1 (get_or_create must be idempotent)", got)
	}
}

// Command relayd boots a Central Hub, wires it to a WebSocket
// transport and an admin HTTP surface, and runs until interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/wippy-systems/relay/actorkit"
	"github.com/wippy-systems/relay/admin"
	"github.com/wippy-systems/relay/central"
	"github.com/wippy-systems/relay/metrics"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/plugins/demo"
	"github.com/wippy-systems/relay/pluginreg"
	"github.com/wippy-systems/relay/relayconfig"
	"github.com/wippy-systems/relay/security"
	"github.com/wippy-systems/relay/transport"
	"github.com/wippy-systems/relay/userhub"
	"github.com/wippy-systems/relay/wsgateway"
)

func main() {
	var (
		wsAddr    = flag.String("ws-addr", ":8080", "address for the WebSocket transport")
		adminAddr = flag.String("admin-addr", ":8081", "address for the admin HTTP surface")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	obs := observability.NewSlogObserver(logger)

	cfg, err := relayconfig.LoadFromEnv()
	if err != nil {
		log.Fatalf("relayd: loading config: %v", err)
	}

	plugins, err := discoverPlugins(cfg)
	if err != nil {
		log.Fatalf("relayd: discovering plugins: %v", err)
	}

	registry := pluginreg.NewRegistry()
	if err := registry.Load(plugins); err != nil {
		log.Fatalf("relayd: loading plugin registry: %v", err)
	}

	sr := &senderRef{}
	factory := &userHubFactory{
		obs:           obs,
		sender:        sr,
		plugins:       registry,
		pluginFactory: demo.Factory{Observer: obs},
		centralConfig: cfg,
	}

	hub := central.New(central.Config{
		CentralConfig: cfg,
		Plugins:       registry,
		Security:      security.Static{},
		Factory:       factory,
		Sender:        sr,
		Observer:      obs,
		Metrics:       metrics.NewCentral(),
	})
	factory.centralNotify = hub

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := hub.Start(ctx, actorkit.NewRef("central")); err != nil {
		log.Fatalf("relayd: starting central hub: %v", err)
	}
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("central hub exited with error", "error", err)
		}
	}()

	gw := wsgateway.NewGateway(hub, hub, obs)
	sr.s = gw

	adminServer := admin.New(hub)

	wsServer := &http.Server{Addr: *wsAddr, Handler: gw.Router()}
	adminHTTPServer := &http.Server{Addr: *adminAddr, Handler: adminServer.Router()}

	go func() {
		logger.Info("websocket transport listening", "addr", *wsAddr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server failed", "error", err)
		}
	}()
	go func() {
		logger.Info("admin surface listening", "addr", *adminAddr)
		if err := adminHTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), central.CancelTimeout)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = adminHTTPServer.Shutdown(shutdownCtx)
}

// senderRef indirects transport.Sender so central.Hub and the
// wsgateway.Gateway that implements it can be constructed in either
// order despite each needing a reference to the other.
type senderRef struct {
	s transport.Sender
}

func (r *senderRef) Send(client transport.ClientID, t string, payload any) {
	if r.s == nil {
		return
	}
	r.s.Send(client, t, payload)
}

// userHubFactory bridges central and userhub, which never import each
// other directly (see central.UserHubFactory's doc comment).
type userHubFactory struct {
	obs           observability.Observer
	sender        transport.Sender
	plugins       *pluginreg.Registry
	pluginFactory userhub.PluginFactory
	centralNotify userhub.CentralNotifier
	centralConfig relayconfig.CentralConfig
}

func (f *userHubFactory) Spawn(ctx context.Context, userID string, userMetadata map[string]any, actor security.Actor) (transport.Hub, actorkit.Handle, error) {
	hub := userhub.New(userhub.Config{
		UserID:       userID,
		UserMetadata: userMetadata,
		Actor:        actor,
		HubConfig:    relayconfig.NewUserHubConfig(userID, f.centralConfig),
		Plugins:      f.plugins,
		Factory:      f.pluginFactory,
		Central:      f.centralNotify,
		Sender:       f.sender,
		Observer:     f.obs,
		Metrics:      metrics.NewUserHub(),
	})
	handle := actorkit.Spawn(ctx, "user-hub:"+userID, hub.Run)
	return hub, handle, nil
}

// discoverPlugins reads a plugin descriptor table from RELAY_PLUGINS,
// a JSON array of {"prefix":"...","auto_start":true}. This stands in
// for a real external plugin registry lookup; with no environment
// variable set, it falls back to a single auto-started session_
// plugin, matching the session-plugin convention the User Hub already
// expects.
func discoverPlugins(cfg relayconfig.CentralConfig) ([]pluginreg.Descriptor, error) {
	raw := os.Getenv("RELAY_PLUGINS")
	if raw == "" {
		return []pluginreg.Descriptor{
			{Prefix: "session_", ProcessID: "demo.session", Host: cfg.Host, AutoStart: true},
		}, nil
	}

	var entries []struct {
		Prefix    string `json:"prefix"`
		ProcessID string `json:"process_id"`
		Host      string `json:"host"`
		AutoStart bool   `json:"auto_start"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parsing RELAY_PLUGINS: %w", err)
	}

	descriptors := make([]pluginreg.Descriptor, 0, len(entries))
	for _, e := range entries {
		if e.Prefix == "" {
			continue
		}
		host := e.Host
		if host == "" {
			host = cfg.Host
		}
		descriptors = append(descriptors, pluginreg.Descriptor{
			Prefix:    e.Prefix,
			ProcessID: e.ProcessID,
			Host:      host,
			AutoStart: e.AutoStart,
		})
	}
	return descriptors, nil
}

package userhub

import (
	"context"
	"time"

	"github.com/wippy-systems/relay/messaging"
	"github.com/wippy-systems/relay/observability"
	"github.com/wippy-systems/relay/plugin"
	"github.com/wippy-systems/relay/pluginreg"
	"github.com/wippy-systems/relay/topic"
)

// autoStart eagerly spawns every plugin descriptor marked auto_start.
func (h *Hub) autoStart(ctx context.Context) {
	for _, d := range h.plugins.AutoStart() {
		if _, err := h.ensureRunning(ctx, d); err != nil {
			h.obs.OnEvent(ctx, observability.Event{
				Type:      "userhub.autostart_failed",
				Level:     observability.LevelWarning,
				Timestamp: time.Now(),
				Source:    "userhub." + h.userID,
				Data:      map[string]any{"prefix": d.Prefix, "error": err.Error()},
			})
		}
	}
}

// ensureRunning returns the Running entry for d.Prefix, spawning one
// if none exists or the existing one has already stopped. A Failed
// entry is never revived.
func (h *Hub) ensureRunning(ctx context.Context, d pluginreg.Descriptor) (*plugin.Entry, error) {
	if entry, ok := h.activePlugins[d.Prefix]; ok {
		switch entry.Status {
		case plugin.StatusFailed:
			return nil, plugin.ErrFailed
		case plugin.StatusRunning:
			return entry, nil
		}
	}

	entry := plugin.NewEntry(d.Prefix, h.factory.New(d), plugin.InitArgs{
		UserID:       h.userID,
		UserMetadata: h.userMetadata,
		UserHubRef:   h.selfRef,
		Config:       h.config,
	})
	if err := entry.Spawn(ctx, h.config.MessageQueueSize); err != nil {
		entry.MarkFailed()
		h.activePlugins[d.Prefix] = entry
		return nil, err
	}
	h.activePlugins[d.Prefix] = entry
	h.metrics.RecordPluginSpawn()
	h.watchExit(d.Prefix, entry)
	return entry, nil
}

// watchExit forwards entry's eventual exit onto pluginExitCh so the
// Hub's single select loop, not a stray goroutine, decides what to do
// about it.
func (h *Hub) watchExit(prefix string, entry *plugin.Entry) {
	handle := entry.Handle()
	go func() {
		exit := <-handle.ExitCh
		h.pluginExitCh <- pluginExit{prefix: prefix, exit: exit}
	}()
}

// handlePluginExit applies the crash/restart state machine to a
// terminated plugin.
func (h *Hub) handlePluginExit(ctx context.Context, pe pluginExit) {
	entry, ok := h.activePlugins[pe.prefix]
	if !ok || entry.Handle().Ref != pe.exit.Ref {
		// Stale exit from an entry this Hub has already replaced.
		return
	}

	if !plugin.IsCrash(pe.exit) {
		entry.MarkStopped()
		return
	}

	restarted, err := entry.TryRestart(ctx, h.config.MessageQueueSize)
	if err != nil || !restarted {
		h.metrics.RecordPluginFailure()
		h.obs.OnEvent(ctx, observability.Event{
			Type:      "userhub.plugin_failed",
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "userhub." + h.userID,
			Data:      map[string]any{"prefix": pe.prefix, "restart_count": entry.RestartCount},
		})
		return
	}
	h.metrics.RecordPluginRestart()
	h.watchExit(pe.prefix, entry)
}

func resumeEnvelope(userID string) messaging.Envelope {
	return messaging.New(topic.Resume, messaging.KindHubToPlugin, userID, topic.SessionPluginPrefix, nil)
}

func shutdownEnvelope(userID string) messaging.Envelope {
	return messaging.New(topic.Shutdown, messaging.KindHubToPlugin, userID, topic.SessionPluginPrefix, nil)
}

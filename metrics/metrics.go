// Package metrics defines the atomic counters kept by the Central Hub
// and each User Hub, and their point-in-time snapshots.
package metrics

import "sync/atomic"

// CentralSnapshot is a point-in-time read of Central's counters.
type CentralSnapshot struct {
	TotalHubs   int64
	Admissions  int64
	Rejections  int64
	Evictions   int64
}

// Central counts admission-path and lifecycle events at the Central Hub.
type Central struct {
	totalHubs  atomic.Int64
	admissions atomic.Int64
	rejections atomic.Int64
	evictions  atomic.Int64
}

// NewCentral returns a zeroed Central.
func NewCentral() *Central {
	return &Central{}
}

func (m *Central) RecordHubCreated() { m.totalHubs.Add(1) }
func (m *Central) RecordHubEvicted() {
	m.totalHubs.Add(-1)
	m.evictions.Add(1)
}
func (m *Central) RecordAdmission()  { m.admissions.Add(1) }
func (m *Central) RecordRejection()  { m.rejections.Add(1) }

func (m *Central) Snapshot() CentralSnapshot {
	return CentralSnapshot{
		TotalHubs:  m.totalHubs.Load(),
		Admissions: m.admissions.Load(),
		Rejections: m.rejections.Load(),
		Evictions:  m.evictions.Load(),
	}
}

// UserHubSnapshot is a point-in-time read of a single User Hub's counters.
type UserHubSnapshot struct {
	Clients         int64
	MessagesRouted  int64
	Broadcasts      int64
	PluginSpawns    int64
	PluginRestarts  int64
	PluginFailures  int64
}

// UserHub counts connection, routing, and plugin-supervision events for
// a single User Hub.
type UserHub struct {
	clients        atomic.Int64
	messagesRouted atomic.Int64
	broadcasts     atomic.Int64
	pluginSpawns   atomic.Int64
	pluginRestarts atomic.Int64
	pluginFailures atomic.Int64
}

// NewUserHub returns a zeroed UserHub.
func NewUserHub() *UserHub {
	return &UserHub{}
}

func (m *UserHub) RecordClientJoined()   { m.clients.Add(1) }
func (m *UserHub) RecordClientLeft()     { m.clients.Add(-1) }
func (m *UserHub) RecordMessageRouted()  { m.messagesRouted.Add(1) }
func (m *UserHub) RecordBroadcast()      { m.broadcasts.Add(1) }
func (m *UserHub) RecordPluginSpawn()    { m.pluginSpawns.Add(1) }
func (m *UserHub) RecordPluginRestart()  { m.pluginRestarts.Add(1) }
func (m *UserHub) RecordPluginFailure()  { m.pluginFailures.Add(1) }

func (m *UserHub) Snapshot() UserHubSnapshot {
	return UserHubSnapshot{
		Clients:        m.clients.Load(),
		MessagesRouted: m.messagesRouted.Load(),
		Broadcasts:     m.broadcasts.Load(),
		PluginSpawns:   m.pluginSpawns.Load(),
		PluginRestarts: m.pluginRestarts.Load(),
		PluginFailures: m.pluginFailures.Load(),
	}
}

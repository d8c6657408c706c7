package pluginreg

import "context"

// Discoverer is an external plugin registry lookup, e.g. a key/value
// store or config service. Discover is called once at Central Hub
// start.
type Discoverer interface {
	Discover(ctx context.Context) ([]Descriptor, error)
}

// Static is a Discoverer backed by a fixed, in-memory descriptor list —
// suitable for tests and single-binary deployments where the plugin
// table is known ahead of time rather than fetched from an external
// registry.
type Static struct {
	Descriptors []Descriptor
}

// Discover returns the configured descriptor list.
func (s Static) Discover(ctx context.Context) ([]Descriptor, error) {
	out := make([]Descriptor, len(s.Descriptors))
	copy(out, s.Descriptors)
	return out, nil
}

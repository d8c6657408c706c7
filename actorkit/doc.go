// Package actorkit provides the small actor runtime the relay's hub
// hierarchy is built on: an opaque process handle (Ref), a mailbox each
// process owns exclusively, and Spawn/Cancel primitives that give a
// parent goroutine a link+monitor relationship with its child, used
// between a Central Hub and its User Hubs, and between a User Hub and
// its Plugins.
//
// Every hub or plugin process is realized as one goroutine that owns
// a Mailbox and selects over it, its Exit fan-in, and (for the Central
// Hub) a GC ticker. No in-process mutex protects state that only the
// owning goroutine touches.
package actorkit

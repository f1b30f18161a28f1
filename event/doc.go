// Package event provides the in-process publish/subscribe bus that
// fans debug events out to UI collaborators and other subscribers.
//
// Events carry a hierarchical topic ("debug.breakpoint.hit") and a
// typed payload. Subscribers register a handler against a topic
// pattern, which may include wildcards ("debug.**"). Delivery is
// asynchronous by default: publishers never block on subscribers, and
// a slow subscriber causes drops on its own queue rather than stalling
// a sampler.
//
// The bus itself never persists events; it holds only subscriptions.
package event

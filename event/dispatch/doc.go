// Package dispatch provides event delivery mechanisms for the debug
// event bus.
//
// Two dispatchers are provided:
//
//   - SyncDispatcher executes handlers in the publisher's goroutine.
//     Used sparingly, for subscribers that must observe an event before
//     the publisher continues.
//
//   - AsyncDispatcher executes handlers on a worker pool behind a
//     bounded queue. This is the engine's default: telemetry publishers
//     never block on subscribers, and a full queue drops the event
//     rather than stalling a sampler.
//
// Both dispatchers recover from handler panics, so a misbehaving
// subscriber cannot crash the host process.
package dispatch

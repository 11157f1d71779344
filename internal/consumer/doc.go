// Package consumer implements the wake-driven consumers that run outside the
// connection read loop.
//
// NetworkChange rebuilds the connection published for a channel. PushWake
// catches up on the handoff queue one message per wake, dispatching through
// the published connection's handlers and rendering notifications.
package consumer

// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one WebSocket transport and one wake registration at a time
//   - Moves through Disconnected, Connecting and Connected under one mutex
//   - Keeps exactly one read outstanding; each completion posts the next
//   - Enqueues every parsed message on the handoff queue, then dispatches it
//   - Publishes a Handle under its channel id so wake handlers can find it
//
// Recovery is external: a stopped read chain stays stopped until Reset and a
// new SetupTransport, normally driven by a network-change signal.
package connection

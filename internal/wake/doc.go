// Package wake provides local wake scheduling for the push client.
//
// A Channel hands out at most one Registration per channel id. The
// registration keeps the bound transport alive and turns inbound data into
// PushNotification signals. Network monitors turn interface and resolver
// changes into NetworkChanged signals. A Scheduler delivers signals to
// handlers serially, independent of the connection read loop.
//
// Registry is the process-wide table that wake handlers use to find the live
// connection handle for a channel id.
package wake

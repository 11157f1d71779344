// Package invocation maps server-invoked method names to client handlers.
//
// A Registry holds at most one handler per method name; the first
// registration wins and later ones are ignored so repeated setup calls do not
// multiply handlers. Dispatch never fails: malformed payloads and unknown
// methods are dropped, and a panicking handler is recovered.
package invocation

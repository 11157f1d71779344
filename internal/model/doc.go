// Package model defines the data shapes exchanged between the push server and
// the client.
//
// Conventions:
//   - One Message per websocket text frame, JSON envelope {"kind","payload"}
//   - Payloads are UTF-8 text; their meaning depends on Kind
//   - ClientInvocation payloads decode to an InvocationDescriptor
//   - Text payloads starting with "{" may carry a Notification
package model

// Package router maps message-type keys to handlers and defers every handler
// call onto a dispatch queue.
//
// The router is schema-agnostic: keys are chosen by the concrete stream
// client. Unknown keys and malformed envelopes are reported as
// *ProtocolError values; they never stop the connection.
package router

// Package stream implements the connection lifecycle of a streaming protocol
// client: transport start/stop, the authentication handshake, ordered handler
// dispatch and fault classification.
//
// A concrete client supplies a Protocol. The Client calls HandleOpened when
// the socket opens and HandleMessage for every inbound frame, both on the
// transport's goroutine. Handler work is deferred with Dispatch or a Router
// returned by NewRouter, so handlers run one at a time on the dispatch
// goroutine in arrival order.
//
// Observable events:
//
//	OnSocketOpened  transport opened
//	OnSocketClosed  transport closed
//	OnConnected     handshake outcome (AuthStatus)
//	OnError         connection, protocol and handler faults
//
// Benign transport faults (by default "socket is already connected") never
// reach OnError.
package stream

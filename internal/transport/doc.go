// Package transport implements the raw frame transport used by stream clients.
//
// The Transport interface is deliberately narrow:
//   - Start / Stop open and close the socket (Stop is idempotent)
//   - Send writes one text frame
//   - Opened, Closed, Message, Data and Error notifications are published to
//     subscribers on the transport's read goroutine
//
// WebSocket is the gorilla/websocket implementation with ping/pong keepalive
// and stale-connection detection.
package transport

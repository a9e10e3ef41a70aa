// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Frames received/sent and messages dispatched per type
//   - Faults by class (benign, connection, protocol, handler)
//   - Handshake outcomes and current connection state
//   - Handler execution latency
package metrics

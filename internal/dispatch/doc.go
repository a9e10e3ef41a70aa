// Package dispatch implements the ordered single-consumer execution queue
// that runs message handlers off the transport's read goroutine.
//
// Queue guarantees:
//   - Enqueue never blocks (the backing Buffer grows without bound)
//   - Actions run one at a time, strictly in enqueue order
//   - A failing or panicking action is reported as a *HandlerError and the
//     consumer moves on to the next action
//   - Close discards pending actions
package dispatch

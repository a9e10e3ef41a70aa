package stream

import "github.com/rickgao/alpaca-stream/internal/transport"

// Classifier separates benign transport faults from real ones. The same value
// is consulted by the handshake and by error forwarding so both paths agree.
type Classifier struct {
	isBenign func(error) bool
	emit     func(error)
}

// NewClassifier returns a classifier that forwards non-benign faults to emit.
// A nil isBenign selects transport.IsAlreadyConnected.
func NewClassifier(isBenign func(error) bool, emit func(error)) *Classifier {
	if isBenign == nil {
		isBenign = transport.IsAlreadyConnected
	}
	return &Classifier{isBenign: isBenign, emit: emit}
}

// IsBenign reports whether err should be suppressed.
func (c *Classifier) IsBenign(err error) bool {
	return err != nil && c.isBenign(err)
}

// Forward emits err unless it is nil or benign. It reports whether err was
// emitted.
func (c *Classifier) Forward(err error) bool {
	if err == nil || c.IsBenign(err) {
		return false
	}
	c.emit(err)
	return true
}

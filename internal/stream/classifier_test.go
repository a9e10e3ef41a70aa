package stream

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rickgao/alpaca-stream/internal/transport"
)

func TestClassifier_DefaultSuppressesAlreadyConnected(t *testing.T) {
	var forwarded []error
	c := NewClassifier(nil, func(err error) { forwarded = append(forwarded, err) })

	wrapped := fmt.Errorf("start: %w", transport.ErrAlreadyConnected)
	assert.True(t, c.IsBenign(wrapped))
	assert.False(t, c.Forward(wrapped))

	real := errors.New("connection reset by peer")
	assert.False(t, c.IsBenign(real))
	assert.True(t, c.Forward(real))

	assert.False(t, c.Forward(nil))
	assert.Equal(t, []error{real}, forwarded)
}

func TestClassifier_Custom(t *testing.T) {
	errTimeout := errors.New("read timeout")
	var forwarded int
	c := NewClassifier(func(err error) bool { return errors.Is(err, errTimeout) }, func(error) { forwarded++ })

	assert.True(t, c.IsBenign(errTimeout))
	assert.False(t, c.IsBenign(transport.ErrAlreadyConnected))

	c.Forward(errTimeout)
	c.Forward(transport.ErrAlreadyConnected)
	assert.Equal(t, 1, forwarded)
}

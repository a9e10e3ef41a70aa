package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_EmitInSubscriptionOrder(t *testing.T) {
	var f Feed[int]
	var got []string

	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })

	f.Emit(1)

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, f.Len())
}

func TestFeed_Unsubscribe(t *testing.T) {
	var f Feed[string]
	calls := 0

	unsubscribe := f.Subscribe(func(string) { calls++ })
	f.Emit("x")
	unsubscribe()
	unsubscribe() // second call is a no-op
	f.Emit("y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.Len())
}

func TestFeed_UnsubscribeDuringEmit(t *testing.T) {
	var f Feed[int]
	var second int

	var unsubscribe func()
	unsubscribe = f.Subscribe(func(int) { unsubscribe() })
	f.Subscribe(func(v int) { second += v })

	require.NotPanics(t, func() { f.Emit(5) })
	f.Emit(7)

	assert.Equal(t, 12, second)
	assert.Equal(t, 1, f.Len())
}

func TestFeed_ConcurrentSubscribeEmit(t *testing.T) {
	var f Feed[int]
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsubscribe := f.Subscribe(func(int) {})
			unsubscribe()
		}()
		go func() {
			defer wg.Done()
			f.Emit(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, f.Len())
}

func TestFeed_Clear(t *testing.T) {
	var f Feed[int]
	f.Subscribe(func(int) {})
	f.Subscribe(func(int) {})

	f.Clear()

	assert.Equal(t, 0, f.Len())
}

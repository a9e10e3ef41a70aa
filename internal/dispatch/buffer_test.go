package dispatch

import (
	"sync"
	"testing"
	"time"
)

func TestBuffer_BasicPushPop(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}

	if buf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", buf.Len())
	}
}

func TestBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewBuffer[int](10)

	// 7 items is 70% of 10
	for i := 0; i < 7; i++ {
		buf.Push(i)
	}

	stats := buf.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth after 70%% fill", stats.Capacity)
	}
	if stats.ResizeCount != 1 {
		t.Errorf("ResizeCount = %d, want 1", stats.ResizeCount)
	}
}

func TestBuffer_MultipleGrowsKeepOrder(t *testing.T) {
	buf := NewBuffer[int](4)

	for i := 0; i < 100; i++ {
		if !buf.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.ResizeCount < 3 {
		t.Errorf("ResizeCount = %d, expected at least 3 resizes", stats.ResizeCount)
	}

	for i := 0; i < 100; i++ {
		val, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}
}

func TestBuffer_BlockingPop(t *testing.T) {
	buf := NewBuffer[int](10)

	popped := make(chan int, 1)
	go func() {
		val, ok := buf.Pop()
		if ok {
			popped <- val
		}
	}()

	// Give the consumer time to start waiting
	time.Sleep(10 * time.Millisecond)
	buf.Push(42)

	select {
	case val := <-popped:
		if val != 42 {
			t.Errorf("popped %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Pop")
	}
}

func TestBuffer_CloseKeepsPending(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Push(1)
	buf.Push(2)

	buf.Close()

	if buf.Push(3) {
		t.Error("Push should return false after Close")
	}

	for _, want := range []int{1, 2} {
		val, ok := buf.Pop()
		if !ok || val != want {
			t.Errorf("Pop() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := buf.Pop(); ok {
		t.Error("Pop should return false when empty and closed")
	}
}

func TestBuffer_AbortDropsPending(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Push(1)
	buf.Push(2)
	buf.Push(3)

	if n := buf.Abort(); n != 3 {
		t.Errorf("Abort() = %d, want 3", n)
	}

	if _, ok := buf.Pop(); ok {
		t.Error("Pop should return false after Abort")
	}
	if buf.Push(4) {
		t.Error("Push should return false after Abort")
	}
	if got := buf.Stats().TotalDropped; got != 3 {
		t.Errorf("TotalDropped = %d, want 3", got)
	}
}

func TestBuffer_CloseUnblocksPop(t *testing.T) {
	buf := NewBuffer[int](10)

	done := make(chan bool, 1)
	go func() {
		_, ok := buf.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestBuffer_DiscardThenReuse(t *testing.T) {
	buf := NewBuffer[int](4)
	for i := 0; i < 10; i++ {
		buf.Push(i)
	}

	if n := buf.Discard(); n != 10 {
		t.Errorf("Discard() = %d, want 10", n)
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", buf.Len())
	}

	buf.Push(100)
	val, ok := buf.Pop()
	if !ok || val != 100 {
		t.Errorf("Pop() = %d, %v; want 100, true", val, ok)
	}
}

func TestBuffer_ConcurrentPushPopPreservesPerProducerOrder(t *testing.T) {
	buf := NewBuffer[[2]int](10)
	const producers = 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Push([2]int{p, i})
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	for n := 0; n < producers*perProducer; n++ {
		item, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop returned false after %d items", n)
		}
		p, seq := item[0], item[1]
		if seq != last[p]+1 {
			t.Fatalf("producer %d: got seq %d after %d", p, seq, last[p])
		}
		last[p] = seq
	}

	wg.Wait()
}

func TestBuffer_WrapAround(t *testing.T) {
	buf := NewBuffer[int](16)

	buf.Push(1)
	buf.Push(2)
	buf.Push(3)
	buf.Pop()
	buf.Pop()

	for i := 4; i <= 20; i++ {
		buf.Push(i)
	}

	for want := 3; want <= 20; want++ {
		got, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop failed, expected %d", want)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestNewBuffer_MinCapacity(t *testing.T) {
	for _, initial := range []int{0, -5} {
		buf := NewBuffer[int](initial)
		if got := buf.Stats().Capacity; got != 1 {
			t.Errorf("Capacity = %d, want 1 for initial capacity %d", got, initial)
		}
	}
}

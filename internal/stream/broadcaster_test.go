package stream

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	return 0
}

func expectClosed(t *testing.T, ch <-chan int) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got value %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPublish_DeliversInOrder(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	for want := 1; want <= 3; want++ {
		if got := recvOne(t, ch); got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}

func TestSubscribe_ReplaysLastValue(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	b.Publish(7)
	b.Publish(8)

	ch, cancel := b.Subscribe()
	defer cancel()

	if got := recvOne(t, ch); got != 8 {
		t.Fatalf("replay got %d, want 8", got)
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(42)

	if got := recvOne(t, ch1); got != 42 {
		t.Fatalf("sub1 got %d", got)
	}
	if got := recvOne(t, ch2); got != 42 {
		t.Fatalf("sub2 got %d", got)
	}
}

func TestPublish_NeverBlocksOnSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Nobody reads ch while we publish far more than any channel buffer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	if got := recvOne(t, ch); got != 0 {
		t.Fatalf("first buffered value = %d, want 0", got)
	}
}

func TestCancel_StopsDelivery(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe()
	b.Publish(1)
	if got := recvOne(t, ch); got != 1 {
		t.Fatalf("got %d", got)
	}
	cancel()
	b.Publish(2) // must not reach the cancelled subscriber
	expectClosed(t, ch)
}

func TestClose_DrainsThenCloses(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(5)
	b.Close()

	if got := recvOne(t, ch); got != 5 {
		t.Fatalf("buffered value lost on close, got %d", got)
	}
	expectClosed(t, ch)
	// Publishing after close is a no-op.
	b.Publish(6)
}

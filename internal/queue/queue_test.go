package queue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)
	for want := 1; want <= 3; want++ {
		if got := q.Pop(); got != want {
			t.Fatalf("Pop = %d, want %d", got, want)
		}
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[string]()
	done := make(chan string, 1)
	go func() {
		done <- q.Pop()
	}()

	select {
	case v := <-done:
		t.Fatalf("Pop returned %q before a push", v)
	case <-time.After(50 * time.Millisecond):
	}

	q.Push("item")
	select {
	case v := <-done:
		if v != "item" {
			t.Fatalf("Pop = %q, want item", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Pop did not return after push")
	}
}

func TestStopWakesAllBlockedConsumers(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Pop()
		}()
	}

	// Both consumers are parked on the empty queue.
	time.Sleep(50 * time.Millisecond)
	q.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("consumers still blocked after Stop")
	}

	for i := 0; i < 2; i++ {
		if got := <-results; got != 0 {
			t.Fatalf("stopped Pop = %d, want zero value", got)
		}
	}
}

func TestStoppedQueueDrainsRemainingItems(t *testing.T) {
	q := New[int]()
	q.Push(7)
	q.Stop()

	if got := q.Pop(); got != 7 {
		t.Fatalf("Pop after Stop = %d, want 7", got)
	}
	if got := q.Pop(); got != 0 {
		t.Fatalf("Pop on drained stopped queue = %d, want zero value", got)
	}
}

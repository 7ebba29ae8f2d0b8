package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestForwardDeliversInOrder(t *testing.T) {
	bus := New[int]()
	var mu sync.Mutex
	var got []int
	ctx, cancel := context.WithCancel(context.Background())
	done := Forward(ctx, bus, 8, func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	for i := 1; i <= 3; i++ {
		bus.Publish(i)
	}
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 events got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
	if got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestForwardStopsOnClose(t *testing.T) {
	bus := New[string]()
	done := Forward(context.Background(), bus, 1, func(string) {})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop after Close")
	}
}

package stream

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	if b == nil {
		t.Fatal("NewBroadcaster returned nil")
	}
	if b.ListenerCount() != 0 {
		t.Errorf("initial ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())

	l1 := b.Subscribe()
	if b.ListenerCount() != 1 {
		t.Errorf("after 1 subscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}
	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("after 2 subscribes: ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("after 1 unsubscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}
	select {
	case <-l1.Done():
	default:
		t.Error("unsubscribed listener's Done not closed")
	}

	// Double unsubscribe must not panic.
	b.Unsubscribe(l1)
	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("after all unsubscribed: ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestWriteDelivers(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	frame := []int16{100, 200, 300, 400}
	b.Write(frame)

	select {
	case got := <-l.C:
		if len(got) != len(frame) {
			t.Fatalf("frame length = %d, want %d", len(got), len(frame))
		}
		for i, v := range got {
			if v != frame[i] {
				t.Errorf("frame[%d] = %d, want %d", i, v, frame[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestWriteMultipleListeners(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	listeners := make([]*Listener, 5)
	for i := range listeners {
		listeners[i] = b.Subscribe()
	}

	b.Write([]int16{42, -42})

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if got[0] != 42 {
				t.Errorf("listener %d got frame[0]=%d, want 42", i, got[0])
			}
		case <-time.After(time.Second):
			t.Errorf("listener %d timed out", i)
		}
		b.Unsubscribe(l)
	}
}

func TestSlowListenerDropsFrames(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	// Flood well past the buffer; Write must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.Write([]int16{int16(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked on a slow listener")
	}
	if got := len(l.C); got > cap(l.C) {
		t.Errorf("buffered %d frames, cap %d", got, cap(l.C))
	}
}

func TestCloseDropsAllListeners(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	l := b.Subscribe()
	b.Subscribe()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount after Close = %d, want 0", b.ListenerCount())
	}
	select {
	case <-l.Done():
	default:
		t.Error("listener Done not closed by Close")
	}
}

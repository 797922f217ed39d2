// Package stream delivers the engine's PCM frames to browsers, over chunked
// WAV HTTP or WebRTC/Opus.
package stream

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans PCM frames out from the single voice to N listeners. It
// is the engine's output: frames are pushed with Write.
type Broadcaster struct {
	log zerolog.Logger

	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:       log,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, 150), // ~3 seconds of buffer at 20ms/frame
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, present := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if present {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Write fans a frame out to every listener. Slow listeners get frames
// dropped rather than blocking the voice. Implements the engine output.
func (b *Broadcaster) Write(frame []int16) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- frame:
		default:
			// listener too slow, drop frame to keep playback moving
		}
	}
	b.mu.RUnlock()
}

// Close drops all listeners.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	for l := range b.listeners {
		delete(b.listeners, l)
		close(l.done)
	}
	b.mu.Unlock()
	return nil
}

package stream

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ListenerBuffer is the per-listener frame backlog, about 3 seconds at 20ms
// per frame.
const ListenerBuffer = 150

// Broadcaster fans out one device mix to N listeners.
type Broadcaster struct {
	name string

	mu        sync.RWMutex
	listeners map[string]*Listener
	dropped   uint64 // from listeners already gone, guarded by mu

	frames atomic.Uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	ID   string
	Kind string       // "http" or "webrtc"
	C    chan []int16 // buffered channel of 20ms PCM frames

	done    chan struct{}
	dropped atomic.Uint64
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Stats summarizes a broadcaster for the status endpoint.
type Stats struct {
	Name      string `json:"name"`
	Listeners int    `json:"listeners"`
	Frames    uint64 `json:"frames"`
	Dropped   uint64 `json:"dropped"`
}

// NewBroadcaster creates a broadcaster for the named device.
func NewBroadcaster(name string) *Broadcaster {
	return &Broadcaster{
		name:      name,
		listeners: make(map[string]*Listener),
	}
}

func (b *Broadcaster) Name() string { return b.name }

// Subscribe registers a new listener with a fresh id.
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		ID:   uuid.NewString(),
		Kind: kind,
		C:    make(chan []int16, ListenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l.ID] = l
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Removing a
// listener twice is a no-op.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l.ID]; !ok {
		return
	}
	delete(b.listeners, l.ID)
	b.dropped += l.dropped.Load()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Stats{
		Name:      b.name,
		Listeners: len(b.listeners),
		Frames:    b.frames.Load(),
		Dropped:   b.dropped,
	}
	for _, l := range b.listeners {
		s.Dropped += l.dropped.Load()
	}
	return s
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	log.Printf("Broadcasting %s", b.name)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for _, l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					// listener too slow, drop frame to keep broadcast moving
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster("monitor")
	if b.ListenerCount() != 0 {
		t.Errorf("Initial ListenerCount = %d, want 0", b.ListenerCount())
	}

	l1 := b.Subscribe("http")
	l2 := b.Subscribe("webrtc")
	if b.ListenerCount() != 2 {
		t.Errorf("After 2 subscribes: ListenerCount = %d, want 2", b.ListenerCount())
	}
	if l1.ID == "" || l1.ID == l2.ID {
		t.Errorf("listener ids %q and %q, want distinct non-empty ids", l1.ID, l2.ID)
	}

	b.Unsubscribe(l1)
	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("After unsubscribing twice: ListenerCount = %d, want 1", b.ListenerCount())
	}
	select {
	case <-l1.Done():
	default:
		t.Error("Listener done channel not closed after unsubscribe")
	}

	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("After all unsubscribed: ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestBroadcastMultipleListeners(t *testing.T) {
	b := NewBroadcaster("audience")
	listeners := make([]*Listener, 5)
	for i := range listeners {
		listeners[i] = b.Subscribe("http")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 10)
	go b.Run(ctx, source)

	source <- []int16{42, -42}

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if got[0] != 42 || got[1] != -42 {
				t.Errorf("Listener %d got %v, want [42 -42]", i, got)
			}
		case <-time.After(time.Second):
			t.Errorf("Listener %d timed out", i)
		}
	}
}

func TestBroadcastDropsSlowListener(t *testing.T) {
	b := NewBroadcaster("audience")
	slow := b.Subscribe("http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16)
	go b.Run(ctx, source)

	const sent = ListenerBuffer + 50
	for i := range sent {
		source <- []int16{int16(i)}
	}

	deadline := time.Now().Add(time.Second)
	for b.Stats().Dropped < sent-ListenerBuffer && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s := b.Stats()
	if s.Frames != sent {
		t.Fatalf("Frames = %d, want %d", s.Frames, sent)
	}
	if len(slow.C) != ListenerBuffer {
		t.Errorf("slow listener holds %d frames, want %d", len(slow.C), ListenerBuffer)
	}
	if s.Dropped != sent-ListenerBuffer {
		t.Errorf("Dropped = %d, want %d", s.Dropped, sent-ListenerBuffer)
	}

	// Drops survive the listener leaving.
	b.Unsubscribe(slow)
	if got := b.Stats().Dropped; got != sent-ListenerBuffer {
		t.Errorf("Dropped after unsubscribe = %d, want %d", got, sent-ListenerBuffer)
	}
}

func TestBroadcastStops(t *testing.T) {
	tests := []struct {
		name string
		stop func(cancel context.CancelFunc, source chan []int16)
	}{
		{"context cancel", func(cancel context.CancelFunc, _ chan []int16) { cancel() }},
		{"source close", func(_ context.CancelFunc, source chan []int16) { close(source) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroadcaster("audience")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source := make(chan []int16, 10)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Run(ctx, source)
			}()
			tt.stop(cancel, source)

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Broadcaster did not stop")
			}
		})
	}
}

func TestWebRTCHandlerRejectsBadRequests(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster("monitor"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offer", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /offer = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST garbage = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/offer", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Methods") != "POST" {
		t.Errorf("OPTIONS /offer = %d %q, want 200 with POST allowed", rec.Code, rec.Header().Get("Access-Control-Allow-Methods"))
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPHandlerMethods(t *testing.T) {
	h := NewHTTPHandler(NewBroadcaster("audience"))
	for _, tt := range []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusMethodNotAllowed},
		{http.MethodPut, http.StatusMethodNotAllowed},
		{http.MethodHead, http.StatusOK},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/stream", nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.method, rec.Code, tt.want)
		}
	}
}

func TestHTTPHandlerHeaders(t *testing.T) {
	b := NewBroadcaster("audience")
	h := NewHTTPHandler(b)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/stream", nil))
	hdr := rec.Header()
	if got := hdr.Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if got := hdr.Get("ICY-Name"); got != "djdeck audience" {
		t.Errorf("ICY-Name = %q, want %q", got, "djdeck audience")
	}
	if got := hdr.Get("Cache-Control"); got != "no-cache, no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d body bytes", rec.Body.Len())
	}
}

func TestHTTPHandlerGoneClient(t *testing.T) {
	b := NewBroadcaster("monitor")
	h := NewHTTPHandler(b)

	// The encoder never starts for a client that already left, and no
	// listener is left behind.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx))

	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d after the client left, want 0", b.ListenerCount())
	}
}

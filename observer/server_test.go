package observer

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:54321", true},
		{"[::1]:54321", true},
		{"192.168.1.10:80", false},
		{"example.com:80", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := isLoopbackRemote(tt.addr); got != tt.want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestPublishReachesClient(t *testing.T) {
	s := NewServer(discardLogger())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handler registers the client before its first read; poll
	// until the registration is visible.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish([]byte(`{"tick":42}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"tick":42}` {
		t.Errorf("got %q", msg)
	}
}

func TestSlowClientDropsFrames(t *testing.T) {
	s := NewServer(discardLogger())
	id, out := s.register()
	defer s.unregister(id)

	// Nobody is draining out, so publishes past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*4; i++ {
			s.Publish([]byte("frame"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
	if len(out) != clientBuffer {
		t.Errorf("buffered %d frames, want %d", len(out), clientBuffer)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	s := NewServer(discardLogger())
	id, _ := s.register()
	s.unregister(id)
	s.unregister(id)
	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}
}

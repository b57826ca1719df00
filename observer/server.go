// Package observer serves the live snapshot feed over websockets. The
// feed is read-only: clients receive one JSON snapshot per tick window
// and cannot inject commands. Connections are restricted to loopback.
package observer

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const clientBuffer = 16

// Server fans simulation snapshots out to connected websocket clients.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]chan []byte
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
		clients: make(map[uint64]chan []byte),
	}
}

// Handler upgrades the connection and streams snapshots until the
// client disconnects.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out := s.register()
		defer s.unregister(id)
		s.log.Info("observer connected", "client", id, "remote", r.RemoteAddr)

		// Writer goroutine: the read loop below owns the connection
		// lifetime, so the writer just drains until unregister closes
		// the channel or a write fails.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Read loop: the feed is one-way, so any inbound payload is
		// discarded. Errors (including close frames) end the session.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		s.unregister(id)
		<-done
		s.log.Info("observer disconnected", "client", id)
	}
}

// Publish sends one snapshot to every connected client. Slow clients
// drop frames rather than stalling the tick loop.
func (s *Server) Publish(snapshot []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range s.clients {
		select {
		case out <- snapshot:
		default:
			s.log.Debug("observer lagging, frame dropped", "client", id)
		}
	}
}

// ClientCount reports the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) register() (uint64, chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	out := make(chan []byte, clientBuffer)
	s.clients[s.nextID] = out
	return s.nextID, out
}

func (s *Server) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(out)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

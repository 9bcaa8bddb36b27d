package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/metasino/internal/auth"
	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
)

const (
	// DefaultRequestTimeout bounds a single host call made for a client.
	DefaultRequestTimeout = 5 * time.Second

	eventBufferSize = 256
)

// Server represents the WebSocket server
type Server struct {
	host        *host.Host
	validator   *Validator
	auth        auth.Validator
	upgrader    websocket.Upgrader
	logger      *log.Logger
	timeout     time.Duration
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	events      <-chan store.Event
	unsubscribe func()
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	httpServer  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithAuthValidator sets how auth messages are checked. The default trusts
// the claimed account.
func WithAuthValidator(v auth.Validator) Option {
	return func(s *Server) { s.auth = v }
}

// NewServer creates a WebSocket server exposing h and starts its event loop.
func NewServer(h *host.Host, logger *log.Logger, opts ...Option) (*Server, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe := h.Subscribe(eventBufferSize)

	s := &Server{
		host:      h,
		validator: validator,
		auth:      auth.TrustValidator{},
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		timeout:     DefaultRequestTimeout,
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		events:      events,
		unsubscribe: unsubscribe,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s, nil
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting connections, closes open ones and stops the event
// loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	s.cancel()
	s.unsubscribe()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// run owns the connection set and forwards host events to watchers
func (s *Server) run() {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		for conn := range s.connections {
			_ = conn.Close()
			delete(s.connections, conn)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "account", conn.Account(), "total", total)

		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.broadcast(ev)

		case <-s.ctx.Done():
			return
		}
	}
}

// broadcast sends ev to every connection watching its table
func (s *Server) broadcast(ev store.Event) {
	msg, err := NewMessage(MessageTypeTableEvent, TableEventData{Event: ev})
	if err != nil {
		s.logger.Error("Failed to create event message", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if !conn.IsWatching(ev.TableID) {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Debug("Failed to send event to client", "error", err, "account", conn.Account())
			continue
		}
		count++
	}

	s.logger.Debug("Broadcast table event", "table", ev.TableID, "type", ev.Type, "seq", ev.Seq, "recipients", count)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.host, s.validator, s.auth, s.timeout, s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// Package dashboard provides a real-time WebSocket server for draft activity.
//
// The dashboard broadcasts draft saves, status transitions, degraded
// persistence, and publish progress to connected WebSocket clients,
// enabling external panels to mirror the review session live.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/matteoveglia/AstraNotes-sub002/internal/draft"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeDraftSaved indicates a draft's content changed
	MessageTypeDraftSaved MessageType = "draft_saved"

	// MessageTypeStatusChanged indicates a draft moved between lifecycle states
	MessageTypeStatusChanged MessageType = "status_changed"

	// MessageTypeCleared indicates a draft was cleared
	MessageTypeCleared MessageType = "cleared"

	// MessageTypeDegraded indicates a draft fell back to content-only persistence
	MessageTypeDegraded MessageType = "degraded"

	// MessageTypePublished indicates a draft was published to the remote service
	MessageTypePublished MessageType = "published"

	// MessageTypePublishProgress indicates sequential publish progress
	MessageTypePublishProgress MessageType = "publish_progress"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DraftEventData carries draft lifecycle information
type DraftEventData struct {
	PlaylistID string `json:"playlist_id"`
	EntityID   string `json:"entity_id"`
	Status     string `json:"status,omitempty"`
}

// PublishProgressData carries sequential publish progress
type PublishProgressData struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Label string `json:"label"`
	Step  string `json:"step"` // publishing, published, failed
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Logging
	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8985). Use 0 for an ephemeral port.
	Port int

	// Logger for server activity (default: log.Default)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8985,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Attach subscribes the server to a draft manager's events so that every
// mutation is mirrored to connected clients. The returned func detaches.
func (s *Server) Attach(m *draft.Manager) func() {
	return m.Subscribe(func(ev draft.Event) {
		data, err := json.Marshal(DraftEventData{
			PlaylistID: ev.PlaylistID,
			EntityID:   ev.EntityID,
			Status:     ev.Status.String(),
		})
		if err != nil {
			s.logger.Printf("Failed to encode draft event: %v", err)
			return
		}
		s.Broadcast(Message{Type: messageTypeFor(ev.Kind), Data: data})
	})
}

func messageTypeFor(kind draft.EventKind) MessageType {
	switch kind {
	case draft.EventStatusChanged:
		return MessageTypeStatusChanged
	case draft.EventCleared:
		return MessageTypeCleared
	case draft.EventDegraded:
		return MessageTypeDegraded
	case draft.EventPublished:
		return MessageTypePublished
	default:
		return MessageTypeDraftSaved
	}
}

// PublishProgress broadcasts one step of a sequential publish. It has the
// signature of publish.ProgressFunc so it can be passed directly.
func (s *Server) PublishProgress(index, total int, label, step string) {
	data, err := json.Marshal(PublishProgressData{
		Index: index,
		Total: total,
		Label: label,
		Step:  step,
	})
	if err != nil {
		s.logger.Printf("Failed to encode publish progress: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypePublishProgress, Data: data})
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local desktop tool, any origin
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed, the read keeps the conn alive
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

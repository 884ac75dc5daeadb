// Package live pushes task and notification updates to connected browsers.
//
// Each authenticated user may hold any number of WebSocket connections;
// a message published for a user is written to all of them. Publishing
// never blocks: when the broadcast buffer is full the message is dropped.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Mschirtzinger/taskflow/internal/auth"
)

// MessageType defines the type of live message
type MessageType string

const (
	// MessageTypeConnected is sent once when a connection is accepted
	MessageTypeConnected MessageType = "connected"

	// MessageTypeTaskUpdate indicates a task's status changed
	MessageTypeTaskUpdate MessageType = "task_update"

	// MessageTypeNotification indicates a new notification for the user
	MessageTypeNotification MessageType = "notification"
)

// Message represents a live broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TaskUpdateData contains task change information
type TaskUpdateData struct {
	TaskID    string `json:"taskId"`
	Title     string `json:"title"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus"`
	ActorID   string `json:"actorId"`
}

// NotificationData announces a stored notification
type NotificationData struct {
	NotificationID string `json:"notificationId"`
	TaskID         string `json:"taskId"`
	Message        string `json:"message"`
}

// NewMessage marshals data into a Message of the given type.
func NewMessage(typ MessageType, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Timestamp: time.Now().UTC(), Data: raw}, nil
}

type delivery struct {
	userID string
	msg    Message
}

// Hub manages WebSocket connections per user and fans messages out to them.
type Hub struct {
	clients   map[string]map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	broadcast chan delivery

	originPatterns []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds hub configuration
type Config struct {
	// BufferSize of the broadcast channel (default: 100)
	BufferSize int

	// OriginPatterns allowed to connect cross-origin (default: same origin only)
	OriginPatterns []string

	// Logger for hub activity (default: stderr logger)
	Logger *log.Logger
}

// NewHub creates a hub and starts its broadcast loop. Call Stop when done.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = &Config{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:        make(map[string]map[*websocket.Conn]struct{}),
		broadcast:      make(chan delivery, config.BufferSize),
		originPatterns: config.OriginPatterns,
		ctx:            ctx,
		cancel:         cancel,
		logger:         config.Logger,
	}

	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Stop closes every connection and waits for the broadcast loop to exit.
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.Lock()
	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		}
		delete(h.clients, userID)
	}
	h.clientsMu.Unlock()

	h.wg.Wait()
	h.logger.Println("Live hub stopped")
}

// Publish queues msg for every connection of userID.
func (h *Hub) Publish(userID string, msg Message) {
	if userID == "" {
		return
	}
	select {
	case h.broadcast <- delivery{userID: userID, msg: msg}:
	case <-h.ctx.Done():
	default:
		h.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop writes queued messages to the recipients' connections
func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case d := <-h.broadcast:
			if d.msg.Timestamp.IsZero() {
				d.msg.Timestamp = time.Now().UTC()
			}

			data, err := json.Marshal(d.msg)
			if err != nil {
				h.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			h.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients[d.userID]))
			for conn := range h.clients[d.userID] {
				conns = append(conns, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					h.logger.Printf("Failed to send to client of %s: %v", d.userID, err)
					h.removeClient(d.userID, conn)
				}
			}
		}
	}
}

// ServeHTTP upgrades an authenticated request to a WebSocket.
// It must run behind auth.RequireSession.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if sess == nil {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	if h.clients[sess.UserID] == nil {
		h.clients[sess.UserID] = make(map[*websocket.Conn]struct{})
	}
	h.clients[sess.UserID][conn] = struct{}{}
	count := len(h.clients[sess.UserID])
	h.clientsMu.Unlock()

	h.logger.Printf("Client connected for %s (connections: %d)", sess.UserID, count)

	welcome, _ := json.Marshal(Message{Type: MessageTypeConnected, Timestamp: time.Now().UTC()})
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcome)
	cancel()

	go h.readLoop(sess.UserID, conn)
}

// readLoop keeps the connection alive and notices disconnects
func (h *Hub) readLoop(userID string, conn *websocket.Conn) {
	defer h.removeClient(userID, conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (h *Hub) removeClient(userID string, conn *websocket.Conn) {
	h.clientsMu.Lock()
	conns := h.clients[userID]
	if _, exists := conns[conn]; !exists {
		h.clientsMu.Unlock()
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	h.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Printf("Client of %s disconnected", userID)
}

// ClientCount returns the number of open connections for userID
func (h *Hub) ClientCount(userID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[userID])
}

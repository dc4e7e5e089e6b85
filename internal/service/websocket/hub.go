// Package websocket fans core events out to connected viewers.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"

	"github.com/gorilla/websocket"
)

const (
	// BroadcastQueueSize bounds the events waiting to be fanned out. Publish
	// drops events once it is full.
	BroadcastQueueSize = 256

	// clientQueueSize bounds the messages queued for one viewer. A viewer that
	// falls this far behind is disconnected.
	clientQueueSize = 64

	writeWait = 5 * time.Second
)

// client is one viewer connection. Only its writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService keeps the set of viewer connections and writes every published
// event to all of them. It implements model.Publisher.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, BroadcastQueueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until Close is called. It never
// writes to a connection itself.
func (h *HubService) Run() {
	for {
		select {
		case conn := <-h.register:
			c := &client{conn: conn, send: make(chan []byte, clientQueueSize)}
			h.mutex.Lock()
			h.clients[conn] = c
			total := len(h.clients)
			h.mutex.Unlock()
			go h.writePump(c)
			h.logger.Info("Client connected. Total: %d", total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if c, ok := h.clients[conn]; ok {
				h.dropLocked(c)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-h.done:
			h.mutex.Lock()
			for _, c := range h.clients {
				h.dropLocked(c)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// fanOut queues message for every viewer without blocking. Viewers whose
// queue is full are disconnected.
func (h *HubService) fanOut(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, c := range h.clients {
		select {
		case c.send <- message:
		default:
			h.logger.Warning("Client %s too slow, disconnecting", c.conn.RemoteAddr())
			h.dropLocked(c)
		}
	}
}

func (h *HubService) dropLocked(c *client) {
	delete(h.clients, c.conn)
	close(c.send)
	c.conn.Close()
}

// writePump writes queued messages to one viewer until its queue is closed
// or a write fails.
func (h *HubService) writePump(c *client) {
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(c.conn)
			return
		}
	}
}

// Close stops Run and disconnects every viewer.
func (h *HubService) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *HubService) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish encodes the event as JSON and queues it for every viewer. It never
// blocks; when the queue is full the event is dropped.
func (h *HubService) Publish(e model.Event) {
	message, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Error encoding %s event: %v", e.Type, err)
		return
	}
	h.Broadcast(message)
}

// Broadcast queues a raw message without blocking.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Broadcast queue full, dropping message (%d bytes)", len(message))
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

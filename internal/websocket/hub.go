package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stemforge/api/internal/model"
)

// Client represents a WebSocket subscriber for one task's status feed.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub maintains active WebSocket connections grouped by task ID. Every
// status update the pipeline emits over the webhook channel is also
// broadcast here, so interactive callers can watch a task live.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	TaskID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to task %s", client.TaskID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TaskID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.TaskID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.TaskID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastStatus sends a status update to all subscribers of a task.
func (h *Hub) BroadcastStatus(taskID string, update model.TaskStatusUpdate) {
	h.send(taskID, struct {
		TaskID string                 `json:"task_id"`
		Update model.TaskStatusUpdate `json:"update"`
	}{TaskID: taskID, Update: update})
}

// BroadcastResult sends the terminal result payload to all subscribers.
func (h *Hub) BroadcastResult(taskID string, result *model.TaskResultBody) {
	h.send(taskID, struct {
		TaskID string                `json:"task_id"`
		Result *model.TaskResultBody `json:"result"`
	}{TaskID: taskID, Result: result})
}

func (h *Hub) send(taskID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}
	h.broadcast <- &broadcastMessage{TaskID: taskID, Message: data}
}

// HandleConnection handles a WebSocket connection subscribed to one task.
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := &Client{
		TaskID: taskID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop, only to detect close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

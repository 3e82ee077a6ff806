// Package progress pushes per-request download progress events over
// WebSocket so a caller can observe video/image counts without polling. Adapted from the teacher's chat websocket hub idiom (register,
// broadcast, unregister on disconnect) but scoped per request id instead of
// per chat room.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "progress"

// Event is one progress update pushed to subscribers of a request id.
type Event struct {
	RequestID string `json:"request_id"`
	Stage     string `json:"stage"` // "parsing", "downloading", "done", "error"
	Detail    string `json:"detail,omitempty"`
	VideoDone int    `json:"video_done"`
	ImageDone int    `json:"image_done"`
	Total     int    `json:"total"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out progress events to every subscriber of a request id.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]*websocket.Conn
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string][]*websocket.Conn)}
}

// ServeWS upgrades the connection and subscribes it to requestID's events
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, requestID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf(component, "websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.subscribers[requestID] = append(h.subscribers[requestID], conn)
	h.mu.Unlock()

	defer h.unsubscribe(requestID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) unsubscribe(requestID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.subscribers[requestID]
	for i, c := range conns {
		if c == conn {
			h.subscribers[requestID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.subscribers[requestID]) == 0 {
		delete(h.subscribers, requestID)
	}
	_ = conn.Close()
}

// Publish sends event to every subscriber currently watching its request
// id. A failed write to a dead connection is logged and skipped; the next
// ReadMessage loop iteration will clean it up via unsubscribe.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	conns := append([]*websocket.Conn(nil), h.subscribers[event.RequestID]...)
	h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warnf(component, "failed to marshal progress event: %v", err)
		return
	}
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Warnf(component, "failed to publish progress event to subscriber: %v", err)
		}
	}
}

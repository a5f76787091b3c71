package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow same-origin (no Origin header)
		if origin == "" {
			return true
		}

		// Allowed origins
		allowedOrigins := []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
			"http://[::1]:8080",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: Rejected origin: %s", origin)
		return false
	},
}

// Message types pushed to clients
const (
	MessagePlanProgress = "plan_progress"
	MessageScanComplete = "scan_complete"
	MessageLog          = "log"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressPayload reports action plan generation progress.
type ProgressPayload struct {
	ScanID string `json:"scan_id"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
}

// WSManager fans scan progress out to every connected client.
type WSManager struct {
	Clients map[*websocket.Conn]string // conn -> remote address
	mu      sync.Mutex
}

func NewWSManager() *WSManager {
	return &WSManager{
		Clients: make(map[*websocket.Conn]string),
	}
}

// Start closes every client connection when ctx ends.
func (m *WSManager) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for conn := range m.Clients {
			conn.Close()
			delete(m.Clients, conn)
		}
	}()
}

func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	m.mu.Lock()
	m.Clients[conn] = r.RemoteAddr
	m.mu.Unlock()

	log.Printf("WebSocket connected: remote=%s", r.RemoteAddr)

	// Clean up on disconnect
	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.Clients, conn)
			m.mu.Unlock()
			log.Printf("WebSocket disconnected: remote=%s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Clients)
}

// BroadcastProgress sends a plan_progress event for scanID.
func (m *WSManager) BroadcastProgress(scanID string, done, total int) {
	m.broadcastMessage(WSMessage{
		Type:    MessagePlanProgress,
		Payload: ProgressPayload{ScanID: scanID, Done: done, Total: total},
	})
}

// BroadcastScanComplete announces a finished scan with its summary.
func (m *WSManager) BroadcastScanComplete(scanID string, summary interface{}) {
	m.broadcastMessage(WSMessage{
		Type: MessageScanComplete,
		Payload: map[string]interface{}{
			"scan_id": scanID,
			"summary": summary,
		},
	})
}

// BroadcastLog sends a log message to all connected clients
func (m *WSManager) BroadcastLog(message string, level string) {
	payload := map[string]string{
		"message": message,
		"level":   level,
	}

	m.broadcastMessage(WSMessage{
		Type:    MessageLog,
		Payload: payload,
	})
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Println("JSON marshal error:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.Clients, conn)
		}
	}
}

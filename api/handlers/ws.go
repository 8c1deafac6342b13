package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/models"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// DeliveryHub streams campaign completion events to connected clients,
// typically the admin dashboard watching a send land.
type DeliveryHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

// NewDeliveryHub returns an empty hub
func NewDeliveryHub() *DeliveryHub {
	return &DeliveryHub{
		clients: make(map[string]*websocket.Conn),
	}
}

// HandleDeliveryWebSocket upgrades the connection and registers the client
func (h *DeliveryHub) HandleDeliveryWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorf("WebSocket upgrade error: %v", err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		conn.Close()
		return
	}

	h.mutex.Lock()
	h.clients[clientID] = conn
	h.mutex.Unlock()
	zap.S().Debugf("Client %s connected to /ws/deliveries", clientID)

	conn.SetCloseHandler(func(code int, text string) error {
		h.mutex.Lock()
		delete(h.clients, clientID)
		h.mutex.Unlock()
		zap.S().Debugf("Client %s disconnected from /ws/deliveries", clientID)
		return nil
	})

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// PublishCampaignCompleted broadcasts a dispatch summary to every connected
// client. Dead connections are dropped as they fail.
func (h *DeliveryHub) PublishCampaignCompleted(summary models.DispatchSummary) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for clientID, conn := range h.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": "campaign_completed",
			"data":  summary,
		})
		if err != nil {
			zap.S().Errorf("Error sending delivery event to client %s: %v", clientID, err)
			delete(h.clients, clientID)
			conn.Close()
		}
	}
}

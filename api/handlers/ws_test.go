package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/tunelink/tunelink-push-api/models"
)

func (h *DeliveryHub) clientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func TestDeliveryHubBroadcastsCompletionEvents(t *testing.T) {
	hub := NewDeliveryHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleDeliveryWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?clientId=dashboard-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.clientCount() == 1 }, time.Second, 10*time.Millisecond)

	summary := models.DispatchSummary{
		CampaignID:   "abc123",
		Status:       models.CampaignStatusPartial,
		TotalTargets: 3,
		SentCount:    2,
		FailedCount:  1,
	}
	hub.PublishCampaignCompleted(summary)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event struct {
		Event string                 `json:"event"`
		Data  models.DispatchSummary `json:"data"`
	}
	assert.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "campaign_completed", event.Event)
	assert.Equal(t, "abc123", event.Data.CampaignID)
	assert.Equal(t, models.CampaignStatusPartial, event.Data.Status)
}

func TestDeliveryHubRejectsMissingClientID(t *testing.T) {
	hub := NewDeliveryHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleDeliveryWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	// the server closes the connection immediately; no client is registered
	assert.Never(t, func() bool { return hub.clientCount() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestDeliveryHubNoClients(t *testing.T) {
	hub := NewDeliveryHub()

	// publishing with nobody connected must not panic or block
	hub.PublishCampaignCompleted(models.DispatchSummary{CampaignID: "abc"})
}

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// expoDeviceNotRegistered is the one receipt error that proves a token is
// permanently dead. Everything else Expo reports is treated as retryable.
const expoDeviceNotRegistered = "DeviceNotRegistered"

// ExpoMessage represents a single push notification message for the Expo push API
type ExpoMessage struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title,omitempty"`
	Body      string                 `json:"body,omitempty"`
	Sound     string                 `json:"sound,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  string                 `json:"priority,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// ExpoGateway sends one message per call to the Expo push API. Sends are not
// batched on purpose: Expo's batch endpoint reports malformed entries by
// rejecting the whole batch, which loses the per-token attribution the
// invalidation decision depends on.
type ExpoGateway struct {
	URL    string
	Client *http.Client
}

// NewExpoGateway returns an ExpoGateway against the production Expo endpoint
func NewExpoGateway() *ExpoGateway {
	return &ExpoGateway{
		URL:    expoPushURL,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send pushes one payload to one token and maps the Expo ticket onto the
// engine's outcome taxonomy.
func (g *ExpoGateway) Send(ctx context.Context, token string, payload Payload) error {
	data := payload.Data
	if payload.DeepLink != "" || payload.ImageURL != "" {
		data = make(map[string]interface{}, len(payload.Data)+2)
		for k, v := range payload.Data {
			data[k] = v
		}
		if payload.DeepLink != "" {
			data["deepLink"] = payload.DeepLink
		}
		if payload.ImageURL != "" {
			data["imageUrl"] = payload.ImageURL
		}
	}

	msg := ExpoMessage{
		To:        token,
		Title:     payload.Title,
		Body:      payload.Body,
		Sound:     payload.Sound,
		Data:      data,
		Priority:  payload.Priority,
		ChannelID: payload.ChannelID,
	}

	jsonData, err := json.Marshal([]ExpoMessage{msg})
	if err != nil {
		return &TransientError{Code: fmt.Sprintf("marshal: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return &TransientError{Code: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := g.Client.Do(req)
	if err != nil {
		// includes context timeouts; never enough evidence to kill a token
		return &TransientError{Code: fmt.Sprintf("request: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransientError{Code: fmt.Sprintf("expo push API returned status %d", resp.StatusCode)}
	}

	var ticketResp expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticketResp); err != nil {
		return &TransientError{Code: fmt.Sprintf("decode response: %v", err)}
	}
	if len(ticketResp.Data) == 0 {
		return &TransientError{Code: "empty ticket response"}
	}

	ticket := ticketResp.Data[0]
	if ticket.Status == "ok" {
		return nil
	}
	if ticket.Details.Error == expoDeviceNotRegistered {
		return &PermanentError{Code: expoDeviceNotRegistered}
	}
	code := ticket.Details.Error
	if code == "" {
		code = ticket.Message
	}
	return &TransientError{Code: code}
}

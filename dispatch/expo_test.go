package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func expoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestExpoSendOK(t *testing.T) {
	var received []ExpoMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	err := gateway.Send(context.Background(), "ExponentPushToken[abc]", Payload{
		Title:    "New release",
		Body:     "Your favorite artist dropped a track",
		Sound:    "default",
		Priority: "high",
		DeepLink: "tunelink://track/42",
	})

	assert.NoError(t, err)
	assert.Len(t, received, 1)
	assert.Equal(t, "ExponentPushToken[abc]", received[0].To)
	assert.Equal(t, "New release", received[0].Title)
	assert.Equal(t, "tunelink://track/42", received[0].Data["deepLink"])
}

func TestExpoSendDeviceNotRegistered(t *testing.T) {
	server := expoServer(t, http.StatusOK, `{"data":[{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`)
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	err := gateway.Send(context.Background(), "dead-token", Payload{Title: "t", Body: "b"})

	assert.Error(t, err)
	assert.Equal(t, OutcomePermanent, Classify(err))
	var perm *PermanentError
	assert.True(t, errors.As(err, &perm))
	assert.Equal(t, "DeviceNotRegistered", perm.Code)
}

func TestExpoSendOtherTicketError(t *testing.T) {
	server := expoServer(t, http.StatusOK, `{"data":[{"status":"error","message":"too big","details":{"error":"MessageTooBig"}}]}`)
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	err := gateway.Send(context.Background(), "tok", Payload{Title: "t", Body: "b"})

	assert.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(err))
}

func TestExpoSendServerError(t *testing.T) {
	server := expoServer(t, http.StatusBadGateway, `upstream unavailable`)
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	err := gateway.Send(context.Background(), "tok", Payload{Title: "t", Body: "b"})

	assert.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(err))
}

func TestExpoSendConnectionRefused(t *testing.T) {
	server := expoServer(t, http.StatusOK, `{"data":[{"status":"ok"}]}`)
	server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: &http.Client{Timeout: time.Second}}
	err := gateway.Send(context.Background(), "tok", Payload{Title: "t", Body: "b"})

	assert.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(err))
}

func TestExpoSendContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gateway.Send(ctx, "tok", Payload{Title: "t", Body: "b"})

	// a timed-out send is never evidence the token is dead
	assert.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(err))
}

func TestExpoSendMalformedResponse(t *testing.T) {
	server := expoServer(t, http.StatusOK, `{"data":`)
	defer server.Close()

	gateway := &ExpoGateway{URL: server.URL, Client: server.Client()}
	err := gateway.Send(context.Background(), "tok", Payload{Title: "t", Body: "b"})

	assert.Error(t, err)
	assert.Equal(t, OutcomeTransient, Classify(err))
}

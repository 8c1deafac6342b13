package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/config"
	"github.com/tunelink/tunelink-push-api/models"
	"github.com/tunelink/tunelink-push-api/registry"
)

// Device exported for testing purposes
type Device struct {
	Registry *registry.Registry
}

// RegisterDeviceHandler upserts a device registration keyed by push token.
// Safe to call repeatedly with the same body; the latest registration wins.
func (d Device) RegisterDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	reg, err := d.Registry.Register(r.Context(), req)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			config.ErrorStatus("failed to register device", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to register device", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(reg)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// HeartbeatHandler refreshes the last-active timestamp for a token
func (d Device) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if err := d.Registry.Heartbeat(r.Context(), req.Token); err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			config.ErrorStatus("failed to record heartbeat", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to record heartbeat", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// DeactivateDeviceHandler soft-deactivates a registration when the owner
// turns notifications off. The record is retained for audit; deactivating an
// already-inactive token is a no-op success.
func (d Device) DeactivateDeviceHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := d.Registry.Deactivate(r.Context(), token, models.DeactivationReasonUserDisabled); err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			config.ErrorStatus("failed to deactivate device", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to deactivate device", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "deactivated"}`))
}

// DevicesByUserHandler returns every registration owned by a user
func (d Device) DevicesByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	regs, err := d.Registry.DevicesByUser(r.Context(), userID)
	if err != nil {
		config.ErrorStatus("failed to get devices by user", http.StatusNotFound, w, err)
		return
	}
	if len(regs) == 0 {
		regs = []models.DeviceRegistration{}
	}

	b, err := json.Marshal(regs)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateSettingsHandler bulk-applies notification settings to every
// registration the user owns
func (d Device) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var settings map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	updated, err := d.Registry.UpdateSettings(r.Context(), userID, settings)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			config.ErrorStatus("failed to update settings", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to update settings", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]int64{"updatedDevices": updated})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

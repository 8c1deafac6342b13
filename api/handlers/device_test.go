package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tunelink/tunelink-push-api/databases/mocks"
	"github.com/tunelink/tunelink-push-api/models"
	"github.com/tunelink/tunelink-push-api/registry"
)

func TestRegisterDeviceHandlerSuccess(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	stored := &models.DeviceRegistration{Token: "ExponentPushToken[abc]", UserID: "u1", Platform: models.PlatformIOS, Active: true}
	db.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	db.On("FindOne", mock.Anything, mock.Anything).Return(stored, nil)

	d := Device{Registry: registry.New(db)}

	body := []byte(`{"token": "ExponentPushToken[abc]", "userId": "u1", "platform": "ios"}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/device/register", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	http.HandlerFunc(d.RegisterDeviceHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ExponentPushToken[abc]"`)
	assert.Contains(t, rr.Body.String(), `"active":true`)
}

func TestRegisterDeviceHandlerInvalidPlatform(t *testing.T) {
	d := Device{Registry: registry.New(&mocks.DeviceDatabase{})}

	body := []byte(`{"token": "tok", "userId": "u1", "platform": "windows"}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/device/register", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	http.HandlerFunc(d.RegisterDeviceHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to register device")
}

func TestRegisterDeviceHandlerMalformedBody(t *testing.T) {
	d := Device{Registry: registry.New(&mocks.DeviceDatabase{})}

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/device/register", bytes.NewBufferString(`{not json`))
	rr := httptest.NewRecorder()

	http.HandlerFunc(d.RegisterDeviceHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to decode request body")
}

func TestDeactivateDeviceHandler(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1", "active": true}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	d := Device{Registry: registry.New(db)}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/device/{token}", d.DeactivateDeviceHandler).Methods(http.MethodDelete)

	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/device/tok-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "deactivated"}`, rr.Body.String())
}

func TestDeactivateDeviceHandlerAlreadyInactive(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1", "active": true}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0, ModifiedCount: 0}, nil)

	d := Device{Registry: registry.New(db)}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/device/{token}", d.DeactivateDeviceHandler).Methods(http.MethodDelete)

	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/device/tok-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// repeat deactivation is a no-op success
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHeartbeatHandler(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	d := Device{Registry: registry.New(db)}

	req, _ := http.NewRequest(http.MethodPut, "/api/v1/device/heartbeat", bytes.NewBufferString(`{"token": "tok-1"}`))
	rr := httptest.NewRecorder()

	http.HandlerFunc(d.HeartbeatHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rr.Body.String())
}

func TestDevicesByUserHandlerEmpty(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, bson.M{"userId": "u9"}).Return(nil, nil)

	d := Device{Registry: registry.New(db)}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/user/{user_id}/devices", d.DevicesByUserHandler).Methods(http.MethodGet)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/user/u9/devices", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// a user with no devices gets an empty list, not null
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestUpdateSettingsHandler(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateMany", mock.Anything, bson.M{"userId": "u1"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	d := Device{Registry: registry.New(db)}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/user/{user_id}/notification-settings", d.UpdateSettingsHandler).Methods(http.MethodPut)

	body := bytes.NewBufferString(`{"new_release": false, "social": true}`)
	req, _ := http.NewRequest(http.MethodPut, "/api/v1/user/u1/notification-settings", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"updatedDevices": 2}`, rr.Body.String())
}

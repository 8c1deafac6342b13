package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Platform values accepted by the device registry
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// ValidPlatform reports whether p is one of the supported platform tags
func ValidPlatform(p string) bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// DeviceRegistration holds the structure for the devices collection in mongo.
// The push token is the natural key: a device re-registering with the same
// token overwrites the existing record rather than creating a new one.
type DeviceRegistration struct {
	ID                primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Token             string              `json:"token" bson:"token"` // Expo push token (e.g., "ExponentPushToken[xxx]")
	UserID            string              `json:"userId" bson:"userId"`
	Platform          string              `json:"platform" bson:"platform"` // "ios" or "android"
	Metadata          DeviceMetadata      `json:"metadata" bson:"metadata"`
	Settings          map[string]bool     `json:"settings" bson:"settings"` // per notification-type opt-in
	Active            bool                `json:"active" bson:"active"`
	LastActiveAt      primitive.DateTime  `json:"lastActiveAt" bson:"lastActiveAt"`
	DeactivatedAt     *primitive.DateTime `json:"deactivatedAt,omitempty" bson:"deactivatedAt,omitempty"`
	DeactivatedReason string              `json:"deactivatedReason,omitempty" bson:"deactivatedReason,omitempty"`
	CreatedAt         primitive.DateTime  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         primitive.DateTime  `json:"updatedAt" bson:"updatedAt"`
}

// DeviceMetadata is informational only and never drives targeting decisions
type DeviceMetadata struct {
	DeviceModel string `json:"deviceModel,omitempty" bson:"deviceModel,omitempty"`
	OSVersion   string `json:"osVersion,omitempty" bson:"osVersion,omitempty"`
	AppVersion  string `json:"appVersion,omitempty" bson:"appVersion,omitempty"`
}

// RegisterDeviceRequest is the body for the device registration endpoint
type RegisterDeviceRequest struct {
	Token    string          `json:"token"`
	UserID   string          `json:"userId"`
	Platform string          `json:"platform"`
	Metadata DeviceMetadata  `json:"metadata"`
	Settings map[string]bool `json:"settings"`
}

// Deactivation reasons recorded on the registration when it is retired
const (
	DeactivationReasonUnregistered = "gateway_unregistered"
	DeactivationReasonUserDisabled = "user_disabled"
	DeactivationReasonStale        = "stale"
)

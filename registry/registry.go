// Package registry owns the set of known device registrations. All
// invalidation flows through Deactivate; no other component mutates
// registration state directly.
package registry

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/models"
)

// Registry is the device registry component. Every write is a
// single-document mongo update keyed by token, which is what makes concurrent
// register/deactivate on the same token safe.
type Registry struct {
	DB databases.DeviceDatabase
}

// New returns a Registry over the given device database
func New(db databases.DeviceDatabase) *Registry {
	return &Registry{DB: db}
}

// Register upserts a registration keyed by token and resets it to active.
// Last writer wins, including token reassignment to a different user (device
// resold or app reinstalled).
func (r *Registry) Register(ctx context.Context, req models.RegisterDeviceRequest) (*models.DeviceRegistration, error) {
	if req.Token == "" {
		return nil, &models.ValidationError{Field: "token", Reason: "must not be empty"}
	}
	if req.UserID == "" {
		return nil, &models.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if !models.ValidPlatform(req.Platform) {
		return nil, &models.ValidationError{Field: "platform", Reason: "must be one of ios, android"}
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"userId":       req.UserID,
			"platform":     req.Platform,
			"metadata":     req.Metadata,
			"settings":     req.Settings,
			"active":       true,
			"lastActiveAt": now,
			"updatedAt":    now,
		},
		"$unset": bson.M{
			"deactivatedAt":     "",
			"deactivatedReason": "",
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	res, err := r.DB.UpdateOne(ctx, bson.M{"token": req.Token}, update, opts)
	if err != nil {
		return nil, err
	}
	if res.UpsertedCount > 0 {
		zap.S().Infow("registered new device", "userId", req.UserID, "platform", req.Platform)
	}

	return r.DB.FindOne(ctx, bson.M{"token": req.Token})
}

// Deactivate retires a registration, recording when and why. Idempotent: a
// token that is already inactive is left untouched and the call succeeds.
func (r *Registry) Deactivate(ctx context.Context, token, reason string) error {
	if token == "" {
		return &models.ValidationError{Field: "token", Reason: "must not be empty"}
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"active":            false,
			"deactivatedAt":     now,
			"deactivatedReason": reason,
			"updatedAt":         now,
		},
	}
	res, err := r.DB.UpdateOne(ctx, bson.M{"token": token, "active": true}, update)
	if err != nil {
		return err
	}
	if res.ModifiedCount > 0 {
		zap.S().Infow("deactivated device", "reason", reason)
	}
	return nil
}

// DeactivateMany retires every still-active registration in tokens with a
// single registry write. Used by the dispatch engine to flush its
// invalidation set after a fan-out completes.
func (r *Registry) DeactivateMany(ctx context.Context, tokens []string, reason string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"active":            false,
			"deactivatedAt":     now,
			"deactivatedReason": reason,
			"updatedAt":         now,
		},
	}
	res, err := r.DB.UpdateMany(ctx, bson.M{"token": bson.M{"$in": tokens}, "active": true}, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UpdateSettings bulk-applies new notification settings to every registration
// owned by the user.
func (r *Registry) UpdateSettings(ctx context.Context, userID string, settings map[string]bool) (int64, error) {
	if userID == "" {
		return 0, &models.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"settings":  settings,
			"updatedAt": now,
		},
	}
	res, err := r.DB.UpdateMany(ctx, bson.M{"userId": userID}, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Heartbeat refreshes the activity timestamp for a token so the stale-device
// sweep leaves it alone.
func (r *Registry) Heartbeat(ctx context.Context, token string) error {
	if token == "" {
		return &models.ValidationError{Field: "token", Reason: "must not be empty"}
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	_, err := r.DB.UpdateOne(ctx, bson.M{"token": token}, bson.M{"$set": bson.M{"lastActiveAt": now, "updatedAt": now}})
	return err
}

// DevicesByUser returns every registration owned by the user, active or not
func (r *Registry) DevicesByUser(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	return r.DB.Find(ctx, bson.M{"userId": userID})
}

// SweepStale deactivates active registrations whose last activity is older
// than the cutoff. Returns the number of registrations retired.
func (r *Registry) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"active":       true,
		"lastActiveAt": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	}
	update := bson.M{
		"$set": bson.M{
			"active":            false,
			"deactivatedAt":     now,
			"deactivatedReason": models.DeactivationReasonStale,
			"updatedAt":         now,
		},
	}
	res, err := r.DB.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

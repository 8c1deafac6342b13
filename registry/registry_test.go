package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tunelink/tunelink-push-api/databases/mocks"
	"github.com/tunelink/tunelink-push-api/models"
)

func TestRegisterValidation(t *testing.T) {
	reg := New(&mocks.DeviceDatabase{})
	var vErr *models.ValidationError

	_, err := reg.Register(context.Background(), models.RegisterDeviceRequest{UserID: "u1", Platform: models.PlatformIOS})
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "token", vErr.Field)

	_, err = reg.Register(context.Background(), models.RegisterDeviceRequest{Token: "tok", Platform: models.PlatformIOS})
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "userId", vErr.Field)

	_, err = reg.Register(context.Background(), models.RegisterDeviceRequest{Token: "tok", UserID: "u1", Platform: "windows"})
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "platform", vErr.Field)
}

func TestRegisterUpsertsByToken(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	stored := &models.DeviceRegistration{Token: "tok-1", UserID: "u1", Platform: models.PlatformIOS, Active: true}

	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1"}, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		set, ok := u["$set"].(bson.M)
		if !ok || set["active"] != true || set["userId"] != "u1" {
			return false
		}
		// a re-register clears any previous deactivation
		_, hasUnset := u["$unset"]
		return hasUnset
	}), mock.Anything).Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	db.On("FindOne", mock.Anything, bson.M{"token": "tok-1"}).Return(stored, nil)

	got, err := New(db).Register(context.Background(), models.RegisterDeviceRequest{
		Token:    "tok-1",
		UserID:   "u1",
		Platform: models.PlatformIOS,
	})

	assert.NoError(t, err)
	assert.Equal(t, stored, got)
	db.AssertExpectations(t)
}

func TestRegisterReassignsTokenToNewUser(t *testing.T) {
	// same token, different user: last writer wins, no error
	db := &mocks.DeviceDatabase{}
	stored := &models.DeviceRegistration{Token: "tok-1", UserID: "u2", Platform: models.PlatformAndroid, Active: true}

	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1"}, mock.MatchedBy(func(update interface{}) bool {
		set := update.(bson.M)["$set"].(bson.M)
		return set["userId"] == "u2"
	}), mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	db.On("FindOne", mock.Anything, bson.M{"token": "tok-1"}).Return(stored, nil)

	got, err := New(db).Register(context.Background(), models.RegisterDeviceRequest{
		Token:    "tok-1",
		UserID:   "u2",
		Platform: models.PlatformAndroid,
	})

	assert.NoError(t, err)
	assert.Equal(t, "u2", got.UserID)
}

func TestDeactivate(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1", "active": true}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	err := New(db).Deactivate(context.Background(), "tok-1", models.DeactivationReasonUserDisabled)

	assert.NoError(t, err)
	db.AssertExpectations(t)
}

func TestDeactivateIdempotent(t *testing.T) {
	// already-inactive token matches nothing; the call still succeeds
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1", "active": true}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0, ModifiedCount: 0}, nil)

	err := New(db).Deactivate(context.Background(), "tok-1", models.DeactivationReasonUserDisabled)

	assert.NoError(t, err)
}

func TestDeactivateEmptyToken(t *testing.T) {
	var vErr *models.ValidationError
	err := New(&mocks.DeviceDatabase{}).Deactivate(context.Background(), "", "whatever")
	assert.True(t, errors.As(err, &vErr))
}

func TestDeactivateMany(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter interface{}) bool {
		f, ok := filter.(bson.M)
		if !ok || f["active"] != true {
			return false
		}
		in, ok := f["token"].(bson.M)
		if !ok {
			return false
		}
		tokens, ok := in["$in"].([]string)
		return ok && len(tokens) == 2
	}), mock.MatchedBy(func(update interface{}) bool {
		set := update.(bson.M)["$set"].(bson.M)
		return set["deactivatedReason"] == models.DeactivationReasonUnregistered
	})).Return(&mongo.UpdateResult{MatchedCount: 2, ModifiedCount: 2}, nil)

	n, err := New(db).DeactivateMany(context.Background(), []string{"tok-a", "tok-b"}, models.DeactivationReasonUnregistered)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	db.AssertExpectations(t)
}

func TestDeactivateManyEmpty(t *testing.T) {
	db := &mocks.DeviceDatabase{}

	n, err := New(db).DeactivateMany(context.Background(), nil, models.DeactivationReasonUnregistered)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
	db.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSettings(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	settings := map[string]bool{"new_release": false, "social": true}
	db.On("UpdateMany", mock.Anything, bson.M{"userId": "u1"}, mock.MatchedBy(func(update interface{}) bool {
		set := update.(bson.M)["$set"].(bson.M)
		got, ok := set["settings"].(map[string]bool)
		return ok && got["new_release"] == false && got["social"] == true
	})).Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil)

	n, err := New(db).UpdateSettings(context.Background(), "u1", settings)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestUpdateSettingsEmptyUser(t *testing.T) {
	var vErr *models.ValidationError
	_, err := New(&mocks.DeviceDatabase{}).UpdateSettings(context.Background(), "", nil)
	assert.True(t, errors.As(err, &vErr))
}

func TestHeartbeat(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateOne", mock.Anything, bson.M{"token": "tok-1"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	assert.NoError(t, New(db).Heartbeat(context.Background(), "tok-1"))

	var vErr *models.ValidationError
	err := New(db).Heartbeat(context.Background(), "")
	assert.True(t, errors.As(err, &vErr))
}

func TestDevicesByUser(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	expected := []models.DeviceRegistration{{Token: "tok-1", UserID: "u1"}, {Token: "tok-2", UserID: "u1", Active: true}}
	db.On("Find", mock.Anything, bson.M{"userId": "u1"}).Return(expected, nil)

	got, err := New(db).DevicesByUser(context.Background(), "u1")

	assert.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestSweepStale(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	cutoff := time.Now().Add(-180 * 24 * time.Hour)
	db.On("UpdateMany", mock.Anything, mock.MatchedBy(func(filter interface{}) bool {
		f := filter.(bson.M)
		_, hasCutoff := f["lastActiveAt"]
		return f["active"] == true && hasCutoff
	}), mock.MatchedBy(func(update interface{}) bool {
		set := update.(bson.M)["$set"].(bson.M)
		return set["deactivatedReason"] == models.DeactivationReasonStale
	})).Return(&mongo.UpdateResult{MatchedCount: 7, ModifiedCount: 7}, nil)

	n, err := New(db).SweepStale(context.Background(), cutoff)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestSweepStaleDBError(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := New(db).SweepStale(context.Background(), time.Now())

	assert.EqualError(t, err, "connection reset")
}

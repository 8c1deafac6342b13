package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tunelink/tunelink-push-api/databases/mocks"
	"github.com/tunelink/tunelink-push-api/models"
)

func TestResolveEmptyTargetList(t *testing.T) {
	// an explicit empty list means nobody, not everybody
	db := &mocks.DeviceDatabase{}

	regs, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{Broadcast: false})

	assert.NoError(t, err)
	assert.Empty(t, regs)
	db.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestResolveBroadcast(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, bson.M{
		"active":               true,
		"settings.new_release": bson.M{"$ne": false},
	}).Return([]models.DeviceRegistration{
		{Token: "tok-1", UserID: "u1", Active: true},
		{Token: "tok-2", UserID: "u2", Active: true},
	}, nil)

	regs, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{
		Broadcast: true,
		Type:      "new_release",
	})

	assert.NoError(t, err)
	assert.Len(t, regs, 2)
	db.AssertExpectations(t)
}

func TestResolveTargeted(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, mock.MatchedBy(func(filter interface{}) bool {
		f := filter.(bson.M)
		if f["active"] != true {
			return false
		}
		in, ok := f["userId"].(bson.M)
		if !ok {
			return false
		}
		users, ok := in["$in"].([]string)
		return ok && len(users) == 2
	})).Return([]models.DeviceRegistration{{Token: "tok-1", UserID: "u1", Active: true}}, nil)

	regs, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{
		TargetUserIDs: []string{"u1", "u2"},
	})

	assert.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestResolveUntypedCampaignSkipsSettingsFilter(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, bson.M{"active": true}).
		Return([]models.DeviceRegistration{}, nil)

	_, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{Broadcast: true})

	assert.NoError(t, err)
	db.AssertExpectations(t)
}

func TestResolveDeduplicatesTokens(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, mock.Anything).Return([]models.DeviceRegistration{
		{Token: "tok-1", UserID: "u1", Active: true},
		{Token: "tok-2", UserID: "u2", Active: true},
		{Token: "tok-1", UserID: "u3", Active: true},
	}, nil)

	regs, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{Broadcast: true})

	assert.NoError(t, err)
	assert.Len(t, regs, 2)
	// first occurrence wins, order preserved
	assert.Equal(t, "tok-1", regs[0].Token)
	assert.Equal(t, "u1", regs[0].UserID)
	assert.Equal(t, "tok-2", regs[1].Token)
}

func TestResolveDBError(t *testing.T) {
	db := &mocks.DeviceDatabase{}
	db.On("Find", mock.Anything, mock.Anything).Return(nil, errors.New("cursor timeout"))

	_, err := NewResolver(db).Resolve(context.Background(), &models.Campaign{Broadcast: true})

	assert.EqualError(t, err, "cursor timeout")
}

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tunelink/tunelink-push-api/databases/mocks"
	"github.com/tunelink/tunelink-push-api/registry"
)

func TestSweepStaleDevices(t *testing.T) {
	deviceDB := &mocks.DeviceDatabase{}
	deviceDB.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil)

	lockDB := &mocks.SchedulerLockDatabase{}
	lockDB.On("TryAcquireLock", mock.Anything, "stale_device_sweep", mock.Anything, mock.Anything).Return(true, nil)
	lockDB.On("ReleaseLock", mock.Anything, "stale_device_sweep", mock.Anything).Return(nil)

	s := NewScheduler(registry.New(deviceDB), &mocks.CampaignDatabase{}, lockDB)
	s.sweepStaleDevices()

	assert.Equal(t, int64(3), s.lastSweepCount.Load())
	deviceDB.AssertExpectations(t)
	lockDB.AssertExpectations(t)
}

func TestSweepStaleDevicesSkipsWhenLockHeld(t *testing.T) {
	deviceDB := &mocks.DeviceDatabase{}

	lockDB := &mocks.SchedulerLockDatabase{}
	lockDB.On("TryAcquireLock", mock.Anything, "stale_device_sweep", mock.Anything, mock.Anything).Return(false, nil)

	s := NewScheduler(registry.New(deviceDB), &mocks.CampaignDatabase{}, lockDB)
	s.sweepStaleDevices()

	deviceDB.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
	lockDB.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryDigestSkipsWithoutOpsEmail(t *testing.T) {
	t.Setenv("OPS_EMAIL", "")

	campaignDB := &mocks.CampaignDatabase{}

	lockDB := &mocks.SchedulerLockDatabase{}
	lockDB.On("TryAcquireLock", mock.Anything, "delivery_digest", mock.Anything, mock.Anything).Return(true, nil)
	lockDB.On("ReleaseLock", mock.Anything, "delivery_digest", mock.Anything).Return(nil)

	s := NewScheduler(registry.New(&mocks.DeviceDatabase{}), campaignDB, lockDB)
	s.sendDeliveryDigest()

	campaignDB.AssertNotCalled(t, "CountDocuments", mock.Anything, mock.Anything)
}

package databases_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/databases/mocks"
)

func TestTryAcquireLockFree(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	dbHelper.On("Collection", "schedulerlocks").Return(conn)

	lockDB := databases.NewSchedulerLockDatabase(dbHelper)
	acquired, err := lockDB.TryAcquireLock(context.Background(), "stale_device_sweep", "instance-1", 10*time.Minute)

	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestTryAcquireLockHeldElsewhere(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	// the filter misses the existing unexpired lock, so the upsert collides
	// with its _id
	dupErr := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, dupErr)
	dbHelper.On("Collection", "schedulerlocks").Return(conn)

	lockDB := databases.NewSchedulerLockDatabase(dbHelper)
	acquired, err := lockDB.TryAcquireLock(context.Background(), "stale_device_sweep", "instance-2", 10*time.Minute)

	assert.NoError(t, err)
	assert.False(t, acquired)
}

func TestReleaseLock(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("DeleteOne", mock.Anything, bson.M{"_id": "stale_device_sweep", "instanceId": "instance-1"}).
		Return(nil)
	dbHelper.On("Collection", "schedulerlocks").Return(conn)

	lockDB := databases.NewSchedulerLockDatabase(dbHelper)

	assert.NoError(t, lockDB.ReleaseLock(context.Background(), "stale_device_sweep", "instance-1"))
	conn.AssertExpectations(t)
}

package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerLockCollectionName = "schedulerlocks"

// SchedulerLockDatabase provides a best-effort distributed lock so scheduled
// jobs run on a single instance at a time when multiple pods are up.
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

// TryAcquireLock upserts the lock document keyed by job name. The filter only
// matches when the lock is free, expired, or already held by this instance,
// so a losing race surfaces as a duplicate key error, never a double acquire.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id": jobName,
		"$or": []bson.M{
			{"instanceId": instanceID},
			{"expiresAt": bson.M{"$lt": primitive.NewDateTimeFromTime(now)}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"instanceId": instanceID,
			"expiresAt":  primitive.NewDateTimeFromTime(now.Add(ttl)),
			"acquiredAt": primitive.NewDateTimeFromTime(now),
		},
	}
	opts := options.Update().SetUpsert(true)
	res, err := s.db.Collection(schedulerLockCollectionName).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// another instance holds an unexpired lock
			return false, nil
		}
		return false, err
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, jobName, instanceID string) error {
	return s.db.Collection(schedulerLockCollectionName).DeleteOne(ctx, bson.M{"_id": jobName, "instanceId": instanceID})
}

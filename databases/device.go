package databases

// go generate: mockery --name DeviceDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tunelink/tunelink-push-api/models"
)

const deviceCollectionName = "devices"

// DeviceDatabase contains the methods to use with the device registration database.
// All token-keyed writes are single-document updates so that concurrent
// register/deactivate calls on the same token cannot interleave partially.
type DeviceDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.DeviceRegistration, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.DeviceRegistration, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type deviceDatabase struct {
	db DatabaseHelper
}

// NewDeviceDatabase initializes a new instance of device database with the provided db connection
func NewDeviceDatabase(db DatabaseHelper) DeviceDatabase {
	return &deviceDatabase{
		db: db,
	}
}

func (d *deviceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.DeviceRegistration, error) {
	reg := &models.DeviceRegistration{}
	err := d.db.Collection(deviceCollectionName).FindOne(ctx, filter, opts...).Decode(reg)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (d *deviceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.DeviceRegistration, error) {
	var regs []models.DeviceRegistration
	cur, err := d.db.Collection(deviceCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&regs)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (d *deviceDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(deviceCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (d *deviceDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(deviceCollectionName).UpdateMany(ctx, filter, update, opts...)
}

func (d *deviceDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return d.db.Collection(deviceCollectionName).CountDocuments(ctx, filter, opts...)
}

package databases

// go generate: mockery --name CampaignDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tunelink/tunelink-push-api/models"
)

const campaignCollectionName = "campaigns"

// CampaignDatabase contains the methods to use with the campaign database
type CampaignDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Campaign, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Campaign, error)
	FindNewestFirst(ctx context.Context, filter interface{}, limit, page int) ([]models.Campaign, error)
	InsertOne(context.Context, models.Campaign) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type campaignDatabase struct {
	db DatabaseHelper
}

// NewCampaignDatabase initializes a new instance of campaign database with the provided db connection
func NewCampaignDatabase(db DatabaseHelper) CampaignDatabase {
	return &campaignDatabase{
		db: db,
	}
}

func (c *campaignDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	err := c.db.Collection(campaignCollectionName).FindOne(ctx, filter, opts...).Decode(campaign)
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

func (c *campaignDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	cur, err := c.db.Collection(campaignCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&campaigns)
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// FindNewestFirst returns one page of campaigns sorted newest-first, the
// ordering every history and inbox view uses.
func (c *campaignDatabase) FindNewestFirst(ctx context.Context, filter interface{}, limit, page int) ([]models.Campaign, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return c.Find(ctx, filter, opts)
}

func (c *campaignDatabase) InsertOne(ctx context.Context, campaign models.Campaign) (InsertOneResultHelper, error) {
	res, err := c.db.Collection(campaignCollectionName).InsertOne(ctx, campaign)
	return res, err
}

func (c *campaignDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(campaignCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (c *campaignDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(campaignCollectionName).CountDocuments(ctx, filter, opts...)
}

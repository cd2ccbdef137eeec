package schema

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDBIndexer struct {
	ctx      context.Context
	dbName   string
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBIndexer(client *mongo.Client, dbName string) *MongoDBIndexer {
	return &MongoDBIndexer{
		ctx:      context.Background(),
		dbName:   dbName,
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoDBIndexer) createIndex(collection string, index mongo.IndexModel) error {
	c := m.Database.Collection(collection)
	_, err := c.Indexes().CreateOne(m.ctx, index)
	return err
}

// IndexAll creates every index the service relies on
func (m *MongoDBIndexer) IndexAll() error {
	if err := m.IndexLocationCollection(); err != nil {
		return err
	}
	return m.IndexReportCollection()
}

// IndexLocationCollection indexes the coordinates used by exact-match marker lookups
func (m *MongoDBIndexer) IndexLocationCollection() error {
	return m.createIndex(LocationCollection, mongo.IndexModel{
		Keys: bson.D{
			{Key: "lat", Value: 1},
			{Key: "lng", Value: 1},
		},
	})
}

func (m *MongoDBIndexer) IndexReportCollection() error {
	if err := m.createIndex(ReportCollection, mongo.IndexModel{
		Keys: bson.M{
			"createdAt": -1,
		},
	}); err != nil {
		return err
	}

	return m.createIndex(ReportCollection, mongo.IndexModel{
		Keys: bson.M{
			"address": 1,
		},
		Options: options.Index().SetName("address_lookup"),
	})
}

package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stl-inc/as-report-api/schema"
)

// AddLocation inserts a new marker record and returns its id
func (m *mongoDB) AddLocation(ctx context.Context, loc *schema.Location) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	loc.ID = primitive.NewObjectID().Hex()
	if _, err := m.collection(schema.LocationCollection).InsertOne(ctx, loc); err != nil {
		return "", err
	}
	return loc.ID, nil
}

// ListLocations reads the whole locations collection
func (m *mongoDB) ListLocations(ctx context.Context) ([]schema.Location, error) {
	return m.findLocations(ctx, bson.M{})
}

func (m *mongoDB) GetLocation(ctx context.Context, id string) (*schema.Location, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	var loc schema.Location
	if err := m.collection(schema.LocationCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&loc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &loc, nil
}

func (m *mongoDB) DeleteLocation(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := m.collection(schema.LocationCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (m *mongoDB) FindLocationsAt(ctx context.Context, lat, lng float64) ([]schema.Location, error) {
	return m.findLocations(ctx, bson.M{"lat": lat, "lng": lng})
}

func (m *mongoDB) findLocations(ctx context.Context, filter bson.M) ([]schema.Location, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := m.collection(schema.LocationCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	locations := make([]schema.Location, 0)
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

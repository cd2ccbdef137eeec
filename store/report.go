package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stl-inc/as-report-api/schema"
)

// CreateReport inserts a report document. Empty photo buckets are stored as empty lists.
func (m *mongoDB) CreateReport(ctx context.Context, r *schema.Report) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	r.ID = primitive.NewObjectID().Hex()
	r.Photos.Normalize()
	if _, err := m.collection(schema.ReportCollection).InsertOne(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// ListReports returns every report, newest first
func (m *mongoDB) ListReports(ctx context.Context) ([]schema.Report, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := m.collection(schema.ReportCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}

	reports := make([]schema.Report, 0)
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	for i := range reports {
		reports[i].Photos.Normalize()
	}
	return reports, nil
}

func (m *mongoDB) GetReport(ctx context.Context, id string) (*schema.Report, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	var r schema.Report
	if err := m.collection(schema.ReportCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	r.Photos.Normalize()
	return &r, nil
}

// PatchReport applies a $set of the given paths. Fields absent from the map keep
// whatever the stored document holds.
func (m *mongoDB) PatchReport(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return ErrEmptyPatch
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{}
	for path, value := range fields {
		set[path] = value
	}

	result, err := m.collection(schema.ReportCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (m *mongoDB) DeleteReport(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := m.collection(schema.ReportCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrReportNotFound
	}
	return nil
}

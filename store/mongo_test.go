package store

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stl-inc/as-report-api/schema"
)

type MongoStoreTestSuite struct {
	suite.Suite
	connURI      string
	testDBName   string
	mongoClient  *mongo.Client
	testDatabase *mongo.Database
	store        Store
}

func NewMongoStoreTestSuite(connURI, dbName string) *MongoStoreTestSuite {
	return &MongoStoreTestSuite{
		connURI:    connURI,
		testDBName: dbName,
	}
}

func (s *MongoStoreTestSuite) SetupSuite() {
	if s.connURI == "" || s.testDBName == "" {
		s.T().Fatal("invalid test suite configuration")
	}

	opts := options.Client().ApplyURI(s.connURI)
	mongoClient, err := mongo.NewClient(opts)
	if nil != err {
		s.T().Fatalf("create mongo client with error: %s", err)
	}

	if err = mongoClient.Connect(context.Background()); nil != err {
		s.T().Fatalf("connect mongo database with error: %s", err.Error())
	}

	s.mongoClient = mongoClient
	s.testDatabase = mongoClient.Database(s.testDBName)
	s.store = NewMongoStore(mongoClient, s.testDBName)
}

func (s *MongoStoreTestSuite) SetupTest() {
	// make sure every test is run with a clean environment
	if err := s.testDatabase.Drop(context.Background()); err != nil {
		s.T().Fatal(err)
	}
	if err := schema.NewMongoDBIndexer(s.mongoClient, s.testDBName).IndexAll(); err != nil {
		s.T().Fatal(err)
	}
}

func (s *MongoStoreTestSuite) TearDownSuite() {
	_ = s.testDatabase.Drop(context.Background())
	_ = s.mongoClient.Disconnect(context.Background())
}

func (s *MongoStoreTestSuite) addLocation(lat, lng float64, address string) string {
	id, err := s.store.AddLocation(context.Background(), &schema.Location{
		Lat:       lat,
		Lng:       lng,
		Address:   address,
		Type:      schema.LocationTypeAS,
		Timestamp: time.Now().UTC(),
	})
	s.NoError(err)
	s.NotEmpty(id)
	return id
}

func (s *MongoStoreTestSuite) TestAddAndListLocations() {
	ctx := context.Background()
	s.addLocation(37.5665, 126.9780, "서울특별시 중구 세종대로 110")
	s.addLocation(35.1796, 129.0756, "부산광역시 연제구 중앙대로 1001")

	locations, err := s.store.ListLocations(ctx)
	s.NoError(err)
	s.Len(locations, 2)
	for _, l := range locations {
		s.Equal(schema.LocationTypeAS, l.Type)
	}
}

func (s *MongoStoreTestSuite) TestDeleteLocationOnlyRemovesTarget() {
	ctx := context.Background()
	target := s.addLocation(37.5665, 126.9780, "a")
	other := s.addLocation(37.5666, 126.9781, "b")

	s.NoError(s.store.DeleteLocation(ctx, target))
	s.Equal(ErrLocationNotFound, s.store.DeleteLocation(ctx, target))

	_, err := s.store.GetLocation(ctx, target)
	s.Equal(ErrLocationNotFound, err)

	loc, err := s.store.GetLocation(ctx, other)
	s.NoError(err)
	s.Equal("b", loc.Address)
}

func (s *MongoStoreTestSuite) TestFindLocationsAtExactCoordinate() {
	ctx := context.Background()
	s.addLocation(37.5665, 126.9780, "a")
	s.addLocation(37.56651, 126.9780, "b")

	locations, err := s.store.FindLocationsAt(ctx, 37.5665, 126.9780)
	s.NoError(err)
	s.Len(locations, 1)
	s.Equal("a", locations[0].Address)

	locations, err = s.store.FindLocationsAt(ctx, 1, 1)
	s.NoError(err)
	s.Len(locations, 0)
}

func (s *MongoStoreTestSuite) TestCreateReportWithEmptyBuckets() {
	ctx := context.Background()
	r := &schema.Report{
		Address:         "Seoul",
		DetailedAddress: "2F",
		CreatedAt:       time.Now().UTC(),
	}
	id, err := s.store.CreateReport(ctx, r)
	s.NoError(err)

	var raw bson.Raw
	s.NoError(s.testDatabase.Collection(schema.ReportCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw))
	for _, b := range schema.Buckets {
		v := raw.Lookup("photos", b.Key())
		s.Equal(bsontype.Array, v.Type, "bucket %s is not stored as a list", b)
		values, err := v.Array().Values()
		s.NoError(err)
		s.Len(values, 0)
	}

	stored, err := s.store.GetReport(ctx, id)
	s.NoError(err)
	s.Equal([]string{}, stored.Photos.FieldPhotoURLs)
	s.False(stored.CreatedAt.IsZero())
}

func (s *MongoStoreTestSuite) TestPatchReportKeepsOtherFields() {
	ctx := context.Background()
	id, err := s.store.CreateReport(ctx, &schema.Report{
		Address: "Seoul",
		Writer:  "kim",
		Photos:  schema.Photos{FieldPhotoURLs: []string{"u1"}},
	})
	s.NoError(err)

	// a field the report type does not model
	_, err = s.testDatabase.Collection(schema.ReportCollection).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"legacyNote": "keep me"}})
	s.NoError(err)

	s.NoError(s.store.PatchReport(ctx, id, map[string]interface{}{"writer": "lee"}))

	var raw bson.Raw
	s.NoError(s.testDatabase.Collection(schema.ReportCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw))
	s.Equal("lee", raw.Lookup("writer").StringValue())
	s.Equal("Seoul", raw.Lookup("address").StringValue())
	s.Equal("keep me", raw.Lookup("legacyNote").StringValue())

	s.Equal(ErrEmptyPatch, s.store.PatchReport(ctx, id, nil))
	s.Equal(ErrReportNotFound, s.store.PatchReport(ctx, "missing", map[string]interface{}{"writer": "x"}))
}

func (s *MongoStoreTestSuite) TestListAndDeleteReports() {
	ctx := context.Background()
	older, err := s.store.CreateReport(ctx, &schema.Report{Address: "old", CreatedAt: time.Now().Add(-time.Hour)})
	s.NoError(err)
	newer, err := s.store.CreateReport(ctx, &schema.Report{Address: "new", CreatedAt: time.Now()})
	s.NoError(err)

	reports, err := s.store.ListReports(ctx)
	s.NoError(err)
	s.Len(reports, 2)
	s.Equal(newer, reports[0].ID)
	s.Equal(older, reports[1].ID)

	s.NoError(s.store.DeleteReport(ctx, older))
	s.Equal(ErrReportNotFound, s.store.DeleteReport(ctx, older))

	reports, err = s.store.ListReports(ctx)
	s.NoError(err)
	s.Len(reports, 1)
}

func (s *MongoStoreTestSuite) TestGridFSBlob() {
	ctx := context.Background()
	blob := NewGridFSBlob(s.mongoClient, s.testDBName, "http://localhost:8080/")

	u, err := blob.Upload(ctx, "fieldPhotos/abc-a.jpg", bytes.NewReader([]byte("jpeg")), "image/jpeg")
	s.NoError(err)
	s.Equal("http://localhost:8080/api/photos/fieldPhotos/abc-a.jpg", u)

	r, err := blob.Open(ctx, u)
	s.NoError(err)
	data, err := ioutil.ReadAll(r)
	s.NoError(err)
	s.NoError(r.Close())
	s.Equal("jpeg", string(data))

	ct, err := blob.ContentType(ctx, "fieldPhotos/abc-a.jpg")
	s.NoError(err)
	s.Equal("image/jpeg", ct)

	s.NoError(blob.Delete(ctx, u))
	s.Equal(ErrBlobNotFound, blob.Delete(ctx, u))

	_, err = blob.Open(ctx, "fieldPhotos/abc-a.jpg")
	s.Equal(ErrBlobNotFound, err)
}

// In order for 'go test' to run this suite, we need to create
// a normal test function and pass our suite to s.Run
func TestMongoStoreTestSuite(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI is not set")
	}
	suite.Run(t, NewMongoStoreTestSuite(uri, "test-as-report"))
}

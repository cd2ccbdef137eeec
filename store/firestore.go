package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stl-inc/as-report-api/schema"
)

const (
	firestoreLogPrefix = "firestore"
)

type firestoreDB struct {
	client *firestore.Client
}

// NewFirestoreStore - return firestore operations
func NewFirestoreStore(client *firestore.Client) Store {
	return &firestoreDB{
		client: client,
	}
}

// Ping reads at most one marker to make sure the project is reachable
func (f *firestoreDB) Ping() error {
	ctx, cancel := withTimeout(context.Background(), defaultTimeout)
	defer cancel()

	iter := f.client.Collection(schema.LocationCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (f *firestoreDB) Close() {
	log.WithField("prefix", firestoreLogPrefix).Info("closing firestore client")
	_ = f.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (f *firestoreDB) AddLocation(ctx context.Context, loc *schema.Location) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	ref := f.client.Collection(schema.LocationCollection).NewDoc()
	if _, err := ref.Create(ctx, loc); err != nil {
		return "", err
	}
	loc.ID = ref.ID
	return ref.ID, nil
}

func (f *firestoreDB) ListLocations(ctx context.Context) ([]schema.Location, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	return readLocations(f.client.Collection(schema.LocationCollection).Documents(ctx))
}

func (f *firestoreDB) GetLocation(ctx context.Context, id string) (*schema.Location, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := f.client.Collection(schema.LocationCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	var loc schema.Location
	if err := doc.DataTo(&loc); err != nil {
		return nil, err
	}
	loc.ID = doc.Ref.ID
	return &loc, nil
}

func (f *firestoreDB) DeleteLocation(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := f.client.Collection(schema.LocationCollection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return ErrLocationNotFound
		}
		return err
	}
	return nil
}

func (f *firestoreDB) FindLocationsAt(ctx context.Context, lat, lng float64) ([]schema.Location, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	query := f.client.Collection(schema.LocationCollection).
		Where("lat", "==", lat).
		Where("lng", "==", lng)
	return readLocations(query.Documents(ctx))
}

func readLocations(iter *firestore.DocumentIterator) ([]schema.Location, error) {
	defer iter.Stop()

	locations := make([]schema.Location, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var loc schema.Location
		if err := doc.DataTo(&loc); err != nil {
			return nil, err
		}
		loc.ID = doc.Ref.ID
		locations = append(locations, loc)
	}
	return locations, nil
}

func (f *firestoreDB) CreateReport(ctx context.Context, r *schema.Report) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	r.Photos.Normalize()
	ref := f.client.Collection(schema.ReportCollection).NewDoc()
	if _, err := ref.Create(ctx, r); err != nil {
		return "", err
	}
	r.ID = ref.ID
	return ref.ID, nil
}

func (f *firestoreDB) ListReports(ctx context.Context) ([]schema.Report, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	iter := f.client.Collection(schema.ReportCollection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	reports := make([]schema.Report, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		r, err := reportFromDoc(doc)
		if err != nil {
			log.WithField("prefix", firestoreLogPrefix).WithField("id", doc.Ref.ID).Errorf("skip undecodable report: %s", err)
			continue
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

func (f *firestoreDB) GetReport(ctx context.Context, id string) (*schema.Report, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := f.client.Collection(schema.ReportCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	return reportFromDoc(doc)
}

// firestoreReport reads a report whose reportDate may have been written as a
// timestamp instead of a string
type firestoreReport struct {
	schema.Report
	ReportDate interface{} `firestore:"reportDate"`
}

func (fr firestoreReport) report() (schema.Report, error) {
	r := fr.Report
	switch v := fr.ReportDate.(type) {
	case nil:
		r.ReportDate = ""
	case string:
		r.ReportDate = v
	case time.Time:
		r.ReportDate = schema.FormatReportDate(v)
	default:
		return r, fmt.Errorf("unexpected reportDate type %T", v)
	}
	r.Photos.Normalize()
	return r, nil
}

func reportFromDoc(doc *firestore.DocumentSnapshot) (*schema.Report, error) {
	var fr firestoreReport
	if err := doc.DataTo(&fr); err != nil {
		return nil, err
	}
	r, err := fr.report()
	if err != nil {
		return nil, err
	}
	r.ID = doc.Ref.ID
	return &r, nil
}

func (f *firestoreDB) PatchReport(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return ErrEmptyPatch
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	if _, err := f.client.Collection(schema.ReportCollection).Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return ErrReportNotFound
		}
		return err
	}
	return nil
}

func (f *firestoreDB) DeleteReport(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := f.client.Collection(schema.ReportCollection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return ErrReportNotFound
		}
		return err
	}
	return nil
}

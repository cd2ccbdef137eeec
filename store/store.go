package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stl-inc/as-report-api/schema"
)

const (
	defaultTimeout = 5 * time.Second
	blobTimeout    = 60 * time.Second
)

var (
	ErrLocationNotFound = fmt.Errorf("location not found")
	ErrReportNotFound   = fmt.Errorf("report not found")
	ErrEmptyPatch       = fmt.Errorf("nothing to update")
)

// Locations - persisted map markers
type Locations interface {
	AddLocation(ctx context.Context, loc *schema.Location) (string, error)
	ListLocations(ctx context.Context) ([]schema.Location, error)
	GetLocation(ctx context.Context, id string) (*schema.Location, error)
	DeleteLocation(ctx context.Context, id string) error
	// FindLocationsAt returns locations whose coordinates equal the given ones exactly
	FindLocationsAt(ctx context.Context, lat, lng float64) ([]schema.Location, error)
}

// Reports - persisted AS reports
type Reports interface {
	CreateReport(ctx context.Context, r *schema.Report) (string, error)
	ListReports(ctx context.Context) ([]schema.Report, error)
	GetReport(ctx context.Context, id string) (*schema.Report, error)
	// PatchReport sets only the given document paths, e.g. "writer" or "photos.fieldPhotoURLs"
	PatchReport(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteReport(ctx context.Context, id string) error
}

// Closer - close db connection
type Closer interface {
	Close()
}

// Pinger - ping database
type Pinger interface {
	Ping() error
}

//go:generate mockgen -destination=../mocks/store.go -package=mocks github.com/stl-inc/as-report-api/store Store
//go:generate mockgen -destination=../mocks/blob.go -package=mocks github.com/stl-inc/as-report-api/store Blob

// Store is the document store gateway shared by every component
type Store interface {
	Locations
	Reports
	Pinger
	Closer
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}

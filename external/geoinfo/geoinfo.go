package geoinfo

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"
)

const (
	logPrefix      = "geoinfo"
	defaultTimeout = 5 * time.Second

	// language of the addresses returned
	language = "ko"
)

//go:generate mockgen -destination=../mocks/geoinfo.go -package=mocks github.com/stl-inc/as-report-api/external/geoinfo GeoInfo

// GeoInfo - interface to operate google maps
type GeoInfo interface {
	Get(ctx context.Context, lat, lng float64) ([]maps.GeocodingResult, error)
	Search(ctx context.Context, query string) ([]maps.PlacesSearchResult, error)
}

type geoInfo struct {
	client *maps.Client
}

func (g geoInfo) Get(ctx context.Context, lat, lng float64) ([]maps.GeocodingResult, error) {
	log.WithFields(log.Fields{
		"prefix": logPrefix,
		"lat":    lat,
		"lng":    lng,
	}).Info("query geo info")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return g.client.Geocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{
			Lat: lat,
			Lng: lng,
		},
		Language: language,
	})
}

func (g geoInfo) Search(ctx context.Context, query string) ([]maps.PlacesSearchResult, error) {
	log.WithFields(log.Fields{
		"prefix": logPrefix,
		"query":  query,
	}).Info("keyword search")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Language: language,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// New - new GeoInfo interface
func New(apiKey string, opts ...maps.ClientOption) (GeoInfo, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		log.WithFields(log.Fields{
			"prefix": logPrefix,
			"error":  err,
		}).Error("new map client")

		return nil, err
	}

	return &geoInfo{
		client: client,
	}, nil
}

package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"github.com/stl-inc/as-report-api/external/geoinfo"
	"github.com/stl-inc/as-report-api/external/kakao"
	"github.com/stl-inc/as-report-api/schema"
)

const logPrefix = "geo"

var (
	ErrNoGeoInfoFound = fmt.Errorf("no geo information found")
	ErrNoSearchResult = fmt.Errorf("no search result")
	ErrNoGeocoder     = fmt.Errorf("no geocoder configured")
)

// countryPrefix is dropped from formatted addresses
const countryPrefix = "대한민국 "

//go:generate mockgen -destination=../mocks/geocoder.go -package=mocks github.com/stl-inc/as-report-api/geo Geocoder

// Geocoder - interface for resolving addresses and places
type Geocoder interface {
	// ReverseGeocode returns the address of a coordinate, preferring a road address
	ReverseGeocode(ctx context.Context, p schema.LatLng) (string, error)
	// KeywordSearch returns the positions of the places matching the text, best first
	KeywordSearch(ctx context.Context, query string) ([]schema.LatLng, error)
}

type MultipleResolverErrors struct {
	errors []error
}

func (e *MultipleResolverErrors) Error() string {
	errorStrings := make([]string, len(e.errors))
	for i, err := range e.errors {
		errorStrings[i] = fmt.Sprintf("#%d: %s", i, err.Error())
	}
	return strings.Join(errorStrings, "\n")
}

// Is reports whether every resolver failed with the target
func (e *MultipleResolverErrors) Is(target error) bool {
	if len(e.errors) == 0 {
		return false
	}
	for _, err := range e.errors {
		if !errors.Is(err, target) {
			return false
		}
	}
	return true
}

func NewMultipleResolverErrors(errors []error) *MultipleResolverErrors {
	return &MultipleResolverErrors{
		errors: errors,
	}
}

// GoogleGeocoder resolves through the google maps geocoding and places apis
type GoogleGeocoder struct {
	info geoinfo.GeoInfo
}

func NewGoogleGeocoder(info geoinfo.GeoInfo) *GoogleGeocoder {
	return &GoogleGeocoder{
		info: info,
	}
}

func isRoadResult(r maps.GeocodingResult) bool {
	for _, t := range r.Types {
		if t == "street_address" || t == "route" {
			return true
		}
	}
	return false
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p schema.LatLng) (string, error) {
	geos, err := g.info.Get(ctx, p.Lat, p.Lng)
	if nil != err {
		return "", err
	}

	if len(geos) == 0 {
		return "", ErrNoGeoInfoFound
	}

	chosen := geos[0]
	for _, r := range geos {
		if isRoadResult(r) {
			chosen = r
			break
		}
	}

	return strings.TrimPrefix(chosen.FormattedAddress, countryPrefix), nil
}

func (g *GoogleGeocoder) KeywordSearch(ctx context.Context, query string) ([]schema.LatLng, error) {
	results, err := g.info.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, ErrNoSearchResult
	}

	positions := make([]schema.LatLng, 0, len(results))
	for _, r := range results {
		positions = append(positions, schema.LatLng{
			Lat: r.Geometry.Location.Lat,
			Lng: r.Geometry.Location.Lng,
		})
	}
	return positions, nil
}

// KakaoGeocoder resolves through the kakao local api
type KakaoGeocoder struct {
	local kakao.Local
}

func NewKakaoGeocoder(local kakao.Local) *KakaoGeocoder {
	return &KakaoGeocoder{
		local: local,
	}
}

func (k *KakaoGeocoder) ReverseGeocode(ctx context.Context, p schema.LatLng) (string, error) {
	docs, err := k.local.Coord2Address(ctx, p.Lat, p.Lng)
	if err != nil {
		return "", err
	}

	for _, d := range docs {
		if d.RoadAddress != nil && d.RoadAddress.AddressName != "" {
			return d.RoadAddress.AddressName, nil
		}
	}
	for _, d := range docs {
		if d.Address != nil && d.Address.AddressName != "" {
			return d.Address.AddressName, nil
		}
	}
	return "", ErrNoGeoInfoFound
}

func (k *KakaoGeocoder) KeywordSearch(ctx context.Context, query string) ([]schema.LatLng, error) {
	places, err := k.local.KeywordSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	positions := make([]schema.LatLng, 0, len(places))
	for _, p := range places {
		lat, lng, err := p.Position()
		if err != nil {
			log.WithField("prefix", logPrefix).Warnf("skip place %q: %s", p.PlaceName, err)
			continue
		}
		positions = append(positions, schema.LatLng{Lat: lat, Lng: lng})
	}

	if len(positions) == 0 {
		return nil, ErrNoSearchResult
	}
	return positions, nil
}

// MultipleGeocoder asks each geocoder in turn and returns the first answer
type MultipleGeocoder struct {
	geocoders []Geocoder
}

func NewMultipleGeocoder(geocoders ...Geocoder) *MultipleGeocoder {
	return &MultipleGeocoder{
		geocoders: geocoders,
	}
}

// Keys are the provider credentials. Providers without a key are left out.
type Keys struct {
	Google   string
	Kakao    string
	KakaoURL string
}

// NewFromKeys chains the configured providers, Google first
func NewFromKeys(keys Keys) (*MultipleGeocoder, error) {
	var geocoders []Geocoder
	if keys.Google != "" {
		info, err := geoinfo.New(keys.Google)
		if err != nil {
			return nil, err
		}
		geocoders = append(geocoders, NewGoogleGeocoder(info))
	}
	if keys.Kakao != "" {
		geocoders = append(geocoders, NewKakaoGeocoder(kakao.New(keys.Kakao, keys.KakaoURL)))
	}
	if len(geocoders) == 0 {
		return nil, ErrNoGeocoder
	}
	return NewMultipleGeocoder(geocoders...), nil
}

func (m *MultipleGeocoder) ReverseGeocode(ctx context.Context, p schema.LatLng) (string, error) {
	var errors []error
	for _, g := range m.geocoders {
		address, err := g.ReverseGeocode(ctx, p)
		if err != nil {
			errors = append(errors, err)
		} else {
			return address, nil
		}
	}

	return "", NewMultipleResolverErrors(errors)
}

func (m *MultipleGeocoder) KeywordSearch(ctx context.Context, query string) ([]schema.LatLng, error) {
	var errors []error
	for _, g := range m.geocoders {
		positions, err := g.KeywordSearch(ctx, query)
		if err != nil {
			errors = append(errors, err)
		} else {
			return positions, nil
		}
	}

	return nil, NewMultipleResolverErrors(errors)
}

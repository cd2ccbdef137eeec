package mapview

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/stl-inc/as-report-api/store"
)

// MarkersGeoJSON exports the persisted markers as a feature collection of points
func MarkersGeoJSON(ctx context.Context, locations store.Locations) (*geojson.FeatureCollection, error) {
	locs, err := locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, l := range locs {
		f := geojson.NewFeature(orb.Point{l.Lng, l.Lat})
		f.ID = l.ID
		f.Properties = geojson.Properties{
			"id":        l.ID,
			"address":   l.Address,
			"type":      l.Type,
			"icon":      IconInstalled,
			"timestamp": l.Timestamp,
		}
		fc.Append(f)
	}
	return fc, nil
}

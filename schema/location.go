package schema

import "time"

const (
	LocationCollection = "locations"

	// LocationTypeAS marks a location serviced by an AS visit. It is the only type in use.
	LocationTypeAS = "as"
)

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat" bson:"lat" firestore:"lat"`
	Lng float64 `json:"lng" bson:"lng" firestore:"lng"`
}

// Location is a persisted map marker
type Location struct {
	ID        string    `json:"id" bson:"_id" firestore:"-"`
	Lat       float64   `json:"lat" bson:"lat" firestore:"lat"`
	Lng       float64   `json:"lng" bson:"lng" firestore:"lng"`
	Address   string    `json:"address" bson:"address" firestore:"address"`
	Type      string    `json:"type" bson:"type" firestore:"type"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
}

// Position returns the coordinate of the location
func (l Location) Position() LatLng {
	return LatLng{Lat: l.Lat, Lng: l.Lng}
}

// At reports whether the location sits exactly on the given coordinate.
func (l Location) At(p LatLng) bool {
	return l.Lat == p.Lat && l.Lng == p.Lng
}

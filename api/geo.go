package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stl-inc/as-report-api/schema"
)

// parseGeoPosition will parse latitude and longitude from the geo-position string
func parseGeoPosition(geoPosition string) (float64, float64, error) {
	positions := strings.Split(geoPosition, ";")

	if len(positions) != 2 {
		return 0, 0, fmt.Errorf("invalid geo-position value")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(positions[0]), 64)
	if err != nil {
		return 0, 0, err
	}

	long, err := strconv.ParseFloat(strings.TrimSpace(positions[1]), 64)
	if err != nil {
		return 0, 0, err
	}

	if !inRange(lat, long) {
		return 0, 0, fmt.Errorf("geo-position out of range")
	}

	return lat, long, nil
}

func inRange(lat, long float64) bool {
	return lat >= -90 && lat <= 90 && long >= -180 && long <= 180
}

// devicePosition reads the device fix sent with the request, nil when the
// device could not provide one
func devicePosition(c *gin.Context) *schema.LatLng {
	gp := c.GetHeader("Geo-Position")
	if gp == "" {
		return nil
	}

	lat, long, err := parseGeoPosition(gp)
	if err != nil {
		c.Error(err)
		return nil
	}
	return &schema.LatLng{Lat: lat, Lng: long}
}

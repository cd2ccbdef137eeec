package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stl-inc/as-report-api/mapview"
	"github.com/stl-inc/as-report-api/schema"
)

// geolocation options the client uses for device fixes
const (
	geolocationTimeout    = 10000
	geolocationMaximumAge = 0
)

func (s *Server) mapManager(c *gin.Context) *mapview.Manager {
	return s.maps.Get(sessionOf(c).ID)
}

func (s *Server) loadMap(c *gin.Context) {
	view, err := s.mapManager(c).Load(c)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) mapOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"center": mapview.DefaultCenter,
		"geolocation": gin.H{
			"enableHighAccuracy": true,
			"timeout":            geolocationTimeout,
			"maximumAge":         geolocationMaximumAge,
		},
	})
}

func (s *Server) clickMap(c *gin.Context) {
	var req struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lng *float64 `json:"lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}
	if !inRange(*req.Lat, *req.Lng) {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	view, err := s.mapManager(c).Click(c, schema.LatLng{Lat: *req.Lat, Lng: *req.Lng})
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) confirmMarker(c *gin.Context) {
	view, err := s.mapManager(c).Confirm(c)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) selectMarker(c *gin.Context) {
	view, err := s.mapManager(c).Select(c, c.Param("id"))
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteMarker(c *gin.Context) {
	view, err := s.mapManager(c).Delete(c)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

// locate centers the map on the fix in the Geo-Position header
func (s *Server) locate(c *gin.Context) {
	view, err := s.mapManager(c).Locate(devicePosition(c))
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) searchPlace(c *gin.Context) {
	view, err := s.mapManager(c).Search(c, c.Query("q"))
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, view)
}

// reportFromMap opens a draft for the address of the pending or selected marker
func (s *Server) reportFromMap(c *gin.Context) {
	handoff, err := s.mapManager(c).CreateReport()
	if shouldInterupt(err, c) {
		return
	}

	draft := s.drafts.Open(sessionOf(c).ID, handoff.Address)
	c.JSON(http.StatusCreated, gin.H{
		"handoff": handoff,
		"draft":   draftView(draft),
	})
}

func (s *Server) reportsAtMarker(c *gin.Context) {
	reports, err := s.mapManager(c).ListReportsAt(c)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) markersGeoJSON(c *gin.Context) {
	fc, err := mapview.MarkersGeoJSON(c, s.store)
	if shouldInterupt(err, c) {
		return
	}

	data, err := fc.MarshalJSON()
	if shouldInterupt(err, c) {
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

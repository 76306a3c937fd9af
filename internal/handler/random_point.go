package handler

import (
	"net/http"
	"strconv"

	"device-geocoder/internal/geo"
	"device-geocoder/internal/models"

	"github.com/gin-gonic/gin"
)

// RandomPointHandler handles coordinate synthesis requests
type RandomPointHandler struct {
	service PointService
}

// Service interface for dependency injection
type PointService interface {
	RandomPoint(lat, lon, radiusKm float64) (models.Point, error)
}

// RandomPointResponse is the body of a successful /random-point call.
type RandomPointResponse struct {
	Center     models.Point `json:"center"`
	Point      models.Point `json:"point"`
	DistanceKm float64      `json:"distance_km"`
}

// NewRandomPointHandler creates a new random point handler
func NewRandomPointHandler(svc PointService) *RandomPointHandler {
	return &RandomPointHandler{service: svc}
}

// RandomPoint handles GET /random-point requests
//
//	@Summary	Scatter a point within a radius of a center
//	@Produce	json
//	@Param		lat			query		number	true	"Center latitude"
//	@Param		lon			query		number	true	"Center longitude"
//	@Param		radius_km	query		number	false	"Radius in kilometers"
//	@Success	200			{object}	RandomPointResponse
//	@Failure	400			{object}	map[string]string
//	@Router		/random-point [get]
func (h *RandomPointHandler) RandomPoint(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameters 'lat' and 'lon'"})
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude format"})
		return
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude format"})
		return
	}

	var radius float64
	if s := c.Query("radius_km"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km"})
			return
		}
	}

	p, err := h.service.RandomPoint(lat, lon, radius)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	center := models.Point{Latitude: lat, Longitude: lon}
	c.JSON(http.StatusOK, RandomPointResponse{
		Center:     center,
		Point:      p,
		DistanceKm: geo.DistanceKm(center, p),
	})
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"device-geocoder/internal/geo"
	"device-geocoder/internal/service"

	"github.com/gin-gonic/gin"
)

// MatchHandler handles address matching requests
type MatchHandler struct {
	service   MatchService
	threshold float64
}

// Service interface for dependency injection
type MatchService interface {
	Locate(context.Context, geo.Query, float64) service.Outcome
}

// NewMatchHandler creates a new match handler. threshold applies when a request does not set one.
func NewMatchHandler(svc MatchService, threshold float64) *MatchHandler {
	return &MatchHandler{service: svc, threshold: threshold}
}

// Match handles GET /match requests
//
//	@Summary	Match an address triple against the reference set
//	@Produce	json
//	@Param		province	query		string	true	"Province name"
//	@Param		city		query		string	false	"City name"
//	@Param		district	query		string	false	"District name"
//	@Param		threshold	query		number	false	"Minimum similarity per level"
//	@Success	200			{object}	service.Outcome
//	@Failure	400			{object}	map[string]string
//	@Failure	404			{object}	service.Outcome
//	@Router		/match [get]
func (h *MatchHandler) Match(c *gin.Context) {
	q := geo.Query{
		Province: c.Query("province"),
		City:     c.Query("city"),
		District: c.Query("district"),
	}
	if q.Province == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'province'"})
		return
	}

	threshold := h.threshold
	if s := c.Query("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number within [0,1]"})
			return
		}
		threshold = v
	}

	out := h.service.Locate(c.Request.Context(), q, threshold)
	if !out.Found {
		c.JSON(http.StatusNotFound, out)
		return
	}

	c.JSON(http.StatusOK, out)
}

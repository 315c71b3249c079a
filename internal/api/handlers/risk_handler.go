package handlers

import (
	"errors"
	"net/http"

	"journey-risk-api-server/internal/estimator"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RiskHandler struct {
	Store      *repository.Store
	Thresholds risk.Thresholds
	Logger     *zap.Logger
}

// Analyze returns the severity breakdown and safety advice for a route.
func (h *RiskHandler) Analyze(c *gin.Context) {
	route, ok := loadRoute(c, h.Store, h.Logger)
	if !ok {
		return
	}
	rd, err := h.Store.RiskData.Get(c.Request.Context(), route.RouteID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Risk data not found"})
		return
	}
	if err != nil {
		serverError(c, h.Logger, "Failed to load risk data", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route_id":        route.RouteID,
		"risk_assessment": h.Thresholds.Assess(rd),
		"recommendations": risk.Recommendations(rd),
	})
}

func (h *RiskHandler) Hotspots(c *gin.Context) {
	loc, ok := queryLocation(c)
	if !ok {
		badRequest(c, "Valid lat and lng are required")
		return
	}
	radius, ok := queryFloat(c, "radius")
	if !ok || radius <= 0 {
		radius = estimator.DefaultHotspotRadiusKm
	}
	c.JSON(http.StatusOK, gin.H{"hotspots": estimator.Hotspots(loc, radius)})
}

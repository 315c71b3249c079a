package handlers

import (
	"net/http"

	"journey-risk-api-server/internal/analytics"
	"journey-risk-api-server/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxAnalysisDays = 365

type DashboardHandler struct {
	Analytics *analytics.Service
	Logger    *zap.Logger
}

type ComparisonRequest struct {
	RouteIDs []string `json:"route_ids" binding:"required,min=1"`
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	s, err := h.Analytics.Summary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.Logger, "Failed to build dashboard summary", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *DashboardHandler) RiskAnalysis(c *gin.Context) {
	days := queryInt(c, "days", 30)
	if days > maxAnalysisDays {
		days = maxAnalysisDays
	}
	ra, err := h.Analytics.RiskAnalysis(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		serverError(c, h.Logger, "Failed to build risk analysis", err)
		return
	}
	c.JSON(http.StatusOK, ra)
}

func (h *DashboardHandler) VehicleAnalysis(c *gin.Context) {
	reports, err := h.Analytics.VehicleAnalysis(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.Logger, "Failed to build vehicle analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle_analysis": reports})
}

func (h *DashboardHandler) RouteComparison(c *gin.Context) {
	var req ComparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "route_ids is required")
		return
	}
	items, err := h.Analytics.Compare(c.Request.Context(), middleware.UserID(c), middleware.IsAdmin(c), req.RouteIDs)
	if err != nil {
		serverError(c, h.Logger, "Failed to compare routes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comparison": items})
}

func (h *DashboardHandler) RealTime(c *gin.Context) {
	rt, err := h.Analytics.RealTime(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.Logger, "Failed to load real-time updates", err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

package routes

import (
	"net/http"
	"time"

	"journey-risk-api-server/config"
	"journey-risk-api-server/internal/analytics"
	"journey-risk-api-server/internal/api/handlers"
	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"
	"journey-risk-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the application components the router hands to its handlers.
type Deps struct {
	Config     config.Config
	Logger     *zap.Logger
	Store      *repository.Store
	Tokens     *auth.TokenManager
	Hub        *socket.Hub
	Queue      handlers.JobQueue
	Weather    handlers.WeatherService
	Analytics  *analytics.Service
	Reports    handlers.ReportExporter
	Metrics    *metrics.Registry
	Thresholds risk.Thresholds
	Health     map[string]handlers.Pinger
	Version    string
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// SetupRouter wires middleware and every API route.
func SetupRouter(d Deps) *gin.Engine {
	if d.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Metrics(d.Metrics),
		cors.New(corsConfig(d.Config.Server.AllowedOrigins)),
	)

	limiter := middleware.NewIPRateLimiter(d.Config.RateLimit.RPS, d.Config.RateLimit.Burst)

	authHandler := &handlers.AuthHandler{Store: d.Store, Tokens: d.Tokens, Logger: d.Logger}
	routeHandler := &handlers.RouteHandler{Store: d.Store, Queue: d.Queue, Reports: d.Reports, Logger: d.Logger}
	riskHandler := &handlers.RiskHandler{Store: d.Store, Thresholds: d.Thresholds, Logger: d.Logger}
	vehicleHandler := &handlers.VehicleHandler{Store: d.Store, Publisher: d.Hub, Logger: d.Logger}
	weatherHandler := &handlers.WeatherHandler{Store: d.Store, Weather: d.Weather, Logger: d.Logger}
	dashboardHandler := &handlers.DashboardHandler{Analytics: d.Analytics, Logger: d.Logger}
	healthHandler := &handlers.HealthHandler{Version: d.Version, Checks: d.Health}
	wsHandler := &handlers.WebSocketHandler{
		Hub:            d.Hub,
		Tokens:         d.Tokens,
		Store:          d.Store,
		AllowedOrigins: d.Config.Server.AllowedOrigins,
		Logger:         d.Logger,
	}

	router.GET("/health", healthHandler.Health)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(middleware.RateLimit(limiter))
	{
		api.GET("/ws", wsHandler.ServeWs)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", middleware.AuthenticateRefresh(d.Tokens), authHandler.Refresh)

			account := authGroup.Group("/")
			account.Use(middleware.Authenticate(d.Tokens))
			{
				account.GET("/profile", authHandler.Profile)
				account.PUT("/profile", authHandler.UpdateProfile)
				account.POST("/change-password", authHandler.ChangePassword)
			}
		}

		api.GET("/weather/forecast", weatherHandler.Forecast)

		protected := api.Group("/")
		protected.Use(middleware.Authenticate(d.Tokens))
		{
			routesGroup := protected.Group("/routes")
			{
				routesGroup.POST("/", routeHandler.CreateRoute)
				routesGroup.GET("/", routeHandler.ListRoutes)
				routesGroup.GET("/:id", routeHandler.GetRoute)
				routesGroup.DELETE("/:id", routeHandler.DeleteRoute)
				routesGroup.POST("/:id/regenerate", routeHandler.RegenerateRoute)
				routesGroup.GET("/:id/geojson", routeHandler.GeoJSON)
				routesGroup.GET("/:id/job", routeHandler.JobStatus)
				routesGroup.POST("/:id/report", routeHandler.ExportReport)
			}

			riskGroup := protected.Group("/risk")
			{
				riskGroup.GET("/analyze/:route_id", riskHandler.Analyze)
				riskGroup.GET("/hotspots", riskHandler.Hotspots)
			}

			vehicles := protected.Group("/vehicles")
			{
				vehicles.GET("/", vehicleHandler.ListVehicles)
				vehicles.POST("/", vehicleHandler.CreateVehicle)
				vehicles.GET("/:id", vehicleHandler.GetVehicle)
				vehicles.PUT("/:id", vehicleHandler.UpdateVehicle)
				vehicles.DELETE("/:id", vehicleHandler.DeleteVehicle)
				vehicles.POST("/:id/maintenance", vehicleHandler.AddMaintenance)
				vehicles.GET("/:id/telemetry", vehicleHandler.ListTelemetry)
				vehicles.POST("/:id/telemetry", vehicleHandler.AddTelemetry)
			}

			weatherGroup := protected.Group("/weather")
			{
				weatherGroup.POST("/hazards", weatherHandler.Hazards)
				weatherGroup.GET("/alerts", weatherHandler.Alerts)
			}

			dashboard := protected.Group("/dashboard")
			{
				dashboard.GET("/summary", dashboardHandler.Summary)
				dashboard.GET("/risk-analysis", dashboardHandler.RiskAnalysis)
				dashboard.GET("/vehicle-analysis", dashboardHandler.VehicleAnalysis)
				dashboard.POST("/route-comparison", dashboardHandler.RouteComparison)
				dashboard.GET("/real-time-updates", dashboardHandler.RealTime)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return router
}

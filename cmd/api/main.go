package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journey-risk-api-server/config"
	"journey-risk-api-server/internal/analytics"
	"journey-risk-api-server/internal/api/handlers"
	"journey-risk-api-server/internal/api/routes"
	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/cache"
	"journey-risk-api-server/internal/database"
	"journey-risk-api-server/internal/estimator"
	"journey-risk-api-server/internal/eta"
	"journey-risk-api-server/internal/facility"
	"journey-risk-api-server/internal/logging"
	"journey-risk-api-server/internal/maps"
	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/pipeline"
	"journey-risk-api-server/internal/report"
	"journey-risk-api-server/internal/repository"
	"journey-risk-api-server/internal/risk"
	"journey-risk-api-server/internal/s3"
	"journey-risk-api-server/internal/scheduler"
	"journey-risk-api-server/internal/socket"
	"journey-risk-api-server/internal/traffic"
	"journey-risk-api-server/internal/weather"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	version         = "1.0.0"
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 20 * time.Second
)

// app holds every long-lived component built at startup.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	mongo *mongo.Client
	redis *redis.Client
	cache cache.Cache
	store *repository.Store

	tokens    *auth.TokenManager
	hub       *socket.Hub
	weather   *weather.Service
	queue     *pipeline.Queue
	scheduler *scheduler.Scheduler
	reports   handlers.ReportExporter
	health    map[string]handlers.Pinger
}

func main() {
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logger, err := logging.New(cfg.App.Env, cfg.Log)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	a, err := newApp(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	a.run()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
		health:  map[string]handlers.Pinger{},
	}

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)
	if err != nil {
		return nil, err
	}
	a.tokens = tokens

	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := database.SeedAdmin(ctx, a.store.Users, cfg.Admin, logger); err != nil {
		return nil, err
	}
	if err := a.initCache(ctx); err != nil {
		return nil, err
	}

	a.hub = socket.NewHub(logger, a.metrics)
	if err := a.initPipeline(ctx); err != nil {
		return nil, err
	}
	if err := a.initReports(ctx); err != nil {
		return nil, err
	}

	a.scheduler = scheduler.New(logger)
	a.scheduler.Every(cfg.Scheduler.WeatherInterval, scheduler.NewWeatherRefresh(a.store, a.weather, a.hub, logger))
	return a, nil
}

func (a *app) initStorage(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case "memory":
		a.logger.Warn("using in-memory storage, data is lost on restart")
		a.store = repository.NewMemoryStore()
		return nil
	case "", "mongo":
		client, db, err := database.Connect(ctx, a.cfg.Mongo)
		if err != nil {
			return err
		}
		if err := database.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		a.mongo = client
		a.store = repository.NewMongoStore(db)
		a.health["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		a.logger.Info("connected to MongoDB", zap.String("db", a.cfg.Mongo.DBName))
		return nil
	}
	return errors.New("unknown storage driver: " + a.cfg.Storage.Driver)
}

func (a *app) initCache(ctx context.Context) error {
	if !a.cfg.Redis.Enabled {
		a.cache = cache.NewMemoryCache(a.cfg.Cache.Default, 2*a.cfg.Cache.Default)
		return nil
	}
	client, err := cache.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	a.redis = client
	a.cache = cache.NewRedisCache(client, a.logger)
	a.health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	a.logger.Info("connected to Redis", zap.String("addr", a.cfg.Redis.Addr))
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// claimIdle is how long a stream message may stay unacknowledged before
// another consumer takes it over. It outlasts the job timeout so live jobs are not stolen.
func claimIdle(jobTimeout time.Duration) time.Duration {
	if jobTimeout <= 0 {
		return 15 * time.Minute
	}
	return jobTimeout + time.Minute
}

func (a *app) initPipeline(ctx context.Context) error {
	cfg := a.cfg

	var provider maps.Provider
	if cfg.Providers.GoogleMapsAPIKey != "" {
		provider = maps.NewGoogleClient(cfg.Providers.GoogleMapsAPIKey, cfg.Providers.HTTPTimeout)
	} else {
		a.logger.Warn("Google Maps API key not configured, using synthetic directions")
		provider = maps.NewSyntheticProvider()
	}
	mapsProvider := maps.NewCached(provider, a.cache, a.metrics, seconds(cfg.Cache.Routes), seconds(cfg.Cache.Default))

	var source weather.Source = weather.SyntheticSource{}
	if cfg.Providers.OpenWeatherAPIKey != "" {
		source = weather.NewOpenWeatherClient(cfg.Providers.OpenWeatherAPIKey, cfg.Providers.HTTPTimeout)
	} else {
		a.logger.Warn("OpenWeather API key not configured, using synthetic weather")
	}
	a.weather = weather.NewService(source, a.cache, seconds(cfg.Cache.Weather), a.metrics, a.logger)
	trafficSvc := traffic.NewService(a.cache, seconds(cfg.Cache.Traffic), a.metrics)

	orch := &pipeline.Orchestrator{
		Store:      a.store,
		Directions: mapsProvider,
		Estimators: estimator.Default(estimator.Deps{
			Weather:   a.weather,
			Traffic:   trafficSvc,
			Elevation: mapsProvider,
			Logger:    a.logger,
		}),
		Facilities:   facility.NewLocator(mapsProvider, a.logger),
		ETA:          eta.NewOptimizer(trafficSvc),
		Thresholds:   a.thresholds(),
		Publisher:    a.hub,
		Metrics:      a.metrics,
		Logger:       a.logger,
		StageTimeout: cfg.Pipeline.StageTimeout,
	}

	var dispatcher pipeline.Dispatcher = pipeline.NewChannelDispatcher(cfg.Pipeline.QueueSize)
	if a.redis != nil {
		d, err := pipeline.NewRedisDispatcher(ctx, a.redis, cfg.Redis.Stream, cfg.Redis.Group, claimIdle(cfg.Pipeline.JobTimeout), a.logger)
		if err != nil {
			return err
		}
		dispatcher = d
	}
	a.queue = pipeline.NewQueue(dispatcher, orch, pipeline.QueueOptions{
		Workers:    cfg.Pipeline.Workers,
		JobTimeout: cfg.Pipeline.JobTimeout,
	}, a.metrics, a.logger)
	return nil
}

// recoverRoutes resubmits routes a previous process left in processing. With a
// shared Redis queue only routes idle for a full job timeout are taken, since
// younger ones may still be running on another instance.
func (a *app) recoverRoutes() {
	var idle time.Duration
	if a.redis != nil {
		idle = a.cfg.Pipeline.JobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := a.queue.Recover(ctx, a.store.Routes, idle); err != nil {
		a.logger.Error("failed to resubmit processing routes", zap.Error(err))
	}
}

func (a *app) thresholds() risk.Thresholds {
	t := risk.Thresholds{Medium: a.cfg.Risk.Medium, High: a.cfg.Risk.High}
	if t.Medium <= 0 || t.High <= t.Medium {
		return risk.DefaultThresholds
	}
	return t
}

func (a *app) initReports(ctx context.Context) error {
	if !a.cfg.S3.Enabled {
		return nil
	}
	uploader, err := s3.NewUploader(ctx, a.cfg.S3)
	if err != nil {
		return err
	}
	a.reports = report.NewExporter(a.store, uploader, a.thresholds(), a.cfg.S3.Prefix)
	a.logger.Info("report export enabled", zap.String("bucket", a.cfg.S3.Bucket))
	return nil
}

// run serves HTTP until SIGINT/SIGTERM, then shuts everything down in order.
func (a *app) run() {
	a.queue.Start()
	a.recoverRoutes()
	a.scheduler.Start(context.Background())

	router := routes.SetupRouter(routes.Deps{
		Config:     a.cfg,
		Logger:     a.logger,
		Store:      a.store,
		Tokens:     a.tokens,
		Hub:        a.hub,
		Queue:      a.queue,
		Weather:    a.weather,
		Analytics:  analytics.NewService(a.store, a.logger),
		Reports:    a.reports,
		Metrics:    a.metrics,
		Thresholds: a.thresholds(),
		Health:     a.health,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("starting API server", zap.String("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("server shutdown failed", zap.Error(err))
	}
	a.queue.Stop()
	a.scheduler.Stop()
	a.close(ctx)
}

func (a *app) close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Warn("failed to disconnect mongo", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}

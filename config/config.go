// server/config/config.go
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Sub-structs mirroring the YAML layout ---

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type StorageConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessExpiration  time.Duration `mapstructure:"accessExpiration"`
	RefreshExpiration time.Duration `mapstructure:"refreshExpiration"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	Group    string `mapstructure:"group"`
}

type ProvidersConfig struct {
	GoogleMapsAPIKey  string        `mapstructure:"googleMapsAPIKey"`
	OpenWeatherAPIKey string        `mapstructure:"openWeatherAPIKey"`
	HTTPTimeout       time.Duration `mapstructure:"httpTimeout"`
}

// CacheConfig holds expirations in seconds.
type CacheConfig struct {
	Default int `mapstructure:"default"`
	Routes  int `mapstructure:"routes"`
	Weather int `mapstructure:"weather"`
	Traffic int `mapstructure:"traffic"`
}

type RiskThresholds struct {
	Medium float64 `mapstructure:"medium"`
	High   float64 `mapstructure:"high"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type PipelineConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queueSize"`
	StageTimeout time.Duration `mapstructure:"stageTimeout"`
	JobTimeout   time.Duration `mapstructure:"jobTimeout"`
}

type SchedulerConfig struct {
	WeatherInterval time.Duration `mapstructure:"weatherInterval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

type S3Config struct {
	Enabled          bool   `mapstructure:"enabled"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
	Endpoint         string `mapstructure:"endpoint"` // S3-compatible store; empty means AWS
	Prefix           string `mapstructure:"prefix"`
}

// --- Root config ---

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Risk      RiskThresholds  `mapstructure:"riskThresholds"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	S3        S3Config        `mapstructure:"s3"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "journey_risk_management")
	v.SetDefault("jwt.accessExpiration", time.Hour)
	v.SetDefault("jwt.refreshExpiration", 30*24*time.Hour)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", "routes:pipeline")
	v.SetDefault("redis.group", "pipeline-workers")
	v.SetDefault("providers.httpTimeout", 10*time.Second)
	v.SetDefault("cache.default", 300)
	v.SetDefault("cache.routes", 3600)
	v.SetDefault("cache.weather", 1800)
	v.SetDefault("cache.traffic", 300)
	v.SetDefault("riskThresholds.medium", 6.0)
	v.SetDefault("riskThresholds.high", 8.0)
	v.SetDefault("rateLimit.rps", 5.0)
	v.SetDefault("rateLimit.burst", 10)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queueSize", 256)
	v.SetDefault("pipeline.stageTimeout", 60*time.Second)
	v.SetDefault("pipeline.jobTimeout", 10*time.Minute)
	v.SetDefault("scheduler.weatherInterval", 30*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 7)
	v.SetDefault("log.maxAgeDays", 7)
	v.SetDefault("s3.prefix", "reports")
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	bindings := map[string]string{
		"app.env":                     "APP_ENV",
		"server.port":                 "SERVER_PORT",
		"storage.driver":              "STORAGE_DRIVER",
		"mongo.uri":                   "MONGO_URI",
		"mongo.dbName":                "MONGO_DBNAME",
		"jwt.secret":                  "JWT_SECRET",
		"jwt.accessExpiration":        "JWT_ACCESS_EXPIRATION",
		"jwt.refreshExpiration":       "JWT_REFRESH_EXPIRATION",
		"admin.username":              "ADMIN_USERNAME",
		"admin.email":                 "ADMIN_EMAIL",
		"admin.password":              "ADMIN_PASSWORD",
		"redis.enabled":               "REDIS_ENABLED",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"providers.googleMapsAPIKey":  "GOOGLE_MAPS_API_KEY",
		"providers.openWeatherAPIKey": "OPENWEATHER_API_KEY",
		"pipeline.workers":            "PIPELINE_WORKERS",
		"log.level":                   "LOG_LEVEL",
		"log.file":                    "LOG_FILE",
		"s3.enabled":                  "S3_ENABLED",
		"s3.bucket":                   "S3_BUCKET",
		"s3.region":                   "S3_REGION",
		"s3.accessKeyID":              "S3_ACCESS_KEY_ID",
		"s3.secretAccessKey":          "S3_SECRET_ACCESS_KEY",
		"s3.cloudFrontDomain":         "S3_CLOUDFRONT_DOMAIN",
		"s3.endpoint":                 "S3_ENDPOINT",
	}
	for key, env := range bindings {
		if err = v.BindEnv(key, env); err != nil {
			return
		}
	}

	// A missing config.yaml is fine: defaults and env vars are used.
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

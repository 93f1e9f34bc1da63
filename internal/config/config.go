package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConfigPath = "config.yml"

type Config struct {
	Server     ServerConfig
	Logger     Logger
	Storage    StorageConfig
	Upload     UploadConfig
	Processing ProcessingConfig
	Worker     WorkerConfig
	Cleanup    CleanupConfig
	Redis      RedisConfig
	S3         S3Config
	Metrics    MetricsConfig
}

type ServerConfig struct {
	AppVersion   string
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

type StorageConfig struct {
	BasePath string
}

type UploadConfig struct {
	MaxFileSize      int64
	MaxFiles         int
	AllowedMimeTypes []string
}

type ProcessingConfig struct {
	OutputFormats  []string
	DefaultQuality int
	MaxInputPixels int64
}

type WorkerConfig struct {
	WorkerCount      int
	QueueSize        int
	MaxCPUUsage      float64
	CPUCheckInterval time.Duration
}

// CleanupConfig drives the expiry sweeper. Schedule is a cron spec; when empty
// the sweeper runs every Interval.
type CleanupConfig struct {
	Interval     time.Duration
	Schedule     string
	TTL          time.Duration
	InitialDelay time.Duration
}

type RedisConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
	EventsChannel string
}

type S3Config struct {
	Enabled       bool
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	OutputBucket  string
	KeyPrefix     string
	PresignExpiry time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GetConfigPath returns the config file location, honouring CONFIG_PATH.
func GetConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) || os.IsNotExist(err) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Storage.BasePath == "":
		return errors.New("storage.basePath is required")
	case c.Upload.MaxFileSize <= 0:
		return fmt.Errorf("upload.maxFileSize must be positive, got %d", c.Upload.MaxFileSize)
	case c.Upload.MaxFiles <= 0:
		return fmt.Errorf("upload.maxFiles must be positive, got %d", c.Upload.MaxFiles)
	case len(c.Upload.AllowedMimeTypes) == 0:
		return errors.New("upload.allowedMimeTypes must not be empty")
	case len(c.Processing.OutputFormats) == 0:
		return errors.New("processing.outputFormats must not be empty")
	case c.Processing.DefaultQuality < 1 || c.Processing.DefaultQuality > 100:
		return fmt.Errorf("processing.defaultQuality must be within 1..100, got %d", c.Processing.DefaultQuality)
	case c.Processing.MaxInputPixels < 0:
		return fmt.Errorf("processing.maxInputPixels must not be negative, got %d", c.Processing.MaxInputPixels)
	case c.Worker.WorkerCount <= 0:
		return fmt.Errorf("worker.workerCount must be positive, got %d", c.Worker.WorkerCount)
	case c.Worker.QueueSize <= 0:
		return fmt.Errorf("worker.queueSize must be positive, got %d", c.Worker.QueueSize)
	case c.Cleanup.TTL <= 0:
		return fmt.Errorf("cleanup.ttl must be positive, got %s", c.Cleanup.TTL)
	case c.Cleanup.Schedule == "" && c.Cleanup.Interval <= 0:
		return errors.New("cleanup.interval or cleanup.schedule is required")
	case c.S3.Enabled && c.S3.OutputBucket == "":
		return errors.New("s3.outputBucket is required when s3 is enabled")
	}
	for _, f := range c.Processing.OutputFormats {
		switch f {
		case "webp", "jpeg", "png":
		default:
			return fmt.Errorf("unsupported output format %q", f)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.appVersion", "1.0.0")
	v.SetDefault("server.port", ":3000")
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.idleTimeout", "120s")
	v.SetDefault("server.allowOrigins", []string{"*"})

	v.SetDefault("logger.development", true)
	v.SetDefault("logger.disableCaller", false)
	v.SetDefault("logger.disableStacktrace", false)
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.level", "info")

	v.SetDefault("storage.basePath", "/tmp/jobs")

	v.SetDefault("upload.maxFileSize", 10485760)
	v.SetDefault("upload.maxFiles", 20)
	v.SetDefault("upload.allowedMimeTypes", []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"})

	v.SetDefault("processing.outputFormats", []string{"webp", "jpeg", "png"})
	v.SetDefault("processing.defaultQuality", 80)
	v.SetDefault("processing.maxInputPixels", 268402689)

	v.SetDefault("worker.workerCount", 2)
	v.SetDefault("worker.queueSize", 64)
	v.SetDefault("worker.maxCPUUsage", 90.0)
	v.SetDefault("worker.cpuCheckInterval", "5s")

	v.SetDefault("cleanup.interval", "15m")
	v.SetDefault("cleanup.schedule", "")
	v.SetDefault("cleanup.ttl", "1h")
	v.SetDefault("cleanup.initialDelay", "1m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.redisAddr", ":6379")
	v.SetDefault("redis.redisPassword", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.poolTimeout", 5)
	v.SetDefault("redis.useTLS", false)
	v.SetDefault("redis.eventsChannel", "jobs:events")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.accessKey", "")
	v.SetDefault("s3.secretKey", "")
	v.SetDefault("s3.outputBucket", "")
	v.SetDefault("s3.keyPrefix", "archives")
	v.SetDefault("s3.presignExpiry", "1h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

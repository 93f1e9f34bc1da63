package main

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	goredis "github.com/go-redis/redis/v8"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/server"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/db/aws"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/db/redis"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

func main() {
	log.Println("Starting server")

	cfgFile, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(cfg)
		if err != nil {
			appLogger.Warnf("could not connect to redis, job events disabled: %s", err)
		} else {
			appLogger.Info("redis connected")
			defer redisClient.Close()
		}
	}

	var s3Client *s3.Client
	var presignClient *s3.PresignClient
	if cfg.S3.Enabled {
		s3Client, presignClient, err = aws.NewAWSClient(context.Background(), cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Warnf("could not create s3 client, archive mirroring disabled: %s", err)
			s3Client, presignClient = nil, nil
		}
	}

	s := server.NewServer(cfg, redisClient, s3Client, presignClient, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Fatalf("server stopped with error: %s", err)
	}
}

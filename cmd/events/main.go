// Command events prints job progress events published on the redis channel.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs/repository"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/db/redis"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

func main() {
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

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := repository.NewJobsRedisRepo(redisClient, cfg.Redis.EventsChannel).SubscribeToEvents(ctx)
	defer sub.Close()

	appLogger.Infof("listening on %s", cfg.Redis.EventsChannel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				appLogger.Warnf("bad event payload: %v", err)
				continue
			}
			appLogger.Infof("job %s: %s %d%% %s", event.JobID, event.Status, event.Progress, event.Error)
		}
	}
}

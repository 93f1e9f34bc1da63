// Command sweep removes expired job directories once and exits. It is meant
// for hosts where the server is down or was restarted and left orphaned trees.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs/repository"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

func main() {
	ttl := flag.Duration("ttl", 0, "override cleanup.ttl")
	flag.Parse()

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

	maxAge := cfg.Cleanup.TTL
	if *ttl > 0 {
		maxAge = *ttl
	}

	start := time.Now()
	storage := repository.NewFSRepository(cfg.Storage.BasePath)
	removed, err := storage.CleanupExpired(maxAge)
	if err != nil {
		appLogger.Errorf("sweep finished with errors: %v", err)
	}
	appLogger.Infof("removed %d expired jobs older than %s from %s in %s", len(removed), maxAge, cfg.Storage.BasePath, time.Since(start))
}

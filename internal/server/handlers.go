package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amankumarsingh77/batch-image-compressor/internal/cleanup"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	jobsHttp "github.com/amankumarsingh77/batch-image-compressor/internal/jobs/delivery/http"
	jobsRepository "github.com/amankumarsingh77/batch-image-compressor/internal/jobs/repository"
	jobsUsecase "github.com/amankumarsingh77/batch-image-compressor/internal/jobs/usecase"
	apiMiddleware "github.com/amankumarsingh77/batch-image-compressor/internal/middleware"
	"github.com/amankumarsingh77/batch-image-compressor/internal/worker"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

// multipart framing on top of the file payload
const uploadOverhead = 1 << 20

func (s *Server) MapHandlers(e *echo.Echo) error {
	storage := jobsRepository.NewFSRepository(s.cfg.Storage.BasePath)
	if err := storage.Init(); err != nil {
		return err
	}
	s.registry = jobsRepository.NewMemoryRegistry()

	publisher := jobsRepository.NewNopPublisher()
	if s.cfg.Redis.Enabled && s.redisClient != nil {
		publisher = jobsRepository.NewJobsRedisRepo(s.redisClient, s.cfg.Redis.EventsChannel)
	}

	var awsRepo jobs.AWSRepository
	var mirror worker.ArchiveMirror
	var remover cleanup.ArchiveRemover
	if s.cfg.S3.Enabled && s.s3Client != nil {
		awsRepo = jobsRepository.NewAwsRepository(s.s3Client, s.preSignClient, s.cfg.S3.PresignExpiry)
		s3Mirror := jobsUsecase.NewS3ArchiveMirror(s.cfg, awsRepo)
		mirror = s3Mirror
		remover = s3Mirror
	}

	pipeline := worker.NewPipeline(
		s.registry,
		storage,
		worker.NewImageTranscoder(s.cfg.Processing.DefaultQuality, s.cfg.Processing.MaxInputPixels),
		worker.NewZipArchiver(),
		mirror,
		s.logger,
	)
	s.worker = worker.NewWorker(s.cfg, s.logger, pipeline, s.registry, publisher)
	s.sweeper = cleanup.NewSweeper(s.cfg, s.registry, storage, remover, s.logger)

	jobsUC := jobsUsecase.NewJobsUseCase(s.cfg, s.registry, storage, awsRepo, s.worker, s.logger)
	jobsHandlers := jobsHttp.NewJobsHandler(jobsUC, s.logger)

	mw := apiMiddleware.NewMiddlewareManager(s.cfg, s.cfg.Server.AllowOrigins, s.logger)

	bodyLimit := int64(s.cfg.Upload.MaxFiles)*s.cfg.Upload.MaxFileSize + uploadOverhead
	e.Use(middleware.RequestID())
	e.Use(mw.RequestLoggerMiddleware)
	e.Use(mw.MetricsMiddleware)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1 << 10,
		DisablePrintStack: true,
		DisableStackAll:   true,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.Server.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		MaxAge:       300,
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", bodyLimit/1024+1)))

	if s.cfg.Metrics.Enabled {
		e.GET(s.cfg.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	jobsGroup := v1.Group("/jobs")

	jobsHttp.MapJobsRoutes(jobsGroup, jobsHandlers)
	health.GET("", s.healthCheck())

	s.logger.Infof("Limits: maxFiles=%d maxFileSize=%d formats=%v ttl=%s base=%s",
		s.cfg.Upload.MaxFiles, s.cfg.Upload.MaxFileSize, s.cfg.Processing.OutputFormats,
		s.cfg.Cleanup.TTL, s.cfg.Storage.BasePath)
	return nil
}

type memoryUsage struct {
	Alloc      uint64             `json:"alloc"`
	Sys        uint64             `json:"sys"`
	HeapInUse  uint64             `json:"heapInUse"`
	NumGC      uint32             `json:"numGC"`
	Goroutines int                `json:"goroutines"`
	System     *utils.MemoryUsage `json:"system,omitempty"`
}

func (s *Server) healthCheck() echo.HandlerFunc {
	return func(c echo.Context) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		mem := memoryUsage{
			Alloc:      ms.Alloc,
			Sys:        ms.Sys,
			HeapInUse:  ms.HeapInuse,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		}
		if sys, err := utils.GetMemoryUsage(); err == nil {
			mem.System = sys
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "OK",
			"version":     s.cfg.Server.AppVersion,
			"uptime":      time.Since(s.startedAt).Seconds(),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"memoryUsage": mem,
			"jobs":        s.registry.Stats(),
		})
	}
}

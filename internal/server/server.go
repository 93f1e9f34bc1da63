package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"

	"github.com/amankumarsingh77/batch-image-compressor/internal/cleanup"
	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/worker"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

const (
	maxHeaderBytes = 1 << 20
	ctxTimeout     = 30
)

type Server struct {
	echo          *echo.Echo
	cfg           *config.Config
	redisClient   *redis.Client
	s3Client      *s3.Client
	preSignClient *s3.PresignClient
	logger        logger.Logger
	startedAt     time.Time

	registry jobs.Registry
	worker   *worker.Worker
	sweeper  *cleanup.Sweeper
}

// NewServer builds the server. redisClient and the s3 clients may be nil, in
// which case event publishing and archive mirroring are off.
func NewServer(cfg *config.Config, redisClient *redis.Client, s3Client *s3.Client, preSignClient *s3.PresignClient, logger logger.Logger) *Server {
	return &Server{
		echo:          echo.New(),
		cfg:           cfg,
		redisClient:   redisClient,
		s3Client:      s3Client,
		preSignClient: preSignClient,
		logger:        logger,
		startedAt:     time.Now(),
	}
}

func (s *Server) Run() error {
	if err := s.MapHandlers(s.echo); err != nil {
		return err
	}
	s.echo.HideBanner = true

	s.worker.Start()
	if err := s.sweeper.Start(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:           s.cfg.Server.Port,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
	go func() {
		s.logger.Infof("Server is listening on %s", s.cfg.Server.Port)
		if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
			s.logger.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), time.Second*ctxTimeout)
	defer shutdown()
	s.logger.Info("Shutting down server")

	err := server.Shutdown(ctx)
	s.worker.Stop(ctx)
	s.sweeper.Stop(ctx)
	return err
}

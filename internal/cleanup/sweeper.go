// Package cleanup reclaims expired jobs from disk and from the registry.
//
// Each sweep runs two independent passes: job trees whose metadata is older
// than the TTL are removed from the base directory, then registry records whose
// last update is older than the TTL are dropped. Either pass may find work the
// other already did. Every expired id is then handed to the optional
// ArchiveRemover so mirrored archives expire with their jobs.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgc_sweep_runs_total",
		Help: "Sweeper ticks, by outcome",
	}, []string{"result"})

	sweepRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgc_sweep_removed_total",
		Help: "Expired jobs removed, by pass",
	}, []string{"pass"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imgc_sweep_duration_seconds",
		Help:    "Duration of one sweep",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// archive removals share one deadline per sweep
const removeArchivesTimeout = time.Minute

// ArchiveRemover deletes the remote copy of a job's archive. A missing object
// is not an error.
type ArchiveRemover interface {
	RemoveArchive(ctx context.Context, jobID string) error
}

// SweepResult describes one tick.
type SweepResult struct {
	Skipped         bool
	DiskRemoved     int
	RecordsRemoved  int
	ArchivesRemoved int
	Duration        time.Duration
}

type Sweeper struct {
	registry     jobs.Registry
	storage      jobs.StorageRepository
	remover      ArchiveRemover
	ttl          time.Duration
	schedule     string
	initialDelay time.Duration
	logger       logger.Logger
	now          func() time.Time

	sweeping sync.Mutex

	mu      sync.Mutex
	cron    *cron.Cron
	initial *time.Timer
	pending sync.WaitGroup
	stopped bool
}

// NewSweeper builds a sweeper. remover may be nil when archives are not
// mirrored.
func NewSweeper(cfg *config.Config, registry jobs.Registry, storage jobs.StorageRepository, remover ArchiveRemover, log logger.Logger) *Sweeper {
	schedule := cfg.Cleanup.Schedule
	if schedule == "" {
		schedule = "@every " + cfg.Cleanup.Interval.String()
	}
	return &Sweeper{
		registry:     registry,
		storage:      storage,
		remover:      remover,
		ttl:          cfg.Cleanup.TTL,
		schedule:     schedule,
		initialDelay: cfg.Cleanup.InitialDelay,
		logger:       log.With("component", "sweeper"),
		now:          time.Now,
	}
}

// Start schedules the periodic sweep and the delayed initial run.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.RunNow() }); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	if s.initialDelay >= 0 {
		s.pending.Add(1)
		s.initial = time.AfterFunc(s.initialDelay, func() {
			defer s.pending.Done()
			s.RunNow()
		})
	}

	s.logger.Infof("Sweeper started: schedule %q, ttl %s, first run in %s", s.schedule, s.ttl, s.initialDelay)
	return nil
}

// Stop prevents new sweeps and waits for one in flight, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.initial != nil && s.initial.Stop() {
		s.pending.Done()
	}
	var cronDone context.Context
	if s.cron != nil {
		cronDone = s.cron.Stop()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if cronDone != nil {
			<-cronDone.Done()
		}
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("Sweeper stop deadline reached with a sweep still running")
	}
}

// RunNow performs one sweep unless another is running, in which case the
// call is skipped rather than queued.
func (s *Sweeper) RunNow() SweepResult {
	if !s.sweeping.TryLock() {
		sweepRunsTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug("Sweep already in progress, skipping")
		return SweepResult{Skipped: true}
	}
	defer s.sweeping.Unlock()

	start := time.Now()
	var res SweepResult

	expired := make(map[string]struct{})

	removed, err := s.storage.CleanupExpired(s.ttl)
	if err != nil {
		s.logger.Errorf("Sweep - CleanupExpired error: %v", err)
	}
	res.DiskRemoved = len(removed)
	for _, id := range removed {
		expired[id] = struct{}{}
	}

	cutoff := s.now().Add(-s.ttl)
	for _, job := range s.registry.ListAll() {
		if job.UpdatedAt.Before(cutoff) && s.registry.Delete(job.ID) {
			res.RecordsRemoved++
			expired[job.ID] = struct{}{}
		}
	}

	res.ArchivesRemoved = s.removeArchives(expired)

	res.Duration = time.Since(start)
	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepRemovedTotal.WithLabelValues("disk").Add(float64(res.DiskRemoved))
	sweepRemovedTotal.WithLabelValues("registry").Add(float64(res.RecordsRemoved))
	sweepRemovedTotal.WithLabelValues("archive").Add(float64(res.ArchivesRemoved))
	sweepDurationSeconds.Observe(res.Duration.Seconds())

	if res.DiskRemoved > 0 || res.RecordsRemoved > 0 {
		s.logger.Infof("Sweep removed %d job trees, %d records and %d mirrored archives in %s",
			res.DiskRemoved, res.RecordsRemoved, res.ArchivesRemoved, res.Duration)
	}
	return res
}

// removeArchives asks the remover to drop each expired id. Failures are
// logged and left for the bucket's own lifecycle rules.
func (s *Sweeper) removeArchives(ids map[string]struct{}) int {
	if s.remover == nil || len(ids) == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), removeArchivesTimeout)
	defer cancel()

	n := 0
	for id := range ids {
		if err := s.remover.RemoveArchive(ctx, id); err != nil {
			s.logger.Errorf("Sweep - RemoveArchive %s error: %v", id, err)
			continue
		}
		n++
	}
	return n
}

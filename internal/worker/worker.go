package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

const publishTimeout = 2 * time.Second

// Worker is a fixed-size pool of goroutines draining a bounded task queue.
type Worker struct {
	cfg       *config.Config
	logger    logger.Logger
	pipeline  *Pipeline
	registry  jobs.Registry
	publisher jobs.EventPublisher
	cpuCheck  func(maxUsage float64) (bool, float64)

	tasks  chan models.ProcessTask
	quit   chan struct{}
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewWorker(cfg *config.Config, logger logger.Logger, pipeline *Pipeline, registry jobs.Registry, publisher jobs.EventPublisher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:       cfg,
		logger:    logger,
		pipeline:  pipeline,
		registry:  registry,
		publisher: publisher,
		cpuCheck:  utils.CheckCPUUsage,
		tasks:     make(chan models.ProcessTask, cfg.Worker.QueueSize),
		quit:      make(chan struct{}),
		runCtx:    ctx,
		cancel:    cancel,
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true

	w.logger.Infof("Starting %d workers, queue size %d", w.cfg.Worker.WorkerCount, w.cfg.Worker.QueueSize)
	for i := range w.cfg.Worker.WorkerCount {
		w.wg.Add(1)
		go w.Worker(i)
	}
}

// Submit queues task without blocking.
func (w *Worker) Submit(task models.ProcessTask) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.Wrap(jobs.ErrQueueFull, "worker pool is shutting down")
	}
	select {
	case w.tasks <- task:
		queueDepth.Set(float64(len(w.tasks)))
		return nil
	default:
		return errors.Wrapf(jobs.ErrQueueFull, "%d jobs already waiting", cap(w.tasks))
	}
}

// Stop lets running jobs finish. If ctx expires first, running jobs are
// interrupted and marked failed.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.quit)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Worker stop deadline reached, interrupting running jobs")
		w.cancel()
		<-done
	}
	w.cancel()
	w.failQueued()
	w.logger.Info("Workers stopped")
}

func (w *Worker) Worker(id int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		default:
		}

		select {
		case <-w.quit:
			return
		case task := <-w.tasks:
			queueDepth.Set(float64(len(w.tasks)))
			if !w.waitForCPU() {
				w.abandon(task.JobID, "service is shutting down")
				return
			}
			w.run(id, task)
		}
	}
}

func (w *Worker) run(id int, task models.ProcessTask) {
	busyWorkers.Inc()
	defer busyWorkers.Dec()

	w.logger.Infof("Worker %d - processing job %s (%s)", id, task.JobID, task.Settings.Format)
	if _, err := w.pipeline.RunJob(w.runCtx, task.JobID, task.Settings, w.progressFunc(task.JobID)); err != nil {
		w.logger.Errorf("Worker %d - job %s: %v", id, task.JobID, err)
	}
	w.publish(task.JobID)
}

// waitForCPU blocks while host CPU usage is above the configured limit.
// It returns false when the pool is stopping.
func (w *Worker) waitForCPU() bool {
	interval := w.cfg.Worker.CPUCheckInterval
	if interval <= 0 {
		interval = time.Second
	}
	for {
		ok, usage := w.cpuCheck(w.cfg.Worker.MaxCPUUsage)
		if ok {
			return true
		}
		w.logger.Infof("CPU usage is high: %.1f%%, waiting %s", usage, interval)
		select {
		case <-w.quit:
			return false
		case <-time.After(interval):
		}
	}
}

func (w *Worker) progressFunc(jobID string) ProgressFunc {
	return func(processed, total int) {
		if err := w.registry.UpdateProgress(jobID, processed, total); err != nil {
			w.logger.Warnf("UpdateProgress(%s) error: %v", jobID, err)
			return
		}
		w.publish(jobID)
	}
}

func (w *Worker) publish(jobID string) {
	snap, err := w.registry.Snapshot(jobID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	event := &models.JobEvent{
		JobID:     jobID,
		Status:    snap.Status,
		Progress:  snap.Progress,
		Error:     snap.Error,
		Timestamp: time.Now(),
	}
	if err := w.publisher.PublishEvent(ctx, event); err != nil {
		w.logger.Debugf("PublishEvent(%s) error: %v", jobID, err)
	}
}

func (w *Worker) abandon(jobID, reason string) {
	if err := w.registry.TransitionStatus(jobID, models.JobStatusFailed, reason); err != nil {
		w.logger.Warnf("TransitionStatus(%s, failed) error: %v", jobID, err)
	}
}

// failQueued marks every task that never reached a worker as failed.
func (w *Worker) failQueued() {
	for {
		select {
		case task := <-w.tasks:
			w.abandon(task.JobID, "service is shutting down")
		default:
			queueDepth.Set(0)
			return
		}
	}
}

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

type countingPublisher struct {
	events chan *models.JobEvent
}

func (p *countingPublisher) PublishEvent(_ context.Context, e *models.JobEvent) error {
	select {
	case p.events <- e:
	default:
	}
	return nil
}

func newTestWorker(t *testing.T, f *pipelineFixture, workers, queue int) (*Worker, *countingPublisher) {
	t.Helper()
	cfg := &config.Config{Worker: config.WorkerConfig{
		WorkerCount:      workers,
		QueueSize:        queue,
		CPUCheckInterval: time.Millisecond,
	}}
	pub := &countingPublisher{events: make(chan *models.JobEvent, 64)}
	w := NewWorker(cfg, logger.NewNopLogger(), f.pipeline, f.registry, pub)
	w.cpuCheck = func(float64) (bool, float64) { return true, 0 }
	return w, pub
}

func waitForStatus(t *testing.T, r jobs.Registry, id string, want models.JobStatus) *models.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Snapshot(id)
		if err == nil && snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := r.Snapshot(id)
	t.Fatalf("job %s never reached %s, last snapshot %+v", id, want, snap)
	return nil
}

func TestWorkerProcessesSubmittedJob(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "0123456789", "b.png": "abcdef"})

	w, pub := newTestWorker(t, f, 2, 4)
	w.Start()
	defer w.Stop(context.Background())

	if err := w.Submit(models.ProcessTask{JobID: id, Settings: models.ProcessSettings{Format: models.FormatWebP}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitForStatus(t, f.registry, id, models.JobStatusCompleted)
	if snap.ProcessedCount != 2 || snap.Progress != 100 {
		t.Fatalf("snapshot = %+v", snap)
	}

	select {
	case e := <-pub.events:
		if e.JobID != id {
			t.Fatalf("event for %q", e.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("no progress event published")
	}
}

func TestWorkerSubmitQueueFull(t *testing.T) {
	f := newPipelineFixture(t)
	w, _ := newTestWorker(t, f, 1, 1)

	if err := w.Submit(models.ProcessTask{JobID: "one"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := w.Submit(models.ProcessTask{JobID: "two"}); !errors.Is(err, jobs.ErrQueueFull) {
		t.Fatalf("second Submit err = %v, want ErrQueueFull", err)
	}
}

func TestWorkerStopFailsQueuedJobs(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "xx"})
	w, _ := newTestWorker(t, f, 1, 2)

	// Never started, so the task stays queued until Stop.
	if err := w.Submit(models.ProcessTask{JobID: id, Settings: models.ProcessSettings{Format: models.FormatWebP}}); err != nil {
		t.Fatal(err)
	}
	w.Stop(context.Background())

	snap, _ := f.registry.Snapshot(id)
	if snap.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if err := w.Submit(models.ProcessTask{JobID: id}); !errors.Is(err, jobs.ErrQueueFull) {
		t.Fatalf("Submit after Stop err = %v, want ErrQueueFull", err)
	}
}

func TestWorkerWaitsForCPU(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "xx"})
	w, _ := newTestWorker(t, f, 1, 1)

	busy := make(chan struct{})
	calls := 0
	w.cpuCheck = func(float64) (bool, float64) {
		calls++
		if calls == 1 {
			close(busy)
			return false, 99
		}
		return true, 10
	}
	w.Start()
	defer w.Stop(context.Background())

	if err := w.Submit(models.ProcessTask{JobID: id, Settings: models.ProcessSettings{Format: models.FormatWebP}}); err != nil {
		t.Fatal(err)
	}
	<-busy
	waitForStatus(t, f.registry, id, models.JobStatusCompleted)
}

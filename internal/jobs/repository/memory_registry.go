package repository

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

type memoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

func NewMemoryRegistry() jobs.Registry {
	return NewMemoryRegistryWithClock(time.Now)
}

// NewMemoryRegistryWithClock lets callers control the timestamps stamped on
// records, which the sweeper compares against its TTL.
func NewMemoryRegistryWithClock(now func() time.Time) jobs.Registry {
	return &memoryRegistry{
		jobs: make(map[string]*models.Job),
		now:  now,
	}
}

func (r *memoryRegistry) Create() *models.Job {
	ts := r.now()
	job := &models.Job{
		ID:             uuid.New().String(),
		Status:         models.JobStatusCreated,
		UploadedFiles:  []models.UploadedFile{},
		ProcessedFiles: []models.ProcessedFile{},
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job.Clone()
}

func (r *memoryRegistry) Get(id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.Wrapf(jobs.ErrNotFound, "job %s", id)
	}
	return job.Clone(), nil
}

// lookup must be called with mu held.
func (r *memoryRegistry) lookup(id string) (*models.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.Wrapf(jobs.ErrNotFound, "job %s", id)
	}
	return job, nil
}

func (r *memoryRegistry) TransitionStatus(id string, status models.JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if job.Status == status {
		return nil
	}
	if !job.Status.CanTransitionTo(status) {
		return errors.Wrapf(jobs.ErrConflict, "job %s: %s -> %s", id, job.Status, status)
	}
	job.Status = status
	if status == models.JobStatusFailed {
		job.Error = errMsg
	}
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) CompareAndTransition(id string, from, to models.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if job.Status != from || !from.CanTransitionTo(to) {
		return errors.Wrapf(jobs.ErrConflict, "job %s is %s, expected %s", id, job.Status, from)
	}
	job.Status = to
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) BeginProcessing(id string, settings models.ProcessSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusUploaded {
		return errors.Wrapf(jobs.ErrConflict, "job %s is %s, expected %s", id, job.Status, models.JobStatusUploaded)
	}
	s := settings.Clone()
	job.Settings = &s
	job.Status = models.JobStatusProcessing
	job.Progress = 0
	job.ProcessedCount = 0
	job.TotalFiles = len(job.UploadedFiles)
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) CompleteProcessing(id string, summary models.BatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusProcessing {
		return errors.Wrapf(jobs.ErrConflict, "job %s is %s, expected %s", id, job.Status, models.JobStatusProcessing)
	}
	job.Summary = &summary
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) RecordUpload(id string, files []models.UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, f := range files {
		job.UploadedFiles = append(job.UploadedFiles, f)
		job.OriginalSize += f.Size
	}
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) RecordProcessedFile(id string, file models.ProcessedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	file.Reduction = models.ReductionPercent(file.OriginalSize, file.CompressedSize)
	job.ProcessedFiles = append(job.ProcessedFiles, file)
	job.CompressedSize += file.CompressedSize
	job.UpdatedAt = r.now()
	return nil
}

// UpdateProgress only reports liveness. It never changes status and never lets
// progress go backwards.
func (r *memoryRegistry) UpdateProgress(id string, processed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusProcessing {
		return errors.Wrapf(jobs.ErrConflict, "job %s is %s, progress ignored", id, job.Status)
	}
	if total <= 0 {
		return errors.Wrapf(jobs.ErrInvalidInput, "job %s: total must be positive", id)
	}
	if processed > total {
		processed = total
	}
	progress := int(math.Round(float64(processed) / float64(total) * 100))
	if progress > job.Progress {
		job.Progress = progress
	}
	if processed > job.ProcessedCount {
		job.ProcessedCount = processed
	}
	job.TotalFiles = total
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

func (r *memoryRegistry) Snapshot(id string) (*models.JobSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	var processedOriginal int64
	for _, f := range job.ProcessedFiles {
		processedOriginal += f.OriginalSize
	}
	snap := &models.JobSnapshot{
		ID:                    job.ID,
		Status:                job.Status,
		Progress:              job.Progress,
		TotalFiles:            job.TotalFiles,
		ProcessedCount:        job.ProcessedCount,
		OriginalSize:          job.OriginalSize,
		ProcessedOriginalSize: processedOriginal,
		CompressedSize:        job.CompressedSize,
		Reduction:             models.ReductionPercent(processedOriginal, job.CompressedSize),
		CreatedAt:             job.CreatedAt,
		Error:                 job.Error,
	}
	if job.Summary != nil {
		sum := *job.Summary
		snap.Summary = &sum
	}
	return snap, nil
}

func (r *memoryRegistry) ListAll() []*models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	return out
}

func (r *memoryRegistry) Stats() map[models.JobStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[models.JobStatus]int)
	for _, job := range r.jobs {
		stats[job.Status]++
	}
	return stats
}

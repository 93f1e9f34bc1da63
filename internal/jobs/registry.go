package jobs

import "github.com/amankumarsingh77/batch-image-compressor/internal/models"

// Registry owns every job record. Implementations must make each call atomic
// per job and must never return pointers into their own state.
type Registry interface {
	Create() *models.Job
	Get(id string) (*models.Job, error)
	TransitionStatus(id string, status models.JobStatus, errMsg string) error
	CompareAndTransition(id string, from, to models.JobStatus) error
	BeginProcessing(id string, settings models.ProcessSettings) error
	CompleteProcessing(id string, summary models.BatchSummary) error
	RecordUpload(id string, files []models.UploadedFile) error
	RecordProcessedFile(id string, file models.ProcessedFile) error
	UpdateProgress(id string, processed, total int) error
	Delete(id string) bool
	Snapshot(id string) (*models.JobSnapshot, error)
	ListAll() []*models.Job
	Stats() map[models.JobStatus]int
}

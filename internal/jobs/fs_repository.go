package jobs

import (
	"io"
	"time"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

// StorageRepository manages the on-disk layout of job directories.
type StorageRepository interface {
	Init() error
	CreateJobTree(jobID string, meta *models.Metadata) error
	JobDir(jobID string) string
	UploadDir(jobID string) string
	ProcessedDir(jobID string) string
	ArchivePath(jobID string) string
	ArchiveExists(jobID string) bool
	SaveUpload(jobID, filename string, r io.Reader) (int64, error)
	ListFiles(dir string) []string
	ScanDir(dir string) ([]string, error)
	SaveMetadata(jobID string, meta *models.Metadata) error
	GetMetadata(jobID string) (*models.Metadata, error)
	TouchMetadata(jobID string) error
	DeleteJobTree(jobID string) error
	CleanupExpired(maxAge time.Duration) ([]string, error)
}

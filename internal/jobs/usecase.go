package jobs

import (
	"context"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

type UseCase interface {
	CreateJob(ctx context.Context) (*models.Job, error)
	UploadFiles(ctx context.Context, jobID string, files []*models.UploadFile) (*models.UploadResult, error)
	StartProcessing(ctx context.Context, jobID string, settings *models.ProcessSettings) error
	GetStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error)
	GetDownload(ctx context.Context, jobID string) (*models.DownloadInfo, error)
	DeleteJob(ctx context.Context, jobID string) error
	GetArchiveURL(ctx context.Context, jobID string) (string, error)
	ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error)
}

// TaskQueue accepts processing work without blocking the caller.
type TaskQueue interface {
	Submit(task models.ProcessTask) error
}

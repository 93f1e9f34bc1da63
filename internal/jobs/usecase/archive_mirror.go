package usecase

import (
	"context"
	"os"
	"path"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

// ArchiveKey is the object key of a job's mirrored archive.
func ArchiveKey(prefix, jobID string) string {
	return path.Join(prefix, jobID, "processed.zip")
}

// S3ArchiveMirror uploads finished archives to the output bucket and removes
// them again when the job expires.
type S3ArchiveMirror struct {
	cfg     *config.Config
	awsRepo jobs.AWSRepository
}

func NewS3ArchiveMirror(cfg *config.Config, awsRepo jobs.AWSRepository) *S3ArchiveMirror {
	return &S3ArchiveMirror{cfg: cfg, awsRepo: awsRepo}
}

func (m *S3ArchiveMirror) MirrorArchive(ctx context.Context, jobID, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat archive")
	}
	input := models.UploadInput{
		File:       f,
		Name:       path.Base(archivePath),
		MimeType:   "application/zip",
		Size:       info.Size(),
		Key:        ArchiveKey(m.cfg.S3.KeyPrefix, jobID),
		BucketName: m.cfg.S3.OutputBucket,
	}
	if err := utils.ValidateStruct(ctx, input); err != nil {
		return errors.Wrap(err, "invalid upload input")
	}
	if _, err := m.awsRepo.PutObject(ctx, input); err != nil {
		return err
	}
	return nil
}

func (m *S3ArchiveMirror) RemoveArchive(ctx context.Context, jobID string) error {
	return m.awsRepo.RemoveObject(ctx, m.cfg.S3.OutputBucket, ArchiveKey(m.cfg.S3.KeyPrefix, jobID))
}

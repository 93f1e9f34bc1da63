package worker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

// Pipeline turns a job's uploads into processed files plus one archive. It
// reports everything through the registry and never holds a job record.
type Pipeline struct {
	registry   jobs.Registry
	storage    jobs.StorageRepository
	transcoder Transcoder
	archiver   Archiver
	mirror     ArchiveMirror
	logger     logger.Logger
}

func NewPipeline(
	registry jobs.Registry,
	storage jobs.StorageRepository,
	transcoder Transcoder,
	archiver Archiver,
	mirror ArchiveMirror,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		registry:   registry,
		storage:    storage,
		transcoder: transcoder,
		archiver:   archiver,
		mirror:     mirror,
		logger:     log,
	}
}

// RunJob processes every uploaded file of jobID. The caller must already have
// moved the job to processing. Per-file failures only count against the
// summary; enumeration or archive failures fail the whole job.
func (p *Pipeline) RunJob(ctx context.Context, jobID string, settings models.ProcessSettings, onProgress ProgressFunc) (*models.BatchSummary, error) {
	start := time.Now()
	log := p.logger.With("job_id", jobID)

	files, err := p.storage.ScanDir(p.storage.UploadDir(jobID))
	if err != nil {
		return nil, p.fail(jobID, errors.Wrap(err, "enumerate uploads"))
	}
	if len(files) == 0 {
		return nil, p.fail(jobID, jobs.ErrEmptyBatch)
	}

	uploadDir := p.storage.UploadDir(jobID)
	processedDir := p.storage.ProcessedDir(jobID)
	namer := newOutputNamer()
	summary := models.BatchSummary{Total: len(files)}
	outputs := make([]string, 0, len(files))

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(jobID, errors.Wrap(err, "processing interrupted"))
		}

		outName := namer.Resolve(name, settings.Format)
		result, err := p.processFile(ctx, filepath.Join(uploadDir, name), filepath.Join(processedDir, outName), settings)
		if err != nil {
			log.Warnf("RunJob - file %s failed: %v", name, err)
			summary.Failed++
			filesTotal.WithLabelValues("failed").Inc()
		} else {
			result.Filename = outName
			if err := p.registry.RecordProcessedFile(jobID, *result); err != nil {
				if errors.Is(err, jobs.ErrNotFound) {
					log.Warnf("RunJob - job removed while processing, stopping")
					return nil, err
				}
				log.Errorf("RunJob - RecordProcessedFile error: %v", err)
			}
			summary.Successful++
			summary.TotalOriginalSize += result.OriginalSize
			summary.TotalCompressedSize += result.CompressedSize
			outputs = append(outputs, outName)
			filesTotal.WithLabelValues("ok").Inc()
		}

		if onProgress != nil {
			onProgress(i+1, len(files))
		}
	}
	summary.TotalReduction = models.ReductionPercent(summary.TotalOriginalSize, summary.TotalCompressedSize)

	archivePath := p.storage.ArchivePath(jobID)
	if err := p.archiver.Archive(ctx, processedDir, outputs, archivePath); err != nil {
		return nil, p.fail(jobID, errors.Wrap(err, "create archive"))
	}

	if p.mirror != nil {
		if err := p.mirror.MirrorArchive(ctx, jobID, archivePath); err != nil {
			log.Errorf("RunJob - MirrorArchive error: %v", err)
		}
	}

	if err := p.registry.CompleteProcessing(jobID, summary); err != nil {
		log.Errorf("RunJob - CompleteProcessing error: %v", err)
		return nil, err
	}

	jobsTotal.WithLabelValues("completed").Inc()
	if saved := summary.TotalOriginalSize - summary.TotalCompressedSize; saved > 0 {
		bytesSavedTotal.Add(float64(saved))
	}
	jobDurationSeconds.Observe(time.Since(start).Seconds())
	log.Infof("RunJob - completed: %d/%d files, reduction %d%%, took %s",
		summary.Successful, summary.Total, summary.TotalReduction, time.Since(start))
	return &summary, nil
}

func (p *Pipeline) processFile(ctx context.Context, src, dst string, settings models.ProcessSettings) (*models.ProcessedFile, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrap(err, "stat source")
	}
	compressed, err := p.transcoder.Transcode(ctx, src, dst, settings)
	if err != nil {
		return nil, err
	}
	return &models.ProcessedFile{
		OriginalSize:   info.Size(),
		CompressedSize: compressed,
	}, nil
}

// fail marks the job failed and returns cause wrapped as a processing error.
func (p *Pipeline) fail(jobID string, cause error) error {
	jobsTotal.WithLabelValues("failed").Inc()
	if err := p.registry.TransitionStatus(jobID, models.JobStatusFailed, cause.Error()); err != nil {
		p.logger.Errorf("RunJob - TransitionStatus(%s, failed) error: %v", jobID, err)
	}
	p.logger.Errorf("RunJob - job %s failed: %v", jobID, cause)
	return errors.Wrapf(jobs.ErrProcessing, "%v", cause)
}

package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

const downloadNameFormat = "compressed-images-%s.zip"

type jobsUC struct {
	cfg      *config.Config
	registry jobs.Registry
	storage  jobs.StorageRepository
	awsRepo  jobs.AWSRepository
	queue    jobs.TaskQueue
	logger   logger.Logger
}

// NewJobsUseCase wires the job actions. awsRepo may be nil when archive
// mirroring is disabled.
func NewJobsUseCase(
	cfg *config.Config,
	registry jobs.Registry,
	storage jobs.StorageRepository,
	awsRepo jobs.AWSRepository,
	queue jobs.TaskQueue,
	log logger.Logger,
) jobs.UseCase {
	return &jobsUC{
		cfg:      cfg,
		registry: registry,
		storage:  storage,
		awsRepo:  awsRepo,
		queue:    queue,
		logger:   log,
	}
}

func (u *jobsUC) CreateJob(ctx context.Context) (*models.Job, error) {
	job := u.registry.Create()

	// The tree appears together with its metadata so a sweep can never see a
	// fresh job as unreadable.
	if err := u.storage.CreateJobTree(job.ID, &models.Metadata{CreatedAt: job.CreatedAt}); err != nil {
		u.logger.Errorf("CreateJob - CreateJobTree error: %v", err)
		u.registry.Delete(job.ID)
		return nil, err
	}

	u.logger.Infof("Created job %s", job.ID)
	return job, nil
}

func (u *jobsUC) UploadFiles(ctx context.Context, jobID string, files []*models.UploadFile) (*models.UploadResult, error) {
	job, err := u.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrap(jobs.ErrEmptyBatch, "no files uploaded")
	}
	if job.Status != models.JobStatusCreated {
		return nil, errors.Wrapf(jobs.ErrConflict, "job %s is %s, uploads are only accepted once", jobID, job.Status)
	}
	if err := u.checkLimits(files); err != nil {
		u.logger.Warnf("UploadFiles - job %s rejected: %v", jobID, err)
		return nil, err
	}

	if err := u.registry.CompareAndTransition(jobID, models.JobStatusCreated, models.JobStatusUploading); err != nil {
		return nil, err
	}

	used := make(map[string]struct{}, len(files))
	uploaded := make([]models.UploadedFile, 0, len(files))
	var total int64
	for _, f := range files {
		name := uniqueName(used, utils.SanitizeFilename(f.Filename))
		n, err := u.storage.SaveUpload(jobID, name, f.File)
		if err != nil {
			u.logger.Errorf("UploadFiles - SaveUpload(%s) error: %v", name, err)
			u.failJob(jobID, err)
			return nil, err
		}
		uploaded = append(uploaded, models.UploadedFile{Filename: name, Size: n})
		total += n
	}

	if err := u.registry.RecordUpload(jobID, uploaded); err != nil {
		return nil, err
	}
	meta := &models.Metadata{
		CreatedAt:  job.CreatedAt,
		UploadedAt: time.Now(),
		FileCount:  len(uploaded),
		TotalSize:  total,
	}
	if err := u.storage.SaveMetadata(jobID, meta); err != nil {
		u.logger.Errorf("UploadFiles - SaveMetadata error: %v", err)
		u.failJob(jobID, err)
		return nil, err
	}
	if err := u.registry.CompareAndTransition(jobID, models.JobStatusUploading, models.JobStatusUploaded); err != nil {
		return nil, err
	}

	u.logger.Infof("Job %s: %d files uploaded (%d bytes)", jobID, len(uploaded), total)
	return &models.UploadResult{
		FilesUploaded: len(uploaded),
		TotalSize:     total,
		Files:         uploaded,
	}, nil
}

// checkLimits validates the whole batch before anything touches disk. Sizes
// are measured from the content, not taken from the client.
func (u *jobsUC) checkLimits(files []*models.UploadFile) error {
	limits := u.cfg.Upload
	if len(files) > limits.MaxFiles {
		return errors.Wrapf(jobs.ErrInvalidInput, "too many files: %d, max %d", len(files), limits.MaxFiles)
	}
	for _, f := range files {
		if f == nil || f.File == nil {
			return errors.Wrap(jobs.ErrInvalidInput, "missing file content")
		}
		size, err := f.File.Seek(0, io.SeekEnd)
		if err != nil {
			return errors.Wrapf(jobs.ErrInvalidInput, "read %s: %v", f.Filename, err)
		}
		if _, err := f.File.Seek(0, io.SeekStart); err != nil {
			return errors.Wrapf(jobs.ErrInvalidInput, "read %s: %v", f.Filename, err)
		}
		if size > limits.MaxFileSize {
			return errors.Wrapf(jobs.ErrInvalidInput, "%s is %d bytes, max %d", f.Filename, size, limits.MaxFileSize)
		}
		mtype, err := mimetype.DetectReader(f.File)
		if err != nil {
			return errors.Wrapf(jobs.ErrInvalidInput, "detect type of %s: %v", f.Filename, err)
		}
		if _, err := f.File.Seek(0, io.SeekStart); err != nil {
			return errors.Wrapf(jobs.ErrInvalidInput, "read %s: %v", f.Filename, err)
		}
		if !mimetype.EqualsAny(mtype.String(), limits.AllowedMimeTypes...) {
			return errors.Wrapf(jobs.ErrInvalidInput, "%s has unsupported type %s", f.Filename, mtype.String())
		}
	}
	return nil
}

// uniqueName suffixes name with -N until it is unused within the batch.
func uniqueName(used map[string]struct{}, name string) string {
	candidate := name
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		ext = name[i:]
	}
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, taken := used[strings.ToLower(candidate)]; !taken {
			used[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

func (u *jobsUC) failJob(jobID string, cause error) {
	if err := u.registry.TransitionStatus(jobID, models.JobStatusFailed, cause.Error()); err != nil {
		u.logger.Errorf("TransitionStatus(%s, failed) error: %v", jobID, err)
	}
}

func (u *jobsUC) StartProcessing(ctx context.Context, jobID string, settings *models.ProcessSettings) error {
	if settings == nil {
		return errors.Wrap(jobs.ErrInvalidInput, "settings are required")
	}
	if err := utils.ValidateStruct(ctx, settings); err != nil {
		u.logger.Warnf("StartProcessing - ValidateStruct error: %v", err)
		return errors.Wrapf(jobs.ErrInvalidInput, "%v", err)
	}
	if !u.formatAllowed(settings.Format) {
		return errors.Wrapf(jobs.ErrInvalidInput, "output format %s is not enabled", settings.Format)
	}
	s := u.applyDefaults(*settings)

	if err := u.registry.BeginProcessing(jobID, s); err != nil {
		return err
	}
	if err := u.storage.TouchMetadata(jobID); err != nil {
		u.logger.Warnf("StartProcessing - TouchMetadata error: %v", err)
	}
	if err := u.queue.Submit(models.ProcessTask{JobID: jobID, Settings: s}); err != nil {
		u.logger.Errorf("StartProcessing - Submit error: %v", err)
		u.failJob(jobID, err)
		return err
	}

	u.logger.Infof("Job %s queued: format=%s quality=%d", jobID, s.Format, s.QualityOr(0))
	return nil
}

func (u *jobsUC) formatAllowed(f models.OutputFormat) bool {
	for _, allowed := range u.cfg.Processing.OutputFormats {
		if string(f) == allowed {
			return true
		}
	}
	return false
}

func (u *jobsUC) applyDefaults(s models.ProcessSettings) models.ProcessSettings {
	s = s.Clone()
	if s.Quality == nil {
		q := u.cfg.Processing.DefaultQuality
		s.Quality = &q
	}
	if s.Resize != nil {
		if s.Resize.Width == 0 && s.Resize.Height == 0 {
			s.Resize = nil
		} else if s.Resize.Fit == "" {
			s.Resize.Fit = models.FitInside
		}
	}
	return s
}

func (u *jobsUC) GetStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	return u.registry.Snapshot(jobID)
}

func (u *jobsUC) GetDownload(ctx context.Context, jobID string) (*models.DownloadInfo, error) {
	job, err := u.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, errors.Wrapf(jobs.ErrConflict, "job %s is %s, not ready for download", jobID, job.Status)
	}
	if !u.storage.ArchiveExists(jobID) {
		u.logger.Errorf("GetDownload - job %s is completed but has no archive", jobID)
		return nil, errors.Wrapf(jobs.ErrIntegrity, "archive missing for job %s", jobID)
	}
	return &models.DownloadInfo{
		Path:     u.storage.ArchivePath(jobID),
		Filename: fmt.Sprintf(downloadNameFormat, jobID),
	}, nil
}

func (u *jobsUC) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := u.registry.Get(jobID); err != nil {
		return err
	}
	if err := u.storage.DeleteJobTree(jobID); err != nil {
		u.logger.Errorf("DeleteJob - DeleteJobTree error: %v", err)
	}
	u.registry.Delete(jobID)

	if u.awsRepo != nil {
		if err := u.awsRepo.RemoveObject(ctx, u.cfg.S3.OutputBucket, ArchiveKey(u.cfg.S3.KeyPrefix, jobID)); err != nil {
			u.logger.Warnf("DeleteJob - RemoveObject error: %v", err)
		}
	}
	u.logger.Infof("Deleted job %s", jobID)
	return nil
}

func (u *jobsUC) GetArchiveURL(ctx context.Context, jobID string) (string, error) {
	if u.awsRepo == nil {
		return "", errors.Wrap(jobs.ErrNotFound, "archive mirroring is disabled")
	}
	job, err := u.registry.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != models.JobStatusCompleted {
		return "", errors.Wrapf(jobs.ErrConflict, "job %s is %s, not ready for download", jobID, job.Status)
	}
	url, err := u.awsRepo.GetPresignedURL(ctx, u.cfg.S3.OutputBucket, ArchiveKey(u.cfg.S3.KeyPrefix, jobID))
	if err != nil {
		u.logger.Errorf("GetArchiveURL - GetPresignedURL error: %v", err)
		return "", err
	}
	return url, nil
}

func (u *jobsUC) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	if pq == nil {
		pq = &utils.Pagination{Page: 1, Size: 10}
	}
	all := u.registry.ListAll()
	filtered := all[:0]
	for _, job := range all {
		if pq.Status == "" || string(job.Status) == pq.Status {
			filtered = append(filtered, job)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	list := &models.JobList{
		Jobs:       []*models.JobSnapshot{},
		TotalCount: len(filtered),
		Page:       pq.Page,
		PageSize:   pq.Size,
		HasMore:    utils.GetHasMore(pq.Page, len(filtered), pq.Size),
	}
	start := pq.GetOffset()
	if start >= len(filtered) {
		return list, nil
	}
	end := start + pq.GetLimit()
	if end > len(filtered) {
		end = len(filtered)
	}
	for _, job := range filtered[start:end] {
		snap, err := u.registry.Snapshot(job.ID)
		if err != nil {
			continue
		}
		list.Jobs = append(list.Jobs, snap)
	}
	return list, nil
}

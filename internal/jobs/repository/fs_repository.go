package repository

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

const (
	uploadsDirName   = "uploads"
	processedDirName = "processed"
	archiveFileName  = "processed.zip"
	metadataFileName = "metadata.json"
	// job trees are assembled under this prefix and renamed into place
	stagingPrefix    = ".staging-"

	dirPerm  = 0o750
	filePerm = 0o640
)

type fsRepository struct {
	basePath string
}

func NewFSRepository(basePath string) jobs.StorageRepository {
	return &fsRepository{basePath: filepath.Clean(basePath)}
}

func (f *fsRepository) Init() error {
	if err := os.MkdirAll(f.basePath, dirPerm); err != nil {
		return errors.Wrapf(jobs.ErrIO, "create base dir %s: %v", f.basePath, err)
	}
	return nil
}

func (f *fsRepository) JobDir(jobID string) string {
	return filepath.Join(f.basePath, jobID)
}

func (f *fsRepository) UploadDir(jobID string) string {
	return filepath.Join(f.JobDir(jobID), uploadsDirName)
}

func (f *fsRepository) ProcessedDir(jobID string) string {
	return filepath.Join(f.JobDir(jobID), processedDirName)
}

func (f *fsRepository) ArchivePath(jobID string) string {
	return filepath.Join(f.JobDir(jobID), archiveFileName)
}

func (f *fsRepository) metadataPath(jobID string) string {
	return filepath.Join(f.JobDir(jobID), metadataFileName)
}

func (f *fsRepository) ArchiveExists(jobID string) bool {
	info, err := os.Stat(f.ArchivePath(jobID))
	return err == nil && info.Mode().IsRegular()
}

// checkID keeps job ids from escaping the base directory.
func checkID(jobID string) error {
	if jobID == "" || strings.HasPrefix(jobID, ".") || strings.ContainsAny(jobID, `/\`) {
		return errors.Wrapf(jobs.ErrInvalidInput, "bad job id %q", jobID)
	}
	return nil
}

// CreateJobTree builds uploads/, processed/ and the metadata file in a hidden
// staging directory and renames it to the job directory, so the tree only
// becomes visible once its metadata exists.
func (f *fsRepository) CreateJobTree(jobID string, meta *models.Metadata) error {
	if err := checkID(jobID); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(f.basePath, stagingPrefix+jobID+"-")
	if err != nil {
		return errors.Wrapf(jobs.ErrIO, "create staging dir for job %s: %v", jobID, err)
	}
	if err := f.populateJobTree(staging, meta); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, f.JobDir(jobID)); err != nil {
		os.RemoveAll(staging)
		return errors.Wrapf(jobs.ErrIO, "publish job %s: %v", jobID, err)
	}
	return nil
}

func (f *fsRepository) populateJobTree(dir string, meta *models.Metadata) error {
	if err := os.Chmod(dir, dirPerm); err != nil {
		return errors.Wrapf(jobs.ErrIO, "chmod %s: %v", dir, err)
	}
	for _, name := range []string{uploadsDirName, processedDirName} {
		sub := filepath.Join(dir, name)
		if err := os.Mkdir(sub, dirPerm); err != nil {
			return errors.Wrapf(jobs.ErrIO, "create %s: %v", sub, err)
		}
	}
	return writeMetadataFile(filepath.Join(dir, metadataFileName), meta)
}

// SaveUpload streams r into the job's upload directory. The data lands under a
// hidden temporary name first so a partial write is never listed.
func (f *fsRepository) SaveUpload(jobID, filename string, r io.Reader) (int64, error) {
	if err := checkID(jobID); err != nil {
		return 0, err
	}
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return 0, errors.Wrapf(jobs.ErrInvalidInput, "bad filename %q", filename)
	}
	dir := f.UploadDir(jobID)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, errors.Wrapf(jobs.ErrIO, "create temp file in %s: %v", dir, err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, errors.Wrapf(jobs.ErrIO, "write %s: %v", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, errors.Wrapf(jobs.ErrIO, "sync %s: %v", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrapf(jobs.ErrIO, "close %s: %v", filename, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, filename)); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrapf(jobs.ErrIO, "rename %s: %v", filename, err)
	}
	return n, nil
}

// ListFiles returns the regular, non-hidden entries of dir in name order. An
// unreadable directory yields an empty list.
func (f *fsRepository) ListFiles(dir string) []string {
	names, err := f.ScanDir(dir)
	if err != nil {
		return []string{}
	}
	return names
}

// ScanDir is ListFiles that reports why a directory could not be read.
func (f *fsRepository) ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(jobs.ErrIO, "read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (f *fsRepository) SaveMetadata(jobID string, meta *models.Metadata) error {
	if err := checkID(jobID); err != nil {
		return err
	}
	return writeMetadataFile(f.metadataPath(jobID), meta)
}

// writeMetadataFile replaces path atomically: temp file, fsync, rename.
func writeMetadataFile(path string, meta *models.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return errors.Wrapf(jobs.ErrIO, "create %s: %v", tmpPath, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(jobs.ErrIO, "write metadata: %v", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(jobs.ErrIO, "sync metadata: %v", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(jobs.ErrIO, "close metadata: %v", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(jobs.ErrIO, "rename metadata: %v", err)
	}
	return nil
}

func (f *fsRepository) GetMetadata(jobID string) (*models.Metadata, error) {
	if err := checkID(jobID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.metadataPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(jobs.ErrNotFound, "metadata for job %s", jobID)
		}
		return nil, errors.Wrapf(jobs.ErrIO, "read metadata: %v", err)
	}
	var meta models.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(jobs.ErrIntegrity, "decode metadata for job %s: %v", jobID, err)
	}
	return &meta, nil
}

// TouchMetadata bumps the metadata mtime so an active job is not swept.
func (f *fsRepository) TouchMetadata(jobID string) error {
	if err := checkID(jobID); err != nil {
		return err
	}
	now := time.Now()
	if err := os.Chtimes(f.metadataPath(jobID), now, now); err != nil {
		return errors.Wrapf(jobs.ErrIO, "touch metadata for job %s: %v", jobID, err)
	}
	return nil
}

func (f *fsRepository) DeleteJobTree(jobID string) error {
	if err := checkID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(f.JobDir(jobID)); err != nil {
		return errors.Wrapf(jobs.ErrIO, "remove job %s: %v", jobID, err)
	}
	return nil
}

// CleanupExpired removes every job tree whose metadata is older than maxAge
// and returns the ids it removed. Trees without readable metadata count as
// expired. Staging directories are aged by their own mtime and are not
// reported as jobs. A failed removal is reported after the remaining entries
// have been tried.
func (f *fsRepository) CleanupExpired(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(jobs.ErrIO, "read base dir %s: %v", f.basePath, err)
	}

	now := time.Now()
	var removed []string
	var firstErr error
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(f.basePath, name)
		staging := strings.HasPrefix(name, stagingPrefix)

		var info os.FileInfo
		if staging {
			info, err = e.Info()
		} else {
			info, err = os.Stat(filepath.Join(path, metadataFileName))
		}
		if err == nil && now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(jobs.ErrIO, "remove expired entry %s: %v", name, err)
			}
			continue
		}
		if !staging {
			removed = append(removed, name)
		}
	}
	return removed, firstErr
}

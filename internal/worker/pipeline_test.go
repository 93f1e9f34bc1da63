package worker

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs/repository"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
)

// fakeTranscoder writes half of the source bytes and fails any source whose
// name contains "broken".
type fakeTranscoder struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, src, dst string, _ models.ProcessSettings) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(src))
	f.mu.Unlock()

	if strings.Contains(filepath.Base(src), "broken") {
		return 0, errors.New("cannot decode")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	out := data[:len(data)/2]
	if err := os.WriteFile(dst, out, 0o640); err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

type recordingMirror struct {
	jobID string
	err   error
}

func (m *recordingMirror) MirrorArchive(_ context.Context, jobID, _ string) error {
	m.jobID = jobID
	return m.err
}

type pipelineFixture struct {
	registry jobs.Registry
	storage  jobs.StorageRepository
	pipeline *Pipeline
	fake     *fakeTranscoder
	mirror   *recordingMirror
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	storage := repository.NewFSRepository(filepath.Join(t.TempDir(), "jobs"))
	if err := storage.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	registry := repository.NewMemoryRegistry()
	fake := &fakeTranscoder{}
	mirror := &recordingMirror{}
	return &pipelineFixture{
		registry: registry,
		storage:  storage,
		pipeline: NewPipeline(registry, storage, fake, NewZipArchiver(), mirror, logger.NewNopLogger()),
		fake:     fake,
		mirror:   mirror,
	}
}

// uploadedJob creates a job in processing state with the given uploads on disk.
func (f *pipelineFixture) uploadedJob(t *testing.T, files map[string]string) string {
	t.Helper()
	job := f.registry.Create()
	if err := f.storage.CreateJobTree(job.ID, &models.Metadata{CreatedAt: job.CreatedAt}); err != nil {
		t.Fatal(err)
	}
	var uploads []models.UploadedFile
	for name, content := range files {
		if _, err := f.storage.SaveUpload(job.ID, name, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
		uploads = append(uploads, models.UploadedFile{Filename: name, Size: int64(len(content))})
	}
	if err := f.registry.CompareAndTransition(job.ID, models.JobStatusCreated, models.JobStatusUploading); err != nil {
		t.Fatal(err)
	}
	if err := f.registry.RecordUpload(job.ID, uploads); err != nil {
		t.Fatal(err)
	}
	if err := f.registry.CompareAndTransition(job.ID, models.JobStatusUploading, models.JobStatusUploaded); err != nil {
		t.Fatal(err)
	}
	if err := f.registry.BeginProcessing(job.ID, models.ProcessSettings{Format: models.FormatWebP}); err != nil {
		t.Fatal(err)
	}
	return job.ID
}

func TestRunJobPartialFailure(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{
		"a.png":        strings.Repeat("a", 1000),
		"b-broken.png": strings.Repeat("b", 500),
		"c.jpg":        strings.Repeat("c", 200),
	})

	var mu sync.Mutex
	var progress [][2]int
	onProgress := func(processed, total int) {
		mu.Lock()
		progress = append(progress, [2]int{processed, total})
		mu.Unlock()
	}

	summary, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, onProgress)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if summary.Total != 3 || summary.Successful != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.TotalOriginalSize != 1200 || summary.TotalCompressedSize != 600 || summary.TotalReduction != 50 {
		t.Fatalf("summary sizes = %+v", summary)
	}

	if len(progress) != 3 {
		t.Fatalf("progress called %d times, want 3", len(progress))
	}
	for i, p := range progress {
		if p[0] != i+1 || p[1] != 3 {
			t.Errorf("progress[%d] = %v", i, p)
		}
	}

	snap, err := f.registry.Snapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != models.JobStatusCompleted || snap.Progress != 100 || snap.Summary == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if f.mirror.jobID != id {
		t.Fatalf("mirror called for %q", f.mirror.jobID)
	}

	zr, err := zip.OpenReader(f.storage.ArchivePath(id))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, entry := range zr.File {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.webp" || names[1] != "c.webp" {
		t.Fatalf("archive entries = %v", names)
	}
}

func TestRunJobMirrorFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.mirror.err = errors.New("bucket unavailable")
	id := f.uploadedJob(t, map[string]string{"a.png": "0123456789"})

	if _, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, nil); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	snap, _ := f.registry.Snapshot(id)
	if snap.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
}

func TestRunJobAllFilesFail(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"x-broken.png": "zz"})

	summary, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if summary.Successful != 0 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !f.storage.ArchiveExists(id) {
		t.Fatal("archive should exist even when empty")
	}
}

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 10, G: 120, B: 200, A: 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestRunJobOversizedImageCountsAsFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.transcoder = NewImageTranscoder(80, 64*64)
	id := f.uploadedJob(t, map[string]string{
		"small.png": encodedPNG(t, 16, 16),
		"huge.png":  encodedPNG(t, 200, 200),
	})

	summary, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatPNG}, nil)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if summary.Total != 2 || summary.Successful != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(f.storage.ProcessedDir(id), "huge.png")); !os.IsNotExist(err) {
		t.Fatalf("no output expected for the oversized image: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.storage.ProcessedDir(id), "small.png")); err != nil {
		t.Fatalf("small image output missing: %v", err)
	}
}

func TestRunJobEnumerationFailure(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "x"})
	if err := os.RemoveAll(f.storage.UploadDir(id)); err != nil {
		t.Fatal(err)
	}

	_, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, nil)
	if !errors.Is(err, jobs.ErrProcessing) {
		t.Fatalf("err = %v, want ErrProcessing", err)
	}
	snap, _ := f.registry.Snapshot(id)
	if snap.Status != models.JobStatusFailed || snap.Error == "" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if f.storage.ArchiveExists(id) {
		t.Fatal("no archive expected")
	}
}

func TestRunJobEmptyUploads(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{})

	if _, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, nil); err == nil {
		t.Fatal("expected an error for a job with no uploads")
	}
	snap, _ := f.registry.Snapshot(id)
	if snap.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
}

func TestRunJobCancelled(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "x", "b.png": "y"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.pipeline.RunJob(ctx, id, models.ProcessSettings{Format: models.FormatWebP}, nil); err == nil {
		t.Fatal("expected an error for a cancelled run")
	}
	if len(f.fake.calls) != 0 {
		t.Fatalf("transcoder called %d times after cancel", len(f.fake.calls))
	}
	snap, _ := f.registry.Snapshot(id)
	if snap.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
}

func TestRunJobDeletedMidway(t *testing.T) {
	f := newPipelineFixture(t)
	id := f.uploadedJob(t, map[string]string{"a.png": "xx", "b.png": "yy"})

	onProgress := func(processed, total int) {
		if processed == 1 {
			f.registry.Delete(id)
		}
	}
	_, err := f.pipeline.RunJob(context.Background(), id, models.ProcessSettings{Format: models.FormatWebP}, onProgress)
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if f.storage.ArchiveExists(id) {
		t.Fatal("archive written for a deleted job")
	}
}

package repository

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

func newTestStorage(t *testing.T) (jobs.StorageRepository, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "jobs")
	s := NewFSRepository(base)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s, base
}

func createJob(t *testing.T, s jobs.StorageRepository, id string) {
	t.Helper()
	if err := s.CreateJobTree(id, &models.Metadata{CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateJobTree: %v", err)
	}
}

func TestLayout(t *testing.T) {
	s, base := newTestStorage(t)
	createJob(t, s, "job1")

	for _, dir := range []string{"uploads", "processed"} {
		info, err := os.Stat(filepath.Join(base, "job1", dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("%s dir missing: %v", dir, err)
		}
	}
	if got, want := s.ArchivePath("job1"), filepath.Join(base, "job1", "processed.zip"); got != want {
		t.Fatalf("ArchivePath = %s, want %s", got, want)
	}
	if s.ArchiveExists("job1") {
		t.Fatal("archive should not exist yet")
	}
}

func TestCheckIDRejectsEscapes(t *testing.T) {
	s, _ := newTestStorage(t)
	for _, id := range []string{"", ".", "..", "../x", "a/b", `a\b`, ".staging-x"} {
		if err := s.CreateJobTree(id, &models.Metadata{}); !errors.Is(err, jobs.ErrInvalidInput) {
			t.Errorf("CreateJobTree(%q) err = %v, want ErrInvalidInput", id, err)
		}
		if err := s.DeleteJobTree(id); !errors.Is(err, jobs.ErrInvalidInput) {
			t.Errorf("DeleteJobTree(%q) err = %v, want ErrInvalidInput", id, err)
		}
	}
}

func TestSaveUploadAndListFiles(t *testing.T) {
	s, _ := newTestStorage(t)
	createJob(t, s, "job1")

	for _, name := range []string{"b.png", "a.jpg"} {
		n, err := s.SaveUpload("job1", name, strings.NewReader("data-"+name))
		if err != nil {
			t.Fatalf("SaveUpload(%s): %v", name, err)
		}
		if n != int64(len("data-"+name)) {
			t.Fatalf("SaveUpload(%s) = %d bytes", name, n)
		}
	}
	dir := s.UploadDir("job1")
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	got := s.ListFiles(dir)
	if want := []string{"a.jpg", "b.png"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ListFiles = %v, want %v", got, want)
	}

	for _, bad := range []string{"", ".secret", "../escape.png", "x/y.png"} {
		if _, err := s.SaveUpload("job1", bad, strings.NewReader("x")); !errors.Is(err, jobs.ErrInvalidInput) {
			t.Errorf("SaveUpload(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestListFilesMissingDir(t *testing.T) {
	s, base := newTestStorage(t)
	missing := filepath.Join(base, "nope")

	if got := s.ListFiles(missing); got == nil || len(got) != 0 {
		t.Fatalf("ListFiles(missing) = %#v, want empty slice", got)
	}
	if _, err := s.ScanDir(missing); !errors.Is(err, jobs.ErrIO) {
		t.Fatalf("ScanDir(missing) err = %v, want ErrIO", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s, _ := newTestStorage(t)
	createJob(t, s, "job1")

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	meta := &models.Metadata{CreatedAt: created, UploadedAt: created.Add(time.Minute), FileCount: 2, TotalSize: 1234}
	if err := s.SaveMetadata("job1", meta); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	got, err := s.GetMetadata("job1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if !got.CreatedAt.Equal(meta.CreatedAt) || got.FileCount != 2 || got.TotalSize != 1234 {
		t.Fatalf("GetMetadata = %+v", got)
	}

	if _, err := s.GetMetadata("other"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("missing metadata err = %v, want ErrNotFound", err)
	}
}

func TestGetMetadataCorrupt(t *testing.T) {
	s, base := newTestStorage(t)
	createJob(t, s, "job1")
	if err := os.WriteFile(filepath.Join(base, "job1", "metadata.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMetadata("job1"); !errors.Is(err, jobs.ErrIntegrity) {
		t.Fatalf("corrupt metadata err = %v, want ErrIntegrity", err)
	}
}

func TestDeleteJobTree(t *testing.T) {
	s, base := newTestStorage(t)
	createJob(t, s, "job1")
	createJob(t, s, "job2")

	if err := s.DeleteJobTree("job1"); err != nil {
		t.Fatalf("DeleteJobTree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "job1")); !os.IsNotExist(err) {
		t.Fatalf("job1 still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "job2")); err != nil {
		t.Fatalf("job2 removed: %v", err)
	}
	if err := s.DeleteJobTree("job1"); err != nil {
		t.Fatalf("deleting an absent tree should succeed: %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	s, base := newTestStorage(t)
	createJob(t, s, "fresh")
	createJob(t, s, "stale")
	if err := os.MkdirAll(filepath.Join(base, "orphan", "uploads"), 0o750); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(base, "stale", "metadata.json"), old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := s.CleanupExpired(time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	sort.Strings(removed)
	if !reflect.DeepEqual(removed, []string{"orphan", "stale"}) {
		t.Fatalf("removed = %v, want [orphan stale]", removed)
	}
	for id, want := range map[string]bool{"fresh": true, "stale": false, "orphan": false} {
		_, err := os.Stat(filepath.Join(base, id))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", id, exists, want)
		}
	}
}

func TestCleanupExpiredTouchKeepsJob(t *testing.T) {
	s, base := newTestStorage(t)
	createJob(t, s, "busy")

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(base, "busy", "metadata.json"), old, old); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchMetadata("busy"); err != nil {
		t.Fatalf("TouchMetadata: %v", err)
	}
	if removed, err := s.CleanupExpired(time.Hour); err != nil || len(removed) != 0 {
		t.Fatalf("CleanupExpired = %v, %v; want none, nil", removed, err)
	}
}

func TestCleanupExpiredMissingBase(t *testing.T) {
	s := NewFSRepository(filepath.Join(t.TempDir(), "never-created"))
	removed, err := s.CleanupExpired(time.Hour)
	if err != nil || len(removed) != 0 {
		t.Fatalf("CleanupExpired = %v, %v; want none, nil", removed, err)
	}
}

func TestCreateJobTreeLeavesNoStaging(t *testing.T) {
	s, base := newTestStorage(t)
	created := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	if err := s.CreateJobTree("job1", &models.Metadata{CreatedAt: created}); err != nil {
		t.Fatalf("CreateJobTree: %v", err)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "job1" {
		t.Fatalf("base dir holds %v, want only job1", entries)
	}
	meta, err := s.GetMetadata("job1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if !meta.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", meta.CreatedAt, created)
	}
	if err := s.CreateJobTree("job1", &models.Metadata{}); err == nil {
		t.Fatal("creating an existing job tree should fail")
	}
	if entries, _ := os.ReadDir(base); len(entries) != 1 {
		t.Fatalf("failed create left entries behind: %v", entries)
	}
}

func TestCleanupExpiredStaging(t *testing.T) {
	s, base := newTestStorage(t)
	fresh := filepath.Join(base, ".staging-fresh-1")
	old := filepath.Join(base, ".staging-old-1")
	for _, dir := range []string{fresh, old} {
		if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := s.CleanupExpired(time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("staging dirs reported as jobs: %v", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("in-flight staging dir removed: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("abandoned staging dir survived: %v", err)
	}
}

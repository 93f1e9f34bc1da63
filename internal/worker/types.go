package worker

import (
	"context"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

// Transcoder converts one source image into dst and returns the size of the
// written output.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string, settings models.ProcessSettings) (int64, error)
}

// Archiver bundles files (names relative to srcDir) into a single archive at dst.
type Archiver interface {
	Archive(ctx context.Context, srcDir string, files []string, dst string) error
}

// ArchiveMirror copies a finished archive somewhere outside the job directory.
type ArchiveMirror interface {
	MirrorArchive(ctx context.Context, jobID, archivePath string) error
}

// ProgressFunc is told after every attempted file how many of total are done.
type ProgressFunc func(processed, total int)

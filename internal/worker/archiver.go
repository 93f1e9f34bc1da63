package worker

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

type ZipArchiver struct {
	level int
}

func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{level: flate.BestCompression}
}

// Archive writes the zip next to dst and renames it into place, so dst either
// does not exist or is complete.
func (a *ZipArchiver) Archive(ctx context.Context, srcDir string, files []string, dst string) error {
	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return errors.Wrap(err, "create archive")
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, a.level)
	})

	if err := a.addFiles(ctx, zw, srcDir, files); err != nil {
		zw.Close()
		out.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "finalize archive")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "sync archive")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close archive")
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "rename archive")
	}
	return nil
}

func (a *ZipArchiver) addFiles(ctx context.Context, zw *zip.Writer, srcDir string, files []string) error {
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, filepath.Join(srcDir, name), name); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", name)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.Wrapf(err, "header %s", name)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "add %s", name)
	}
	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrapf(err, "copy %s", name)
	}
	return nil
}

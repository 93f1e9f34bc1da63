package worker

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

const defaultQuality = 80

// DefaultMaxInputPixels matches the usual 0x3FFF*0x3FFF decoder ceiling.
const DefaultMaxInputPixels int64 = 16383 * 16383

type ImageTranscoder struct {
	defaultQuality int
	maxPixels      int64
}

// NewImageTranscoder builds a transcoder. Sources whose header declares more
// than maxPixels pixels are refused before decoding; a non-positive value
// selects DefaultMaxInputPixels.
func NewImageTranscoder(defaultQ int, maxPixels int64) *ImageTranscoder {
	if defaultQ < 1 || defaultQ > 100 {
		defaultQ = defaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxInputPixels
	}
	return &ImageTranscoder{defaultQuality: defaultQ, maxPixels: maxPixels}
}

func (t *ImageTranscoder) Transcode(ctx context.Context, src, dst string, settings models.ProcessSettings) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := t.checkDimensions(src); err != nil {
		return 0, err
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return 0, errors.Wrapf(err, "decode %s", filepath.Base(src))
	}
	if settings.Resize != nil {
		img = resizeImage(img, *settings.Resize)
	}

	quality := settings.QualityOr(t.defaultQuality)

	// Hidden temp name keeps half-written outputs out of directory listings.
	tmpPath := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp")
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", filepath.Base(dst))
	}
	if err := encodeImage(out, img, settings.Format, quality); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "encode %s", filepath.Base(dst))
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "close %s", filepath.Base(dst))
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "rename %s", filepath.Base(dst))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", filepath.Base(dst))
	}
	return info.Size(), nil
}

// checkDimensions reads only the image header so oversized sources never
// reach the full decoder.
func (t *ImageTranscoder) checkDimensions(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", filepath.Base(src))
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return errors.Wrapf(err, "decode header of %s", filepath.Base(src))
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > t.maxPixels {
		return errors.Errorf("%s is %dx%d, over the %d pixel input limit",
			filepath.Base(src), cfg.Width, cfg.Height, t.maxPixels)
	}
	return nil
}

func encodeImage(w io.Writer, img image.Image, format models.OutputFormat, quality int) error {
	switch format {
	case models.FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case models.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case models.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
}

// resizeImage applies opts without ever enlarging the source.
func resizeImage(img image.Image, opts models.ResizeOptions) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	w, h := opts.Width, opts.Height
	if w <= 0 && h <= 0 {
		return img
	}

	// A single dimension always scales proportionally.
	if w <= 0 || h <= 0 {
		if (w > 0 && w >= srcW) || (h > 0 && h >= srcH) {
			return img
		}
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}

	fit := opts.Fit
	if fit == "" {
		fit = models.FitInside
	}
	switch fit {
	case models.FitCover:
		return imaging.Fill(img, minInt(w, srcW), minInt(h, srcH), imaging.Center, imaging.Lanczos)
	case models.FitContain:
		if srcW <= w && srcH <= h {
			return img
		}
		fitted := imaging.Fit(img, w, h, imaging.Lanczos)
		bg := imaging.New(w, h, color.NRGBA{A: 255})
		return imaging.PasteCenter(bg, fitted)
	case models.FitFill:
		return imaging.Resize(img, minInt(w, srcW), minInt(h, srcH), imaging.Lanczos)
	case models.FitOutside:
		scale := math.Max(float64(w)/float64(srcW), float64(h)/float64(srcH))
		if scale >= 1 {
			return img
		}
		return imaging.Resize(img,
			int(math.Round(float64(srcW)*scale)),
			int(math.Round(float64(srcH)*scale)),
			imaging.Lanczos)
	default:
		return imaging.Fit(img, w, h, imaging.Lanczos)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

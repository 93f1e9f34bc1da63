package models

type OutputFormat string

const (
	FormatWebP OutputFormat = "webp"
	FormatJPEG OutputFormat = "jpeg"
	FormatPNG  OutputFormat = "png"
)

type ResizeFit string

const (
	FitCover   ResizeFit = "cover"
	FitContain ResizeFit = "contain"
	FitFill    ResizeFit = "fill"
	FitInside  ResizeFit = "inside"
	FitOutside ResizeFit = "outside"
)

type ResizeOptions struct {
	Width  int       `json:"width,omitempty" validate:"omitempty,min=1,max=10000"`
	Height int       `json:"height,omitempty" validate:"omitempty,min=1,max=10000"`
	Fit    ResizeFit `json:"fit,omitempty" validate:"omitempty,oneof=cover contain fill inside outside"`
}

// ProcessSettings are fixed once processing starts. A nil Quality means the
// configured default; an explicit value must be within 1..100.
type ProcessSettings struct {
	Format  OutputFormat   `json:"format" validate:"required,oneof=webp jpeg png"`
	Quality *int           `json:"quality,omitempty" validate:"omitempty,min=1,max=100"`
	Resize  *ResizeOptions `json:"resize,omitempty" validate:"omitempty"`
}

// QualityOr returns the requested quality, or def when none was given.
func (s ProcessSettings) QualityOr(def int) int {
	if s.Quality == nil {
		return def
	}
	return *s.Quality
}

func (s ProcessSettings) Clone() ProcessSettings {
	c := s
	if s.Quality != nil {
		q := *s.Quality
		c.Quality = &q
	}
	if s.Resize != nil {
		r := *s.Resize
		c.Resize = &r
	}
	return c
}

// ProcessTask is one unit of work handed to the worker pool.
type ProcessTask struct {
	JobID    string
	Settings ProcessSettings
}

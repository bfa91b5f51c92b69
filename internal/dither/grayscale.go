package dither

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/banshee-data/crystal.engrave/internal/grid"
)

// GrayOptions controls the image-to-grid conversion feeding the dither pass.
type GrayOptions struct {
	// Invert flips the gray ramp so dark pixels engrave densely. Crystal
	// engraving is usually viewed against a dark backdrop, so bright subject
	// areas want more points.
	Invert bool
	// RowsPerStep bounds how many rows a single Step of the chunked task
	// converts. Zero means the DefaultRowsPerStep.
	RowsPerStep int
}

// DefaultRowsPerStep is the row batch size for chunked grayscale conversion.
const DefaultRowsPerStep = 64

// GrayGrid converts an image to a [0,1] gray grid at the given resolution,
// scaling through x/image/draw. Conversion uses the Rec. 601 luma weights.
func GrayGrid(img image.Image, targetW, targetH int, opts GrayOptions) *grid.Grid {
	task := NewGrayscaleTask(img, targetW, targetH, opts)
	for !task.Step() {
	}
	return task.Result()
}

// GrayscaleTask converts an image to a gray grid in row batches so a host can
// interleave the work with other scheduling. There is no cancellation: once
// started, a task is expected to be stepped to completion.
type GrayscaleTask struct {
	scaled *image.RGBA
	out    *grid.Grid
	opts   GrayOptions
	row    int
}

// NewGrayscaleTask prepares a chunked conversion of img to a targetW x
// targetH gray grid. The scaling pass runs eagerly (it is a single
// x/image/draw call); the per-pixel luma conversion is what gets chunked.
func NewGrayscaleTask(img image.Image, targetW, targetH int, opts GrayOptions) *GrayscaleTask {
	scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)
	if opts.RowsPerStep <= 0 {
		opts.RowsPerStep = DefaultRowsPerStep
	}
	return &GrayscaleTask{
		scaled: scaled,
		out:    grid.New(targetW, targetH),
		opts:   opts,
	}
}

// Step converts the next row batch and reports whether the task is done.
func (t *GrayscaleTask) Step() bool {
	h := t.out.H
	if t.row >= h {
		return true
	}
	end := t.row + t.opts.RowsPerStep
	if end > h {
		end = h
	}
	w := t.out.W
	for y := t.row; y < end; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := t.scaled.At(x, y).RGBA()
			v := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
			if t.opts.Invert {
				v = 1.0 - v
			}
			t.out.Set(y, x, v)
		}
	}
	t.row = end
	return t.row >= h
}

// Done reports whether all rows have been converted.
func (t *GrayscaleTask) Done() bool { return t.row >= t.out.H }

// Result returns the gray grid. Only valid once Done.
func (t *GrayscaleTask) Result() *grid.Grid { return t.out }

// MaskFromImage re-dithers an original source image at a new resolution:
// grayscale conversion followed by Floyd–Steinberg at the requested density.
// This is the preferred path when resampling, because scaling a boolean mask
// directly produces visible aliasing.
func MaskFromImage(img image.Image, targetW, targetH int, density float64, opts GrayOptions) *grid.Mask {
	gray := GrayGrid(img, targetW, targetH, opts)
	return FloydSteinbergMask(gray, density)
}

// MeanDensity returns the fraction of retained cells, for diagnostics.
func MeanDensity(m *grid.Mask) float64 {
	if len(m.Bits) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Bits))
}

// EstimateMatrixSize picks the smallest Bayer matrix that can resolve the
// requested density without collapsing to all-on or all-off.
func EstimateMatrixSize(density float64) int {
	steps := 1.0 / math.Max(density, 1e-6)
	switch {
	case steps <= 4:
		return 2
	case steps <= 16:
		return 4
	default:
		return 8
	}
}

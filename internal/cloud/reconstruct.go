package cloud

import (
	"fmt"

	"github.com/banshee-data/crystal.engrave/internal/grid"
)

// Intrinsics carries the 3x3 camera matrix delivered by the depth service.
// Only fx and fy are extracted today and neither participates in the spatial
// mapping: unprojection runs on the fixed pixel spacing. The values are kept
// so a product decision to wire intrinsics-based projection later does not
// need a data-format change.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// IntrinsicsFromMatrix extracts focal lengths and principal point from a
// flattened row-major 3x3 matrix.
func IntrinsicsFromMatrix(m []float64) (Intrinsics, error) {
	if len(m) != 9 {
		return Intrinsics{}, fmt.Errorf("intrinsic matrix must have 9 values, got %d", len(m))
	}
	return Intrinsics{Fx: m[0], Fy: m[4], Cx: m[2], Cy: m[5]}, nil
}

// Options tunes a reconstruction pass.
type Options struct {
	// PixelSpacing is the physical distance between adjacent grid cells.
	// Zero selects DefaultPixelSpacing.
	PixelSpacing float64
	// DepthScale multiplies raw depth values into Z. Zero selects 1.0.
	DepthScale float64
	// Intrinsics, when present, are recorded but do not alter the mapping.
	Intrinsics *Intrinsics
}

func (o Options) withDefaults() Options {
	if o.PixelSpacing <= 0 {
		o.PixelSpacing = DefaultPixelSpacing
	}
	if o.DepthScale == 0 {
		o.DepthScale = 1.0
	}
	return o
}

// Cache is the flattened candidate set kept alongside a reconstruction: every
// cell that passed the mask and depth tests, regardless of confidence. When
// only the confidence threshold changes, Refilter selects from this list
// instead of re-scanning the grids.
type Cache struct {
	candidates []Point
}

// Refilter returns the candidates at or above the threshold.
func (c *Cache) Refilter(threshold float64) ([]Point, error) {
	out := make([]Point, 0, len(c.candidates))
	for _, p := range c.candidates {
		if p.Confidence >= threshold {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// Len returns the number of cached candidates.
func (c *Cache) Len() int { return len(c.candidates) }

// Reconstruct unprojects a depth grid into points. A cell becomes a point iff
// the dither mask retains it, its confidence meets the threshold and its
// depth is positive:
//
//	x = (col - w/2) * pixelSpacing
//	y = (row - h/2) * pixelSpacing
//	z = depth * depthScale
//
// The three grids must share one shape. On success the returned cache holds
// the full pre-threshold candidate set for cheap threshold-only refilters.
func Reconstruct(depth, confidence *grid.Grid, mask *grid.Mask, threshold float64, opts Options) (*Object, *Cache, error) {
	if err := grid.CheckShapes(depth, confidence, mask); err != nil {
		return nil, nil, err
	}
	opts = opts.withDefaults()

	w, h := depth.W, depth.H
	halfW := float64(w) / 2.0
	halfH := float64(h) / 2.0

	cache := &Cache{candidates: make([]Point, 0, mask.Count())}
	points := make([]Point, 0, mask.Count())

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			if mask.Bits[i] == 0 {
				continue
			}
			d := depth.Data[i]
			if d <= 0 {
				continue
			}
			p := Point{
				X:          (float64(col) - halfW) * opts.PixelSpacing,
				Y:          (float64(row) - halfH) * opts.PixelSpacing,
				Z:          d * opts.DepthScale,
				Confidence: confidence.Data[i],
			}
			cache.candidates = append(cache.candidates, p)
			if p.Confidence >= threshold {
				points = append(points, p)
			}
		}
	}

	if len(points) == 0 {
		return nil, nil, fmt.Errorf("%w (threshold %.3f over %dx%d grid)", ErrEmptyResult, threshold, w, h)
	}
	return NewObject(points, opts.PixelSpacing), cache, nil
}

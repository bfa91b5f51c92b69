// Package resample bakes a pending uniform scale into grid resolution. The
// original depth and confidence grids are interpolated onto the new
// resolution, the dither mask is regenerated, and the point cloud is rebuilt
// from the result. After a successful bake the live uniform scale folds into
// the object's sampled scale.
package resample

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/dither"
	"github.com/banshee-data/crystal.engrave/internal/grid"
)

// ErrNoOriginalData means a resample was requested before any reconstruction
// captured source grids.
var ErrNoOriginalData = errors.New("no original grids captured")

// Original is the immutable source data a session captures at first
// reconstruction. The grids are never written after capture; resampling and
// reset only read them.
type Original struct {
	Depth      *grid.Grid
	Confidence *grid.Grid
	Mask       *grid.Mask

	// SourceImage, when present, lets the mask be regenerated by re-dithering
	// the image at the new resolution instead of scaling the boolean mask.
	SourceImage image.Image
	// Density is the dither density the mask was produced with.
	Density float64
	// Invert mirrors the grayscale ramp during re-dithering.
	Invert bool
}

// Valid reports whether the original holds usable grids.
func (o *Original) Valid() bool {
	return o != nil && o.Depth != nil && o.Confidence != nil && o.Mask != nil
}

// Result is a successful bake.
type Result struct {
	Object *cloud.Object
	Cache  *cloud.Cache

	// The resampled grids, kept for threshold refilters and project export.
	Depth      *grid.Grid
	Confidence *grid.Grid
	Mask       *grid.Mask

	// UsedSourceImage records which mask path ran. The nearest-neighbor
	// fallback aliases visibly, so callers may want to surface it.
	UsedSourceImage bool
}

// Run bakes pendingScale into geometry:
//
//  1. target resolution = round(original * pendingScale XY);
//  2. bilinear interpolation of depth and confidence onto it;
//  3. mask regeneration, preferring a source-image re-dither over
//     nearest-neighbor mask scaling;
//  4. reconstruction over the new grids with depthScale = pendingScale Z;
//  5. the returned object carries the previous object's position and gizmo
//     scale, with SampledScale = pendingScale, UniformScale reset to 1 and
//     the resampled flag set.
//
// On any failure the inputs are untouched and no partial state escapes.
func Run(orig *Original, prev *cloud.Object, pendingScale r3.Vec, threshold float64, opts cloud.Options) (*Result, error) {
	if !orig.Valid() {
		return nil, ErrNoOriginalData
	}
	targetW := int(math.Round(float64(orig.Depth.W) * pendingScale.X))
	targetH := int(math.Round(float64(orig.Depth.H) * pendingScale.Y))
	if targetW < 1 || targetH < 1 {
		return nil, fmt.Errorf("%w: scale %.3fx%.3f collapses the grid", grid.ErrShapeMismatch, pendingScale.X, pendingScale.Y)
	}

	depth, err := grid.BilinearResize(orig.Depth, targetW, targetH)
	if err != nil {
		return nil, fmt.Errorf("resize depth: %w", err)
	}
	confidence, err := grid.BilinearResize(orig.Confidence, targetW, targetH)
	if err != nil {
		return nil, fmt.Errorf("resize confidence: %w", err)
	}

	var mask *grid.Mask
	usedImage := false
	if orig.SourceImage != nil {
		density := orig.Density
		if density <= 0 {
			density = dither.MeanDensity(orig.Mask)
		}
		mask = dither.MaskFromImage(orig.SourceImage, targetW, targetH, density, dither.GrayOptions{Invert: orig.Invert})
		usedImage = true
	} else {
		mask, err = grid.NearestResizeMask(orig.Mask, targetW, targetH)
		if err != nil {
			return nil, fmt.Errorf("resize mask: %w", err)
		}
	}

	opts.DepthScale = pendingScale.Z
	obj, cache, err := cloud.Reconstruct(depth, confidence, mask, threshold, opts)
	if err != nil {
		return nil, err
	}

	if prev != nil {
		obj.Position = prev.Position
		obj.TransformScale = prev.TransformScale
	}
	obj.SampledScale = pendingScale
	obj.UniformScale = 1.0
	obj.Resampled = true

	return &Result{
		Object:          obj,
		Cache:           cache,
		Depth:           depth,
		Confidence:      confidence,
		Mask:            mask,
		UsedSourceImage: usedImage,
	}, nil
}

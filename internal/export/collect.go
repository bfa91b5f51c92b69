// Package export turns an edited point cloud object into fabrication output:
// world-space point collection with brightness layering and spatial dedup,
// and a minimal DXF point-entity writer.
package export

import (
	"fmt"
	"math"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/text"
)

// BrightnessZStep is the Z offset between duplicated brightness layers.
// Stacking layers slightly behind one another reads as a denser, brighter
// engraving in the finished crystal.
const BrightnessZStep = 0.12

// DefaultDedupGridSize is the default spatial dedup cell size in engraving
// units. The laser cannot resolve two points closer than roughly this pitch.
const DefaultDedupGridSize = 0.05

// CollectPoints assembles the final world-space point set for fabrication:
//
//  1. the object's local points through its full world transform;
//  2. brightnessLevel-1 duplicate layers, each a further -BrightnessZStep on
//     Z, when brightnessLevel > 1;
//  3. rasterized text overlays (already world-space);
//  4. grid-keyed spatial dedup at gridSize, keeping the first point per cell.
//
// The dedup is a lossy density reduction, not a merge: later points in a cell
// are dropped regardless of confidence. Collection requires the object's
// scale to be baked.
func CollectPoints(obj *cloud.Object, overlays []text.Overlay, brightnessLevel int, gridSize float64) ([]cloud.Point, error) {
	if !obj.Resampled {
		return nil, fmt.Errorf("%w: bake the scale before export", cloud.ErrNotResampled)
	}
	if gridSize <= 0 {
		gridSize = DefaultDedupGridSize
	}
	if brightnessLevel < 1 {
		brightnessLevel = 1
	}

	base := make([]cloud.Point, len(obj.Points))
	for i, p := range obj.Points {
		w := obj.WorldPoint(p)
		base[i] = cloud.Point{X: w.X, Y: w.Y, Z: w.Z, Confidence: p.Confidence}
	}

	merged := make([]cloud.Point, 0, len(base)*brightnessLevel)
	merged = append(merged, base...)
	for level := 1; level < brightnessLevel; level++ {
		offset := -BrightnessZStep * float64(level)
		for _, p := range base {
			p.Z += offset
			merged = append(merged, p)
		}
	}

	overlayPts, err := text.RasterizeAll(overlays, obj.PixelSpacing)
	if err != nil {
		return nil, fmt.Errorf("rasterize overlays: %w", err)
	}
	merged = append(merged, overlayPts...)

	return DedupOnGrid(merged, gridSize), nil
}

// DedupOnGrid thins points onto a uniform spatial grid keyed by the rounded
// cell coordinates, first point per cell wins.
func DedupOnGrid(points []cloud.Point, gridSize float64) []cloud.Point {
	type cell struct{ x, y, z int64 }
	seen := make(map[cell]struct{}, len(points))
	out := make([]cloud.Point, 0, len(points))
	for _, p := range points {
		k := cell{
			x: int64(math.Round(p.X / gridSize)),
			y: int64(math.Round(p.Y / gridSize)),
			z: int64(math.Round(p.Z / gridSize)),
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

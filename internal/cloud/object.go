// Package cloud models the engraving point cloud: reconstruction of points
// from depth/confidence grids, the transform state of the reconstructed
// object, and box clipping against the crystal fabrication volume.
package cloud

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptyResult means a reconstruction pass accepted zero cells.
	ErrEmptyResult = errors.New("reconstruction produced no points")
	// ErrNotResampled means a spatial operation ran while a live uniform
	// scale had not been baked into geometry yet.
	ErrNotResampled = errors.New("pending scale not resampled")
	// ErrEmptyClip means clipping removed every point.
	ErrEmptyClip = errors.New("clip produced no points")
)

// DefaultPixelSpacing is the fixed physical distance between adjacent
// unprojected grid cells, in engraving units.
const DefaultPixelSpacing = 0.07

// moveStepCells is how many grid cells one Move increment covers. The step is
// fixed so nudging is independent of the viewer's zoom.
const moveStepCells = 10

// Point is a single engraving point with its reconstruction confidence.
type Point struct {
	X, Y, Z    float64
	Confidence float64
}

// Object is a reconstructed point cloud plus its transform state. Scale is
// split three ways: UniformScale is the live user-adjustable factor,
// TransformScale is the per-axis gizmo factor, and SampledScale is whatever
// was last baked into grid resolution by a resample. The effective render
// scale on an axis is TransformScale*UniformScale/SampledScale.
type Object struct {
	Points []Point

	Position       r3.Vec
	UniformScale   float64
	TransformScale r3.Vec
	SampledScale   r3.Vec

	// PixelSpacing records the spacing the geometry was built with, so
	// movement steps stay proportional to point pitch.
	PixelSpacing float64

	// Resampled is false whenever UniformScale changed since the last bake.
	// Clip and export refuse to run until the scale is baked again.
	Resampled bool
}

// NewObject wraps points in an identity-transform object.
func NewObject(points []Point, pixelSpacing float64) *Object {
	if pixelSpacing <= 0 {
		pixelSpacing = DefaultPixelSpacing
	}
	return &Object{
		Points:         points,
		UniformScale:   1.0,
		TransformScale: r3.Vec{X: 1, Y: 1, Z: 1},
		SampledScale:   r3.Vec{X: 1, Y: 1, Z: 1},
		PixelSpacing:   pixelSpacing,
		Resampled:      true,
	}
}

// Clone deep-copies the object, geometry included.
func (o *Object) Clone() *Object {
	out := *o
	out.Points = make([]Point, len(o.Points))
	copy(out.Points, o.Points)
	return &out
}

// EffectiveScale returns the per-axis render scale.
func (o *Object) EffectiveScale() r3.Vec {
	return r3.Vec{
		X: o.TransformScale.X * o.UniformScale / o.SampledScale.X,
		Y: o.TransformScale.Y * o.UniformScale / o.SampledScale.Y,
		Z: o.TransformScale.Z * o.UniformScale / o.SampledScale.Z,
	}
}

// rotateX180 applies the fixed 180-degrees-about-X convention that matches
// the grid's unprojection orientation (image rows grow downward).
func rotateX180(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: -v.Y, Z: -v.Z}
}

// WorldPoint maps a local point through rotation, effective scale and
// translation into world space.
func (o *Object) WorldPoint(p Point) r3.Vec {
	v := rotateX180(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
	s := o.EffectiveScale()
	return r3.Vec{
		X: v.X*s.X + o.Position.X,
		Y: v.Y*s.Y + o.Position.Y,
		Z: v.Z*s.Z + o.Position.Z,
	}
}

// Move nudges the object by whole steps per axis. One step covers a fixed
// number of grid cells at the object's pixel spacing, independent of zoom.
func (o *Object) Move(dx, dy, dz float64) {
	step := moveStepCells * o.PixelSpacing
	o.Position = r3.Vec{
		X: o.Position.X + dx*step,
		Y: o.Position.Y + dy*step,
		Z: o.Position.Z + dz*step,
	}
}

// SetUniformScale updates the live scale factor. Geometry is untouched; the
// object is marked un-resampled until the scale is baked.
func (o *Object) SetUniformScale(s float64) {
	o.UniformScale = s
	o.Resampled = false
}

// SetTransformScale updates the per-axis gizmo scale. Unlike the uniform
// scale it is applied directly at render/export time and needs no bake.
func (o *Object) SetTransformScale(s r3.Vec) {
	o.TransformScale = s
}

// LocalBounds returns the min/max corners of the local-space geometry.
func (o *Object) LocalBounds() (min, max r3.Vec) {
	if len(o.Points) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	p0 := o.Points[0]
	min = r3.Vec{X: p0.X, Y: p0.Y, Z: p0.Z}
	max = min
	for _, p := range o.Points[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return min, max
}

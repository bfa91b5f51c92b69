package cloud

import (
	"fmt"
	"math"
)

// Box is the crystal fabrication volume, centered at the origin of the
// object's world frame. It is purely a clipping volume, never rendered.
type Box struct {
	Width, Height, Depth float64
}

// Contains reports whether a world-space position lies inside the box.
// Bounds are inclusive so a cloud clipped to its own extents survives intact.
func (b Box) Contains(x, y, z float64) bool {
	return math.Abs(x) <= b.Width/2 &&
		math.Abs(y) <= b.Height/2 &&
		math.Abs(z) <= b.Depth/2
}

// Clip removes every point whose world-space position falls outside the box
// and returns a rebuilt object. The source object is left untouched; transform
// metadata carries over to the result.
//
// Clipping requires the live scale to be baked (Resampled==true): comparing
// world positions against a physical volume is meaningless while an un-baked
// scale is pending, so ErrNotResampled is returned in that state. ErrEmptyClip
// is returned when nothing survives.
func Clip(o *Object, box Box) (*Object, error) {
	if !o.Resampled {
		return nil, fmt.Errorf("%w: bake the scale before clipping", ErrNotResampled)
	}

	kept := make([]Point, 0, len(o.Points))
	for _, p := range o.Points {
		w := o.WorldPoint(p)
		if box.Contains(w.X, w.Y, w.Z) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: box %.2fx%.2fx%.2f", ErrEmptyClip, box.Width, box.Height, box.Depth)
	}

	out := o.Clone()
	out.Points = kept
	return out, nil
}

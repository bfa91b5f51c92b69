package grid

import (
	"fmt"
	"math"
)

// BilinearResize interpolates g onto a targetW x targetH grid.
//
// Target cell (r, c) samples the source at (r*srcH/dstH, c*srcW/dstW); when
// that lands exactly on a source sample the sample's value is reproduced
// unchanged. The bottom/right neighbors are clamped at the grid edge, which
// degrades to nearest-neighbor on the last row and column.
func BilinearResize(g *Grid, targetW, targetH int) (*Grid, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("%w: invalid target %dx%d", ErrShapeMismatch, targetW, targetH)
	}
	out := New(targetW, targetH)
	scaleX := float64(g.W) / float64(targetW)
	scaleY := float64(g.H) / float64(targetH)

	for r := 0; r < targetH; r++ {
		sy := float64(r) * scaleY
		y0 := int(math.Floor(sy))
		if y0 > g.H-1 {
			y0 = g.H - 1
		}
		y1 := y0 + 1
		if y1 > g.H-1 {
			y1 = g.H - 1
		}
		fy := sy - float64(y0)

		for c := 0; c < targetW; c++ {
			sx := float64(c) * scaleX
			x0 := int(math.Floor(sx))
			if x0 > g.W-1 {
				x0 = g.W - 1
			}
			x1 := x0 + 1
			if x1 > g.W-1 {
				x1 = g.W - 1
			}
			fx := sx - float64(x0)

			v00 := g.At(y0, x0)
			v01 := g.At(y0, x1)
			v10 := g.At(y1, x0)
			v11 := g.At(y1, x1)

			top := v00*(1-fx) + v01*fx
			bottom := v10*(1-fx) + v11*fx
			out.Set(r, c, top*(1-fy)+bottom*fy)
		}
	}
	return out, nil
}

// NearestResizeMask scales a boolean mask by nearest-neighbor lookup. Direct
// mask scaling aliases visibly; it exists only as the fallback when the
// original source image is unavailable for re-dithering.
func NearestResizeMask(m *Mask, targetW, targetH int) (*Mask, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("%w: invalid target %dx%d", ErrShapeMismatch, targetW, targetH)
	}
	out := NewMask(targetW, targetH)
	for r := 0; r < targetH; r++ {
		sr := r * m.H / targetH
		if sr > m.H-1 {
			sr = m.H - 1
		}
		for c := 0; c < targetW; c++ {
			sc := c * m.W / targetW
			if sc > m.W-1 {
				sc = m.W - 1
			}
			out.Bits[r*targetW+c] = m.Bits[sr*m.W+sc]
		}
	}
	return out, nil
}

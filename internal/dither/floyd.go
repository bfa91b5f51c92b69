package dither

import (
	"github.com/banshee-data/crystal.engrave/internal/grid"
)

// FloydSteinbergMask builds an error-diffusion mask from a weight grid. Each
// cell is seeded with weight*density, swept row-major and thresholded at 0.5;
// the quantization error diffuses to the classic four neighbors with weights
// 7/16 (right), 3/16 (below-left), 5/16 (below) and 1/16 (below-right),
// clamped at the grid edges.
//
// For a uniform weight grid the retained-cell count converges on
// density*w*h, which is what makes density a meaningful knob.
func FloydSteinbergMask(weights *grid.Grid, density float64) *grid.Mask {
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	w, h := weights.W, weights.H

	buf := make([]float64, w*h)
	for i, v := range weights.Data {
		buf[i] = v * density
	}

	mask := grid.NewMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			old := buf[i]
			var quantErr float64
			if old >= 0.5 {
				mask.Bits[i] = 1
				quantErr = old - 1.0
			} else {
				quantErr = old
			}
			if x+1 < w {
				buf[i+1] += quantErr * 7.0 / 16.0
			}
			if y+1 < h {
				if x-1 >= 0 {
					buf[i+w-1] += quantErr * 3.0 / 16.0
				}
				buf[i+w] += quantErr * 5.0 / 16.0
				if x+1 < w {
					buf[i+w+1] += quantErr * 1.0 / 16.0
				}
			}
		}
	}
	return mask
}

// UniformMask returns a mask with every cell retained. Useful as the identity
// mask when the caller wants the full grid.
func UniformMask(w, h int) *grid.Mask {
	m := grid.NewMask(w, h)
	for i := range m.Bits {
		m.Bits[i] = 1
	}
	return m
}

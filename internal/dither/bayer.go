// Package dither generates boolean inclusion masks used to thin a dense grid
// down to a target point density. Two strategies are provided: ordered (Bayer)
// and error diffusion (Floyd–Steinberg). Both are pure functions of their
// inputs: identical arguments always produce identical masks.
package dither

import (
	"fmt"

	"github.com/banshee-data/crystal.engrave/internal/grid"
)

var bayer2 = [][]int{
	{0, 2},
	{3, 1},
}

var bayer4 = [][]int{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// bayer8 tiles four scaled copies of the 4x4 base, offset by the 2x2 pattern.
var bayer8 = func() [][]int {
	m := make([][]int, 8)
	for y := range m {
		m[y] = make([]int, 8)
	}
	for qy := 0; qy < 2; qy++ {
		for qx := 0; qx < 2; qx++ {
			offset := bayer2[qy][qx]
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					m[qy*4+y][qx*4+x] = 4*bayer4[y][x] + offset
				}
			}
		}
	}
	return m
}()

// BayerMask builds an ordered-dither mask of the given shape. n selects the
// threshold matrix size and must be 2, 4 or 8. A cell is retained when its
// tiled matrix threshold falls below floor(density*n*n).
func BayerMask(w, h int, density float64, n int) (*grid.Mask, error) {
	var matrix [][]int
	switch n {
	case 2:
		matrix = bayer2
	case 4:
		matrix = bayer4
	case 8:
		matrix = bayer8
	default:
		return nil, fmt.Errorf("bayer matrix size must be 2, 4 or 8, got %d", n)
	}
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	cutoff := int(density * float64(n*n))

	mask := grid.NewMask(w, h)
	for y := 0; y < h; y++ {
		row := matrix[y%n]
		for x := 0; x < w; x++ {
			if row[x%n] < cutoff {
				mask.Bits[y*w+x] = 1
			}
		}
	}
	return mask, nil
}

// Package grid holds the dense 2D numeric grids the reconstruction pipeline
// works over: depth, confidence and the boolean dither mask. Grids are stored
// as flat slices indexed row*W+col so they can be handed to the resampler and
// the project codec without reshaping.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch reports grids whose [height, width] shapes disagree, or a
// backing slice whose length does not match the declared shape.
var ErrShapeMismatch = errors.New("grid shape mismatch")

// Grid is a dense 2D float64 grid in row-major order.
type Grid struct {
	W, H int
	Data []float64
}

// New returns a zero-filled grid of the given shape.
func New(w, h int) *Grid {
	return &Grid{W: w, H: h, Data: make([]float64, w*h)}
}

// FromData wraps an existing row-major slice. The slice is owned by the grid
// after this call.
func FromData(w, h int, data []float64) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrShapeMismatch, w, h)
	}
	if len(data) != w*h {
		return nil, fmt.Errorf("%w: %d values for %dx%d grid", ErrShapeMismatch, len(data), w, h)
	}
	return &Grid{W: w, H: h, Data: data}, nil
}

// At returns the value at (row, col). Callers are expected to stay in bounds.
func (g *Grid) At(row, col int) float64 { return g.Data[row*g.W+col] }

// Set writes the value at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Data[row*g.W+col] = v }

// Idx converts (row, col) to the flat index.
func (g *Grid) Idx(row, col int) int { return row*g.W + col }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{W: g.W, H: g.H, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Mask is a dense 2D boolean grid in row-major order. A value of 1 means the
// cell is retained when subsampling.
type Mask struct {
	W, H int
	Bits []uint8
}

// NewMask returns an all-zero mask of the given shape.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Bits: make([]uint8, w*h)}
}

// MaskFromData wraps an existing row-major slice as a mask. Nonzero input
// values are normalized to 1.
func MaskFromData(w, h int, data []uint8) (*Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrShapeMismatch, w, h)
	}
	if len(data) != w*h {
		return nil, fmt.Errorf("%w: %d values for %dx%d mask", ErrShapeMismatch, len(data), w, h)
	}
	for i, v := range data {
		if v > 1 {
			data[i] = 1
		}
	}
	return &Mask{W: w, H: h, Bits: data}, nil
}

// On reports whether the cell at (row, col) is retained.
func (m *Mask) On(row, col int) bool { return m.Bits[row*m.W+col] != 0 }

// Set marks the cell at (row, col).
func (m *Mask) Set(row, col int, on bool) {
	if on {
		m.Bits[row*m.W+col] = 1
	} else {
		m.Bits[row*m.W+col] = 0
	}
}

// Count returns the number of retained cells.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{W: m.W, H: m.H, Bits: make([]uint8, len(m.Bits))}
	copy(out.Bits, m.Bits)
	return out
}

// CheckShapes verifies that depth, confidence and mask share one shape.
func CheckShapes(depth, confidence *Grid, mask *Mask) error {
	if depth.W != confidence.W || depth.H != confidence.H {
		return fmt.Errorf("%w: depth %dx%d vs confidence %dx%d",
			ErrShapeMismatch, depth.W, depth.H, confidence.W, confidence.H)
	}
	if mask != nil && (depth.W != mask.W || depth.H != mask.H) {
		return fmt.Errorf("%w: depth %dx%d vs mask %dx%d",
			ErrShapeMismatch, depth.W, depth.H, mask.W, mask.H)
	}
	return nil
}

// NormalizeConfidence maps confidence values into [0,1]. If every value is
// already in range the grid is returned untouched and the second result is
// false; otherwise a sigmoid is applied to the whole grid. Normalization is
// all-or-nothing so a grid is never half raw, half squashed.
func NormalizeConfidence(g *Grid) (*Grid, bool) {
	inRange := true
	for _, v := range g.Data {
		if v < 0 || v > 1 {
			inRange = false
			break
		}
	}
	if inRange {
		return g, false
	}
	out := New(g.W, g.H)
	for i, v := range g.Data {
		out.Data[i] = 1.0 / (1.0 + math.Exp(-v))
	}
	return out, true
}

// Package text rasterizes text overlays into engraving points. An overlay is
// rendered with an OpenType face into an alpha mask, and every inked pixel
// becomes one point at the engraving pitch. Overlay points live in world
// space and are merged at export time only; they never join the primary
// point cloud object.
package text

import (
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
)

// Overlay is an independently-owned text label.
type Overlay struct {
	Value    string  `json:"value"`
	Font     string  `json:"font"`
	Size     float64 `json:"size"` // glyph height in engraving units
	Position r3.Vec  `json:"position"`
	Color    string  `json:"color"`
}

// alphaThreshold is the coverage above which a rasterized pixel emits a point.
const alphaThreshold = 0x80

var (
	registryMu sync.Mutex
	registry   = map[string][]byte{}

	fallbackOnce sync.Once
	fallbackFont *opentype.Font
	fallbackErr  error
)

// RegisterFont makes a TTF/OTF blob available under a name. Overlays naming
// an unregistered font fall back to the bundled Go Regular face.
func RegisterFont(name string, data []byte) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = data
}

func parsedFont(name string) (*opentype.Font, error) {
	registryMu.Lock()
	data, ok := registry[name]
	registryMu.Unlock()
	if ok {
		return opentype.Parse(data)
	}
	fallbackOnce.Do(func() {
		fallbackFont, fallbackErr = opentype.Parse(goregular.TTF)
	})
	return fallbackFont, fallbackErr
}

// Rasterize converts an overlay into points at the given pitch. The overlay
// is drawn at a pixel size of Size/spacing so that one inked pixel maps to
// one point and the rendered glyph height lands close to Size units. The
// string is centered horizontally on the overlay position.
func Rasterize(o Overlay, spacing float64) ([]cloud.Point, error) {
	if o.Value == "" {
		return nil, nil
	}
	if spacing <= 0 {
		spacing = cloud.DefaultPixelSpacing
	}
	size := o.Size
	if size <= 0 {
		size = 1.0
	}

	pixels := math.Round(size / spacing)
	if pixels < 8 {
		pixels = 8
	}

	f, err := parsedFont(o.Font)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    pixels,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build face: %w", err)
	}
	defer face.Close()

	bounds, advance := font.BoundString(face, o.Value)
	w := (bounds.Max.X - bounds.Min.X).Ceil() + 2
	h := (bounds.Max.Y - bounds.Min.Y).Ceil() + 2
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: -bounds.Min.X + 64, Y: -bounds.Min.Y + 64},
	}
	drawer.DrawString(o.Value)

	halfW := float64(advance.Ceil()) / 2.0
	pitch := spacing
	pts := make([]cloud.Point, 0, w*h/4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if dst.AlphaAt(x, y).A < alphaThreshold {
				continue
			}
			// Image rows grow downward; flip into the engraving frame.
			pts = append(pts, cloud.Point{
				X:          o.Position.X + (float64(x)-halfW)*pitch,
				Y:          o.Position.Y + float64(h-1-y)*pitch,
				Z:          o.Position.Z,
				Confidence: 1.0,
			})
		}
	}
	return pts, nil
}

// RasterizeAll flattens a set of overlays into one point list.
func RasterizeAll(overlays []Overlay, spacing float64) ([]cloud.Point, error) {
	var out []cloud.Point
	for i, o := range overlays {
		pts, err := Rasterize(o, spacing)
		if err != nil {
			return nil, fmt.Errorf("overlay %d (%q): %w", i, o.Value, err)
		}
		out = append(out, pts...)
	}
	return out, nil
}

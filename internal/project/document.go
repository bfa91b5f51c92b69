package project

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/grid"
	"github.com/banshee-data/crystal.engrave/internal/monitoring"
	"github.com/banshee-data/crystal.engrave/internal/text"
)

// Version is the current project document version.
const Version = 1

// ErrInvalidProjectVersion is a soft error: imports of documents with an
// unknown version log it and proceed best-effort.
var ErrInvalidProjectVersion = errors.New("unknown project version")

// Settings holds the UI-facing knobs a project restores on load.
type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	DitherDensity       float64 `json:"dither_density"`
	InvertDither        bool    `json:"invert_dither"`
	BrightnessLevel     int     `json:"brightness_level"`
	DedupGridSize       float64 `json:"dedup_grid_size"`
}

// TransformState snapshots the object's transform split.
type TransformState struct {
	Position       [3]float64 `json:"position"`
	UniformScale   float64    `json:"uniform_scale"`
	TransformScale [3]float64 `json:"transform_scale"`
	SampledScale   [3]float64 `json:"sampled_scale"`
	PixelSpacing   float64    `json:"pixel_spacing"`
	Resampled      bool       `json:"resampled"`
}

// GridPayload is a serialized float grid.
type GridPayload struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Data   Float32Array `json:"data"`
}

// MaskPayload is a serialized boolean grid.
type MaskPayload struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Bits   Uint8Array `json:"bits"`
}

// GeometryPayload is the current point cloud snapshot: interleaved xyz plus
// a parallel confidence buffer.
type GeometryPayload struct {
	Positions   Float32Array `json:"positions"`
	Confidences Float32Array `json:"confidences"`
	PointCount  int          `json:"point_count"`
}

// Document is the serializable project envelope.
type Document struct {
	Version   int            `json:"version"`
	Settings  Settings       `json:"settings"`
	Transform TransformState `json:"transform"`

	// Original grids retained for future resampling and reset.
	OriginalDepth      *GridPayload `json:"original_depth,omitempty"`
	OriginalConfidence *GridPayload `json:"original_confidence,omitempty"`
	OriginalMask       *MaskPayload `json:"original_mask,omitempty"`

	Geometry *GeometryPayload `json:"geometry,omitempty"`

	Overlays []text.Overlay `json:"overlays,omitempty"`

	// SourceImage is a base64 data URI when the source image was available at
	// export time. Absence degrades gracefully: re-dithering from source
	// becomes unavailable until the user re-supplies the file.
	SourceImage string `json:"source_image,omitempty"`

	// EditedImage survives only as a metadata tag; its bytes do not round-trip.
	EditedImage *BlobRef `json:"edited_image,omitempty"`
}

// CheckVersion validates a document version. Unknown versions are soft
// failures by design.
func CheckVersion(v int) error {
	if v != Version {
		return fmt.Errorf("%w: %d (current %d)", ErrInvalidProjectVersion, v, Version)
	}
	return nil
}

// Encode marshals the document, stamping the current version.
func Encode(doc *Document) ([]byte, error) {
	doc.Version = Version
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return out, nil
}

// Decode unmarshals a project document. A version mismatch is logged and
// decoding proceeds best-effort; only malformed JSON is a hard failure.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := CheckVersion(doc.Version); err != nil {
		monitoring.Logf("project: %v; importing best-effort", err)
	}
	return &doc, nil
}

// GridToPayload converts a grid for serialization. Values narrow to float32,
// matching the typed-array identity the wire format preserves.
func GridToPayload(g *grid.Grid) *GridPayload {
	if g == nil {
		return nil
	}
	data := make(Float32Array, len(g.Data))
	for i, v := range g.Data {
		data[i] = float32(v)
	}
	return &GridPayload{Width: g.W, Height: g.H, Data: data}
}

// PayloadToGrid restores a serialized grid.
func PayloadToGrid(p *GridPayload) (*grid.Grid, error) {
	if p == nil {
		return nil, nil
	}
	data := make([]float64, len(p.Data))
	for i, v := range p.Data {
		data[i] = float64(v)
	}
	return grid.FromData(p.Width, p.Height, data)
}

// MaskToPayload converts a mask for serialization.
func MaskToPayload(m *grid.Mask) *MaskPayload {
	if m == nil {
		return nil
	}
	bits := make(Uint8Array, len(m.Bits))
	copy(bits, m.Bits)
	return &MaskPayload{Width: m.W, Height: m.H, Bits: bits}
}

// PayloadToMask restores a serialized mask.
func PayloadToMask(p *MaskPayload) (*grid.Mask, error) {
	if p == nil {
		return nil, nil
	}
	bits := make([]uint8, len(p.Bits))
	copy(bits, p.Bits)
	return grid.MaskFromData(p.Width, p.Height, bits)
}

// ObjectToPayloads splits an object into its transform state and geometry
// snapshot.
func ObjectToPayloads(o *cloud.Object) (TransformState, *GeometryPayload) {
	ts := TransformState{
		Position:       [3]float64{o.Position.X, o.Position.Y, o.Position.Z},
		UniformScale:   o.UniformScale,
		TransformScale: [3]float64{o.TransformScale.X, o.TransformScale.Y, o.TransformScale.Z},
		SampledScale:   [3]float64{o.SampledScale.X, o.SampledScale.Y, o.SampledScale.Z},
		PixelSpacing:   o.PixelSpacing,
		Resampled:      o.Resampled,
	}
	geo := &GeometryPayload{
		Positions:   make(Float32Array, 0, len(o.Points)*3),
		Confidences: make(Float32Array, 0, len(o.Points)),
		PointCount:  len(o.Points),
	}
	for _, p := range o.Points {
		geo.Positions = append(geo.Positions, float32(p.X), float32(p.Y), float32(p.Z))
		geo.Confidences = append(geo.Confidences, float32(p.Confidence))
	}
	return ts, geo
}

// PayloadsToObject rebuilds an object from its serialized halves.
func PayloadsToObject(ts TransformState, geo *GeometryPayload) (*cloud.Object, error) {
	var points []cloud.Point
	if geo != nil {
		if len(geo.Positions) != geo.PointCount*3 {
			return nil, fmt.Errorf("geometry payload: %d position values for %d points", len(geo.Positions), geo.PointCount)
		}
		if len(geo.Confidences) != geo.PointCount {
			return nil, fmt.Errorf("geometry payload: %d confidences for %d points", len(geo.Confidences), geo.PointCount)
		}
		points = make([]cloud.Point, geo.PointCount)
		for i := range points {
			points[i] = cloud.Point{
				X:          float64(geo.Positions[i*3]),
				Y:          float64(geo.Positions[i*3+1]),
				Z:          float64(geo.Positions[i*3+2]),
				Confidence: float64(geo.Confidences[i]),
			}
		}
	}
	obj := cloud.NewObject(points, ts.PixelSpacing)
	obj.Position.X, obj.Position.Y, obj.Position.Z = ts.Position[0], ts.Position[1], ts.Position[2]
	obj.UniformScale = ts.UniformScale
	if obj.UniformScale == 0 {
		obj.UniformScale = 1
	}
	obj.TransformScale.X, obj.TransformScale.Y, obj.TransformScale.Z = ts.TransformScale[0], ts.TransformScale[1], ts.TransformScale[2]
	if obj.TransformScale.X == 0 {
		obj.TransformScale.X, obj.TransformScale.Y, obj.TransformScale.Z = 1, 1, 1
	}
	obj.SampledScale.X, obj.SampledScale.Y, obj.SampledScale.Z = ts.SampledScale[0], ts.SampledScale[1], ts.SampledScale[2]
	if obj.SampledScale.X == 0 {
		obj.SampledScale.X, obj.SampledScale.Y, obj.SampledScale.Z = 1, 1, 1
	}
	obj.Resampled = ts.Resampled
	return obj, nil
}

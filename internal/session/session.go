// Package session owns one editing session end to end: the immutable
// original grids, the live point cloud object, undo history, text overlays
// and the tuning configuration. Collaborators (depth service client, project
// store) are injected at construction; there is no ambient global state.
//
// Mutating operations are synchronous and all-or-nothing: they either
// install a fully valid new state or leave the previous state untouched and
// return a typed error. Callers are expected to serialize edits; the session
// performs no internal locking.
package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/config"
	"github.com/banshee-data/crystal.engrave/internal/depthapi"
	"github.com/banshee-data/crystal.engrave/internal/grid"
	"github.com/banshee-data/crystal.engrave/internal/history"
	"github.com/banshee-data/crystal.engrave/internal/monitoring"
	"github.com/banshee-data/crystal.engrave/internal/projectstore"
	"github.com/banshee-data/crystal.engrave/internal/resample"
	"github.com/banshee-data/crystal.engrave/internal/text"
)

// Session is one editing session. Zero or one point cloud object is live at
// a time; capturing new grids replaces it and invalidates history.
type Session struct {
	cfg    *config.TuningConfig
	client *depthapi.Client
	store  *projectstore.Store

	original *resample.Original

	// Grids the current geometry was built from (original or resampled).
	curDepth      *grid.Grid
	curConfidence *grid.Grid
	curMask       *grid.Mask

	object  *cloud.Object
	cache   *cloud.Cache
	history *history.Manager

	overlays  []text.Overlay
	threshold float64

	// Raw source image bytes, kept for project embedding.
	sourceImageRaw []byte

	intrinsics []float64

	// transformTarget is the one-directional reference held by the
	// transform-edit surface; see Attach/Detach.
	transformTarget *cloud.Object
}

// New builds a session. client and store may be nil when the corresponding
// features (remote capture, saved projects) are not wired.
func New(cfg *config.TuningConfig, client *depthapi.Client, store *projectstore.Store) *Session {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Session{
		cfg:       cfg,
		client:    client,
		store:     store,
		history:   history.NewManager(cfg.GetHistoryCapacity()),
		threshold: cfg.GetConfidenceThreshold(),
	}
}

// Object returns the live point cloud object, nil before any capture.
func (s *Session) Object() *cloud.Object { return s.object }

// Threshold returns the active confidence threshold.
func (s *Session) Threshold() float64 { return s.threshold }

// Overlays returns the session's text overlays.
func (s *Session) Overlays() []text.Overlay { return s.overlays }

// AddOverlay appends a text overlay.
func (s *Session) AddOverlay(o text.Overlay) { s.overlays = append(s.overlays, o) }

// RemoveOverlay drops the overlay at index i, ignoring out-of-range indexes.
func (s *Session) RemoveOverlay(i int) {
	if i < 0 || i >= len(s.overlays) {
		return
	}
	s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
}

// Intrinsics returns the camera intrinsics delivered with the last service
// capture, nil otherwise. They do not affect the spatial mapping.
func (s *Session) Intrinsics() []float64 { return s.intrinsics }

// CaptureGrids replaces the session's original data with fresh grids and
// reconstructs the point cloud. Any existing history is invalidated: its
// snapshots reference geometry from a superseded session.
func (s *Session) CaptureGrids(depth, confidence *grid.Grid, mask *grid.Mask, intrinsics []float64) error {
	if err := grid.CheckShapes(depth, confidence, mask); err != nil {
		return err
	}
	normalized, applied := grid.NormalizeConfidence(confidence)
	if applied {
		monitoring.Logf("session: confidence outside [0,1], sigmoid normalization applied")
	}

	obj, cache, err := s.reconstruct(depth, normalized, mask, 1.0)
	if err != nil {
		return err
	}

	s.original = &resample.Original{
		Depth:      depth,
		Confidence: normalized,
		Mask:       mask,
		Density:    s.cfg.GetDitherDensity(),
		Invert:     s.cfg.GetInvertDither(),
	}
	s.curDepth, s.curConfidence, s.curMask = depth, normalized, mask
	s.object, s.cache = obj, cache
	s.intrinsics = intrinsics
	s.history.Clear()
	s.history.Commit(obj)
	return nil
}

// CaptureFromService uploads an image to the depth-estimation service,
// fetches the numeric payload and builds the point cloud. The build only
// runs once both calls have completed; the cleanup call is fired after the
// build and never blocks the result.
func (s *Session) CaptureFromService(ctx context.Context, imageBytes []byte) error {
	if s.client == nil {
		return fmt.Errorf("no depth service client configured")
	}
	fileID, err := s.client.Upload(ctx, imageBytes)
	if err != nil {
		return err
	}
	bundle, err := s.client.Fetch(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.CaptureGrids(bundle.Depth, bundle.Confidence, bundle.Mask, bundle.Intrinsics); err != nil {
		return err
	}
	s.SetSourceImage(imageBytes)
	s.client.Cleanup(fileID)
	return nil
}

// SetSourceImage records the source image for project embedding and, when
// decodable, for mask regeneration during resampling.
func (s *Session) SetSourceImage(raw []byte) {
	s.sourceImageRaw = raw
	if s.original == nil || len(raw) == 0 {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		monitoring.Logf("session: source image not decodable, mask re-dither unavailable: %v", err)
		return
	}
	s.original.SourceImage = img
}

// SetThreshold re-filters the point cloud from the candidate cache at a new
// confidence threshold. No grid re-scan runs; the edit is committed to
// history on success.
func (s *Session) SetThreshold(threshold float64) error {
	if s.object == nil || s.cache == nil {
		return resample.ErrNoOriginalData
	}
	points, err := s.cache.Refilter(threshold)
	if err != nil {
		return err
	}
	obj := s.object.Clone()
	obj.Points = points
	s.object = obj
	s.threshold = threshold
	s.history.Commit(obj)
	return nil
}

// SetUniformScale updates the live scale. Geometry is untouched and no
// snapshot is taken: the scale only becomes a committed edit when baked.
func (s *Session) SetUniformScale(scale float64) error {
	if s.object == nil {
		return resample.ErrNoOriginalData
	}
	s.object.SetUniformScale(scale)
	return nil
}

// Move nudges the object by whole steps per axis and commits the edit.
func (s *Session) Move(dx, dy, dz float64) error {
	if s.object == nil {
		return resample.ErrNoOriginalData
	}
	s.object.Move(dx, dy, dz)
	s.history.Commit(s.object)
	return nil
}

// CommitScale bakes the pending uniform scale into grid resolution. The new
// sampled scale is cumulative: baking 2x then 1.5x resamples the originals
// at 3x. A no-op when the scale is already baked.
func (s *Session) CommitScale() error {
	if s.object == nil {
		return resample.ErrNoOriginalData
	}
	if s.object.Resampled {
		return nil
	}
	u := s.object.UniformScale
	pending := r3.Vec{
		X: s.object.SampledScale.X * u,
		Y: s.object.SampledScale.Y * u,
		Z: s.object.SampledScale.Z * u,
	}
	res, err := resample.Run(s.original, s.object, pending, s.threshold, cloud.Options{
		PixelSpacing: s.cfg.GetPixelSpacing(),
	})
	if err != nil {
		return err
	}
	if !res.UsedSourceImage && s.original.SourceImage == nil {
		monitoring.Logf("session: resample fell back to nearest-neighbor mask scaling")
	}
	s.object = res.Object
	s.cache = res.Cache
	s.curDepth, s.curConfidence, s.curMask = res.Depth, res.Confidence, res.Mask
	s.history.Commit(res.Object)
	return nil
}

// Clip removes points outside the crystal volume and commits the edit.
func (s *Session) Clip(box cloud.Box) error {
	if s.object == nil {
		return resample.ErrNoOriginalData
	}
	out, err := cloud.Clip(s.object, box)
	if err != nil {
		return err
	}
	s.object = out
	s.history.Commit(out)
	return nil
}

// Undo restores the previous snapshot.
func (s *Session) Undo() error {
	snap, err := s.history.Undo()
	if err != nil {
		return err
	}
	s.object = snap
	return nil
}

// Reset rebuilds the point cloud from the session's original grids and
// discards all history. This is the one escape hatch after a run of
// destructive edits.
func (s *Session) Reset() error {
	if !s.original.Valid() {
		return resample.ErrNoOriginalData
	}
	obj, cache, err := s.reconstruct(s.original.Depth, s.original.Confidence, s.original.Mask, 1.0)
	if err != nil {
		return err
	}
	s.object, s.cache = obj, cache
	s.curDepth, s.curConfidence, s.curMask = s.original.Depth, s.original.Confidence, s.original.Mask
	s.history.Clear()
	s.history.Commit(obj)
	return nil
}

func (s *Session) reconstruct(depth, confidence *grid.Grid, mask *grid.Mask, depthScale float64) (*cloud.Object, *cloud.Cache, error) {
	var intr *cloud.Intrinsics
	if len(s.intrinsics) == 9 {
		if in, err := cloud.IntrinsicsFromMatrix(s.intrinsics); err == nil {
			intr = &in
		}
	}
	return cloud.Reconstruct(depth, confidence, mask, s.threshold, cloud.Options{
		PixelSpacing: s.cfg.GetPixelSpacing(),
		DepthScale:   depthScale,
		Intrinsics:   intr,
	})
}

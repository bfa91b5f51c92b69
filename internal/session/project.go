package session

import (
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/crystal.engrave/internal/export"
	"github.com/banshee-data/crystal.engrave/internal/project"
	"github.com/banshee-data/crystal.engrave/internal/projectstore"
	"github.com/banshee-data/crystal.engrave/internal/resample"
)

// ExportVector writes the session's point cloud as DXF point entities.
// Brightness duplication, overlay merging and spatial dedup run first; the
// object's scale must be baked.
func (s *Session) ExportVector(w io.Writer) error {
	if s.object == nil {
		return resample.ErrNoOriginalData
	}
	points, err := export.CollectPoints(s.object, s.overlays, s.cfg.GetBrightnessLevel(), s.cfg.GetDedupGridSize())
	if err != nil {
		return err
	}
	return export.WriteDXF(w, points)
}

// SaveProject serializes the whole session to a project document: original
// grids, current geometry and transform, overlays, settings and the source
// image when one was supplied.
func (s *Session) SaveProject() ([]byte, error) {
	if s.object == nil {
		return nil, resample.ErrNoOriginalData
	}
	doc := &project.Document{
		Settings: project.Settings{
			ConfidenceThreshold: s.threshold,
			DitherDensity:       s.cfg.GetDitherDensity(),
			InvertDither:        s.cfg.GetInvertDither(),
			BrightnessLevel:     s.cfg.GetBrightnessLevel(),
			DedupGridSize:       s.cfg.GetDedupGridSize(),
		},
		Overlays: s.overlays,
	}
	doc.Transform, doc.Geometry = project.ObjectToPayloads(s.object)
	if s.original != nil {
		doc.OriginalDepth = project.GridToPayload(s.original.Depth)
		doc.OriginalConfidence = project.GridToPayload(s.original.Confidence)
		doc.OriginalMask = project.MaskToPayload(s.original.Mask)
	}
	if len(s.sourceImageRaw) > 0 {
		doc.SourceImage = project.EncodeDataURI(http.DetectContentType(s.sourceImageRaw), s.sourceImageRaw)
	}
	return project.Encode(doc)
}

// LoadProject restores session state from a project document. Existing state
// is replaced wholesale and history starts over from the loaded snapshot.
func (s *Session) LoadProject(data []byte) error {
	doc, err := project.Decode(data)
	if err != nil {
		return err
	}
	depth, err := project.PayloadToGrid(doc.OriginalDepth)
	if err != nil {
		return fmt.Errorf("restore depth: %w", err)
	}
	confidence, err := project.PayloadToGrid(doc.OriginalConfidence)
	if err != nil {
		return fmt.Errorf("restore confidence: %w", err)
	}
	mask, err := project.PayloadToMask(doc.OriginalMask)
	if err != nil {
		return fmt.Errorf("restore mask: %w", err)
	}
	obj, err := project.PayloadsToObject(doc.Transform, doc.Geometry)
	if err != nil {
		return err
	}

	s.threshold = doc.Settings.ConfidenceThreshold
	s.overlays = doc.Overlays
	s.object = obj
	s.cache = nil
	s.curDepth, s.curConfidence, s.curMask = depth, confidence, mask
	s.original = nil
	s.sourceImageRaw = nil
	if depth != nil && confidence != nil && mask != nil {
		s.original = &resample.Original{
			Depth:      depth,
			Confidence: confidence,
			Mask:       mask,
			Density:    doc.Settings.DitherDensity,
			Invert:     doc.Settings.InvertDither,
		}
	}
	if doc.SourceImage != "" {
		_, raw, err := project.DecodeDataURI(doc.SourceImage)
		if err != nil {
			return fmt.Errorf("restore source image: %w", err)
		}
		s.SetSourceImage(raw)
	}
	s.history.Clear()
	s.history.Commit(obj)
	return nil
}

// SaveToStore persists the current session as a named project and returns
// its id.
func (s *Session) SaveToStore(name string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("no project store configured")
	}
	doc, err := s.SaveProject()
	if err != nil {
		return "", err
	}
	p := &projectstore.SavedProject{Name: name, Document: doc}
	if err := s.store.Insert(p); err != nil {
		return "", err
	}
	return p.ProjectID, nil
}

// LoadFromStore restores a stored project into the session.
func (s *Session) LoadFromStore(projectID string) error {
	if s.store == nil {
		return fmt.Errorf("no project store configured")
	}
	p, err := s.store.Get(projectID)
	if err != nil {
		return err
	}
	return s.LoadProject(p.Document)
}

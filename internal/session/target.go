package session

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoTransformTarget means a gizmo edit ran with nothing attached.
var ErrNoTransformTarget = errors.New("no transform target attached")

// AttachTransformTarget points the gizmo at the live object. The reference
// runs one way only: the object never knows whether a gizmo holds it, so
// replacing the object (capture, resample, undo) just leaves a stale target
// behind for the caller to re-attach.
func (s *Session) AttachTransformTarget() error {
	if s.object == nil {
		return ErrNoTransformTarget
	}
	s.transformTarget = s.object
	return nil
}

// DetachTransformTarget clears the gizmo reference.
func (s *Session) DetachTransformTarget() { s.transformTarget = nil }

// TransformTargetAttached reports whether the gizmo currently holds the live
// object. A target left over from a replaced object counts as detached.
func (s *Session) TransformTargetAttached() bool {
	return s.transformTarget != nil && s.transformTarget == s.object
}

// SetTransformScale applies a per-axis gizmo scale to the attached target
// and commits the edit.
func (s *Session) SetTransformScale(scale r3.Vec) error {
	if !s.TransformTargetAttached() {
		return ErrNoTransformTarget
	}
	s.transformTarget.SetTransformScale(scale)
	s.history.Commit(s.object)
	return nil
}

// Package history provides a bounded, snapshot-based undo stack over point
// cloud objects. Snapshots are deep copies: geometry edits after a commit
// never leak into stored history.
package history

import (
	"errors"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
)

// ErrNoHistory means undo was attempted past the oldest snapshot.
var ErrNoHistory = errors.New("no earlier history")

// DefaultCapacity bounds the stack; the oldest snapshot is evicted on
// overflow.
const DefaultCapacity = 50

// Manager is a linear undo stack with a cursor. Commits after an undo
// truncate the forward entries, matching the usual editor model.
//
// The cursor indexes the snapshot representing current state; undo steps it
// back and returns that earlier snapshot for the caller to splice in.
type Manager struct {
	snapshots []*cloud.Object
	cursor    int // index of the snapshot for current state; -1 when empty
	capacity  int
}

// NewManager builds a manager with the given capacity; values below 1 select
// DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Manager{cursor: -1, capacity: capacity}
}

// Len returns the number of stored snapshots.
func (m *Manager) Len() int { return len(m.snapshots) }

// CanUndo reports whether an earlier snapshot exists.
func (m *Manager) CanUndo() bool { return m.cursor > 0 }

// Commit deep-copies the object, drops any forward history beyond the
// cursor, appends the snapshot and advances. When capacity is exceeded the
// oldest snapshot is evicted and the cursor compensates.
func (m *Manager) Commit(obj *cloud.Object) {
	if m.cursor < len(m.snapshots)-1 {
		m.snapshots = m.snapshots[:m.cursor+1]
	}
	m.snapshots = append(m.snapshots, obj.Clone())
	m.cursor++

	if len(m.snapshots) > m.capacity {
		over := len(m.snapshots) - m.capacity
		m.snapshots = m.snapshots[over:]
		m.cursor -= over
	}
}

// Undo steps the cursor back and returns a copy of the snapshot there. The
// copy keeps the stored snapshot immune to later edits by the caller.
func (m *Manager) Undo() (*cloud.Object, error) {
	if m.cursor <= 0 {
		return nil, ErrNoHistory
	}
	m.cursor--
	return m.snapshots[m.cursor].Clone(), nil
}

// Clear drops all history. Used when the original grids are replaced: old
// snapshots reference geometry from a superseded session and must not be
// restorable.
func (m *Manager) Clear() {
	m.snapshots = nil
	m.cursor = -1
}

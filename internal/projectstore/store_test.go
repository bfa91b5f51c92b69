package projectstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)

	p := &SavedProject{Name: "giraffe crystal", Document: []byte(`{"version":1}`)}
	require.NoError(t, s.Insert(p))
	require.NotEmpty(t, p.ProjectID, "insert should assign a UUID")

	got, err := s.Get(p.ProjectID)
	require.NoError(t, err)
	require.Equal(t, "giraffe crystal", got.Name)
	require.Equal(t, []byte(`{"version":1}`), got.Document)
	require.NotZero(t, got.CreatedAtNs)
	require.Nil(t, got.UpdatedAtNs)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("no-such-id")
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestUpdate(t *testing.T) {
	s := openTestStore(t)
	p := &SavedProject{Name: "draft", Document: []byte(`{"version":1}`)}
	require.NoError(t, s.Insert(p))

	require.NoError(t, s.Update(p.ProjectID, []byte(`{"version":1,"edited":true}`)))

	got, err := s.Get(p.ProjectID)
	require.NoError(t, err)
	require.Contains(t, string(got.Document), "edited")
	require.NotNil(t, got.UpdatedAtNs)

	err = s.Update("missing", []byte(`{}`))
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestListOrdersByRecency(t *testing.T) {
	s := openTestStore(t)

	a := &SavedProject{Name: "older", Document: []byte(`{}`), CreatedAtNs: 100}
	b := &SavedProject{Name: "newer", Document: []byte(`{}`), CreatedAtNs: 200}
	require.NoError(t, s.Insert(a))
	require.NoError(t, s.Insert(b))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "newer", list[0].Name)
	require.Empty(t, list[0].Document, "list should not load documents")

	// Touching the older project moves it to the front.
	require.NoError(t, s.Update(a.ProjectID, []byte(`{"v":2}`)))
	list, err = s.List()
	require.NoError(t, err)
	require.Equal(t, "older", list[0].Name)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	p := &SavedProject{Name: "discard", Document: []byte(`{}`)}
	require.NoError(t, s.Insert(p))
	require.NoError(t, s.Delete(p.ProjectID))

	_, err := s.Get(p.ProjectID)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	err = s.Delete(p.ProjectID)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs migrations again; ErrNoChange must be swallowed.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

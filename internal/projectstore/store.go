// Package projectstore persists saved project documents in SQLite so the
// application can offer a recents list and autosave slots. Documents are
// stored as the encoded project JSON; this package does not interpret them.
package projectstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound means no project exists under the requested id.
var ErrNotFound = errors.New("project not found")

// SavedProject is one stored project row.
type SavedProject struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Document    []byte `json:"-"`
	CreatedAtNs int64  `json:"created_at_ns"`
	UpdatedAtNs *int64 `json:"updated_at_ns,omitempty"`
}

// Store provides persistence for saved projects.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open project store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Insert stores a new project document. If p.ProjectID is empty a UUID is
// generated.
func (s *Store) Insert(p *SavedProject) error {
	if p.ProjectID == "" {
		p.ProjectID = uuid.New().String()
	}
	if p.CreatedAtNs == 0 {
		p.CreatedAtNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO projects (project_id, name, document, created_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?)`,
		p.ProjectID, p.Name, string(p.Document), p.CreatedAtNs, p.UpdatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Get retrieves a project by id, document included.
func (s *Store) Get(projectID string) (*SavedProject, error) {
	row := s.db.QueryRow(`
		SELECT project_id, name, document, created_at_ns, updated_at_ns
		FROM projects WHERE project_id = ?`, projectID)

	var p SavedProject
	var doc string
	var updated sql.NullInt64
	err := row.Scan(&p.ProjectID, &p.Name, &doc, &p.CreatedAtNs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Document = []byte(doc)
	if updated.Valid {
		p.UpdatedAtNs = &updated.Int64
	}
	return &p, nil
}

// Update replaces a project's document and bumps its update time.
func (s *Store) Update(projectID string, document []byte) error {
	now := time.Now().UnixNano()
	res, err := s.db.Exec(`
		UPDATE projects SET document = ?, updated_at_ns = ? WHERE project_id = ?`,
		string(document), now, projectID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return nil
}

// List returns project metadata (no documents), most recently touched first.
func (s *Store) List() ([]SavedProject, error) {
	rows, err := s.db.Query(`
		SELECT project_id, name, created_at_ns, updated_at_ns
		FROM projects
		ORDER BY COALESCE(updated_at_ns, created_at_ns) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []SavedProject
	for rows.Next() {
		var p SavedProject
		var updated sql.NullInt64
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.CreatedAtNs, &updated); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if updated.Valid {
			p.UpdatedAtNs = &updated.Int64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a project.
func (s *Store) Delete(projectID string) error {
	res, err := s.db.Exec(`DELETE FROM projects WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/usageledger/ports"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ProjectStore implements ports.ProjectStore using SQLite.
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new SQLite project store.
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, id string) (ports.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM projects WHERE id = ?
	`, id)

	var p ports.Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Project{}, ErrNotFound
	}
	if err != nil {
		return ports.Project{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return ports.Project{}, err
	}
	return p, nil
}

// Create stores a new project.
func (s *ProjectStore) Create(ctx context.Context, p ports.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
	`, p.ID, p.Name, formatTime(p.CreatedAt))
	return err
}

// List returns all projects.
func (s *ProjectStore) List(ctx context.Context) ([]ports.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM projects ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []ports.Project
	for rows.Next() {
		var p ports.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Ensure interface compliance.
var _ ports.ProjectStore = (*ProjectStore)(nil)

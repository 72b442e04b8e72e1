package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/usageledger/ports"
)

// ProjectStore is an in-memory implementation of ports.ProjectStore.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]ports.Project
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]ports.Project),
	}
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, id string) (ports.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return ports.Project{}, ErrNotFound
	}
	return p, nil
}

// Create stores a new project.
func (s *ProjectStore) Create(ctx context.Context, p ports.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = p
	return nil
}

// List returns all projects ordered by creation time.
func (s *ProjectStore) List(ctx context.Context) ([]ports.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ensure interface compliance.
var _ ports.ProjectStore = (*ProjectStore)(nil)

// Package memory provides a bounded in-memory storage implementation.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nordlys/bugsight/pkg/models"
)

// Store keeps analysis runs in memory, bounded by maxRuns. When full,
// storing a new run evicts the oldest one.
type Store struct {
	mu      sync.RWMutex
	maxRuns int

	runs  map[string]*entry
	order []string // insertion order, oldest first
}

type entry struct {
	summary models.RunSummary
	result  *models.AnalysisResult
}

// New creates an in-memory store holding at most maxRuns runs.
// maxRuns <= 0 means unbounded.
func New(maxRuns int) *Store {
	return &Store{
		maxRuns: maxRuns,
		runs:    make(map[string]*entry),
	}
}

func (s *Store) PutRun(ctx context.Context, summary models.RunSummary, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[summary.ID]; !exists {
		s.order = append(s.order, summary.ID)
		if s.maxRuns > 0 && len(s.order) > s.maxRuns {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.runs, oldest)
		}
	}
	s.runs[summary.ID] = &entry{summary: summary, result: result}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return e.result, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RunSummary, 0, len(s.runs))
	for _, e := range s.runs {
		out = append(out, e.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return nil
	}
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

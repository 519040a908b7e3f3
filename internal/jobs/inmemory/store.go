package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/actual-categoriser/internal/jobs"
)

// DefaultCapacity is the number of runs kept when NewStore is given zero.
const DefaultCapacity = 500

// Store is an in-memory implementation of RunStore.
// It keeps the most recent runs and is safe for concurrent use.
// Data is lost on restart; the BigQuery audit sink is the durable record.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*jobs.Run
	order    []string
	capacity int
}

// NewStore creates a new in-memory run store holding up to capacity runs.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		runs:     make(map[string]*jobs.Run),
		capacity: capacity,
	}
}

// SaveRun implements the RunStore interface.
// It saves or updates a run, evicting the oldest run when full.
func (s *Store) SaveRun(ctx context.Context, run *jobs.Run) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		s.order = append(s.order, run.RunID)
		if len(s.order) > s.capacity {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.runs, oldest)
		}
	}

	s.runs[run.RunID] = copyRun(run)
	return nil
}

// GetRun implements the RunStore interface.
func (s *Store) GetRun(ctx context.Context, runID string) (*jobs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrRunNotFound, runID)
	}
	return copyRun(run), nil
}

// ListRuns implements the RunStore interface.
// Runs are returned newest first.
func (s *Store) ListRuns(ctx context.Context, filter jobs.RunFilter) ([]*jobs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.Run{}
	for _, id := range s.order {
		run := s.runs[id]
		if filter.Job != "" && run.Job != filter.Job {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, copyRun(run))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.Run{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// copyRun returns a copy that shares no mutable state with run.
func copyRun(run *jobs.Run) *jobs.Run {
	c := *run
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		c.CompletedAt = &t
	}
	if run.Stats != nil {
		c.Stats = make(jobs.Stats, len(run.Stats))
		for k, v := range run.Stats {
			c.Stats[k] = v
		}
	}
	return &c
}

// Ensure Store implements RunStore interface.
var _ jobs.RunStore = (*Store)(nil)
